/*

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package helm drives the helm binary and classifies its failures.
package helm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openstack-k8s-operators/osdpl-operator/internal/bundle"
)

// ResultKind classifies the outcome of a helm invocation
type ResultKind string

const (
	// ResultOK - the command succeeded
	ResultOK ResultKind = "ok"
	// ResultImmutable - an object could not be patched because of an
	// immutable field. Deleting the object and retrying recovers.
	ResultImmutable ResultKind = "immutable"
	// ResultPending - a previous operation is stuck. Rolling back recovers.
	ResultPending ResultKind = "pending"
	// ResultNoDeployed - the release has no deployed revision. Uninstalling
	// recovers.
	ResultNoDeployed ResultKind = "no-deployed"
	// ResultFatal - any other failure
	ResultFatal ResultKind = "fatal"
)

var (
	immutableRe  = regexp.MustCompile(`cannot patch "([^"]+)" with kind (\w+): .*field is immutable`)
	pendingRe    = regexp.MustCompile(`another operation \(install/upgrade/rollback\) is in progress`)
	noDeployedRe = regexp.MustCompile(`has no deployed releases`)
	notFoundRe   = regexp.MustCompile(`release: not found`)
)

// ObjectRef names the object a recoverable failure is about
type ObjectRef struct {
	Name string
	Kind string
}

// Result of a helm invocation
type Result struct {
	Kind   ResultKind
	Object ObjectRef
	Output Output
}

// Message - stderr of a failed invocation
func (r Result) Message() string {
	if r.Output.Stderr != "" {
		return r.Output.Stderr
	}
	return r.Output.Stdout
}

// Classify maps helm output to a result kind
func Classify(out Output) Result {
	r := Result{Kind: ResultOK, Output: out}
	if out.ExitCode == 0 {
		return r
	}
	msg := out.Stderr + out.Stdout
	switch {
	case immutableRe.MatchString(msg):
		m := immutableRe.FindStringSubmatch(msg)
		r.Kind = ResultImmutable
		r.Object = ObjectRef{Name: m[1], Kind: m[2]}
	case pendingRe.MatchString(msg):
		r.Kind = ResultPending
	case noDeployedRe.MatchString(msg):
		r.Kind = ResultNoDeployed
	default:
		r.Kind = ResultFatal
	}
	return r
}

// ReleaseStatus - subset of helm status output
type ReleaseStatus struct {
	Name    string `json:"name"`
	Version int    `json:"version"`
	Info    struct {
		Status string `json:"status"`
	} `json:"info"`
}

// Pending reports a release left in pending-install, pending-upgrade or
// pending-rollback by an interrupted helm process
func (s *ReleaseStatus) Pending() bool {
	return s != nil && strings.HasPrefix(s.Info.Status, "pending-")
}

// Client runs helm commands against one kubernetes cluster
type Client struct {
	Binary  string
	Runner  Runner
	Timeout time.Duration

	// mu serializes all helm invocations
	mu sync.Mutex
}

// NewClient -
func NewClient(binary string, runner Runner, timeout time.Duration) *Client {
	return &Client{Binary: binary, Runner: runner, Timeout: timeout}
}

func (c *Client) run(ctx context.Context, operation string, args ...string) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	out, err := c.Runner.Run(ctx, append([]string{c.Binary}, args...), nil)
	helmOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		helmOperationTotal.WithLabelValues(operation, "error").Inc()
		return Result{}, fmt.Errorf("helm %s: %w", operation, err)
	}
	r := Classify(out)
	helmOperationTotal.WithLabelValues(operation, string(r.Kind)).Inc()
	return r, nil
}

// UpgradeInstall installs or upgrades a release from repository
func (c *Client) UpgradeInstall(ctx context.Context, repository string, rel bundle.Release) (Result, error) {
	values, err := yaml.Marshal(rel.Values)
	if err != nil {
		return Result{}, err
	}
	f, err := os.CreateTemp("", rel.Name+"-values-*.yaml")
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(values); err != nil {
		f.Close()
		return Result{}, err
	}
	if err := f.Close(); err != nil {
		return Result{}, err
	}

	args := []string{
		"upgrade", rel.Name, rel.Chart,
		"--install",
		"--repo", repository,
		"--version", rel.Version,
		"--namespace", rel.Namespace,
		"--values", f.Name(),
	}
	if c.Timeout > 0 {
		args = append(args, "--timeout", c.Timeout.String())
	}
	return c.run(ctx, "upgrade", args...)
}

// Uninstall removes a release. A missing release is not an error.
func (c *Client) Uninstall(ctx context.Context, namespace, name string) (Result, error) {
	return c.run(ctx, "uninstall", "uninstall", name, "--namespace", namespace, "--ignore-not-found")
}

// Rollback returns a release to its previous revision
func (c *Client) Rollback(ctx context.Context, namespace, name string) (Result, error) {
	return c.run(ctx, "rollback", "rollback", name, "--namespace", namespace)
}

// Status returns the latest revision of a release, nil when the release is
// not installed
func (c *Client) Status(ctx context.Context, namespace, name string) (*ReleaseStatus, error) {
	r, err := c.run(ctx, "status", "status", name, "--namespace", namespace, "--output", "json")
	if err != nil {
		return nil, err
	}
	if r.Kind != ResultOK && notFoundRe.MatchString(r.Message()) {
		return nil, nil
	}
	if r.Kind != ResultOK {
		return nil, fmt.Errorf("helm status %s: %s", name, r.Message())
	}
	s := &ReleaseStatus{}
	if err := json.Unmarshal([]byte(r.Output.Stdout), s); err != nil {
		return nil, fmt.Errorf("parsing helm status of %s: %w", name, err)
	}
	return s, nil
}

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

// Package settings reads the process wide controller settings from the
// environment.
package settings

import (
	"fmt"
	"strconv"
	"time"

	"github.com/openstack-k8s-operators/lib-common/modules/common/util"
	"k8s.io/apimachinery/pkg/labels"
)

// Environment variables
const (
	WorkersEnv           = "OSDPL_WORKERS"
	HelmBinaryEnv        = "HELM_BINARY"
	HelmTimeoutEnv       = "OSDPL_HELM_TIMEOUT"
	TaskBackoffEnv       = "OSDPL_TASK_BACKOFF"
	PrecacheEnabledEnv   = "OSDPL_PRECACHE_ENABLED"
	WaitTimeoutEnv       = "OSDPL_WAIT_TIMEOUT"
	ManagedNodeLabelsEnv = "OSDPL_MANAGED_NODE_LABELS"
	WatchNamespaceEnv    = "WATCH_NAMESPACE"
)

// Settings of the controller process
type Settings struct {
	// Workers bounds concurrent blocking calls, helm and OpenStack API
	Workers           int64
	HelmBinary        string
	HelmTimeout       time.Duration
	TaskBackoff       time.Duration
	PrecacheEnabled   bool
	WaitTimeout       time.Duration
	ManagedNodeLabels map[string]string
	WatchNamespace    string
}

// Load reads the settings, falling back to defaults for unset variables
func Load() (*Settings, error) {
	s := &Settings{
		HelmBinary:     util.GetEnvVar(HelmBinaryEnv, "helm"),
		WatchNamespace: util.GetEnvVar(WatchNamespaceEnv, ""),
	}
	var err error

	workers := util.GetEnvVar(WorkersEnv, "4")
	if s.Workers, err = strconv.ParseInt(workers, 10, 64); err != nil || s.Workers < 1 {
		return nil, fmt.Errorf("%s: invalid worker count %q", WorkersEnv, workers)
	}
	if s.HelmTimeout, err = duration(HelmTimeoutEnv, "20m"); err != nil {
		return nil, err
	}
	if s.TaskBackoff, err = duration(TaskBackoffEnv, "10s"); err != nil {
		return nil, err
	}
	if s.WaitTimeout, err = duration(WaitTimeoutEnv, "10m"); err != nil {
		return nil, err
	}
	precache := util.GetEnvVar(PrecacheEnabledEnv, "true")
	if s.PrecacheEnabled, err = strconv.ParseBool(precache); err != nil {
		return nil, fmt.Errorf("%s: %w", PrecacheEnabledEnv, err)
	}
	if s.ManagedNodeLabels, err = ParseLabels(util.GetEnvVar(ManagedNodeLabelsEnv, "openstack-compute-node=enabled")); err != nil {
		return nil, fmt.Errorf("%s: %w", ManagedNodeLabelsEnv, err)
	}
	return s, nil
}

func duration(env, def string) (time.Duration, error) {
	v := util.GetEnvVar(env, def)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", env, err)
	}
	return d, nil
}

// ParseLabels parses "k1=v1,k2=v2". Any node carrying one of the pairs is
// managed.
func ParseLabels(s string) (map[string]string, error) {
	set, err := labels.ConvertSelectorToLabelsMap(s)
	if err != nil {
		return nil, err
	}
	return map[string]string(set), nil
}

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

package helm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

// Output of one helm invocation
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a command line
type Runner interface {
	Run(ctx context.Context, argv []string, env []string) (Output, error)
}

// ExecRunner runs commands as child processes on the blocking call pool
type ExecRunner struct {
	Pool *tasks.Pool
}

// NewExecRunner -
func NewExecRunner(pool *tasks.Pool) *ExecRunner {
	return &ExecRunner{Pool: pool}
}

// Run blocks until a pool slot is free. A non zero exit code is reported in
// Output, only failures to start or wait for the process are errors.
func (r *ExecRunner) Run(ctx context.Context, argv []string, env []string) (Output, error) {
	var out Output
	err := r.Pool.Do(ctx, func() error {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Env = append(os.Environ(), env...)
		stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
		cmd.Stdout = stdout
		cmd.Stderr = stderr

		err := cmd.Run()
		out = Output{Stdout: stdout.String(), Stderr: stderr.String()}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return nil
		}
		return err
	})
	return out, err
}

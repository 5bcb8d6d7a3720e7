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

// Package tasks runs independent per-service tasks in waves. Temporary
// failures are resubmitted in the next wave, permanent and unknown failures
// are recorded and reported once all tasks settled.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// DefaultBackoff between retry waves
const DefaultBackoff = 10 * time.Second

// Task is one named unit of work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Runner supervises task waves
type Runner struct {
	// Backoff between waves, DefaultBackoff when zero
	Backoff time.Duration
	// Deadline bounds the whole run when set
	Deadline time.Duration
	Clock    clock.Clock
}

// Report is the outcome of a run
type Report struct {
	Succeeded []string
	Permanent map[string]error
	Unknown   map[string]error
	// Pending holds temporary failures left when the deadline hit
	Pending map[string]error
	Waves   int
}

// Failed - true if any task did not succeed
func (r *Report) Failed() bool {
	return len(r.Permanent)+len(r.Unknown)+len(r.Pending) > 0
}

// Err folds the report into one error. Permanent failures win over unknown
// ones, which win over pending temporary ones.
func (r *Report) Err() error {
	switch {
	case len(r.Permanent) > 0:
		return Permanent(joinSorted(r.Permanent))
	case len(r.Unknown) > 0:
		return joinSorted(r.Unknown)
	case len(r.Pending) > 0:
		return Temporary(fmt.Errorf("deadline exceeded: %w", joinSorted(r.Pending)))
	}
	return nil
}

func joinSorted(errs map[string]error) error {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]error, 0, len(names))
	for _, name := range names {
		out = append(out, fmt.Errorf("%s: %w", name, errs[name]))
	}
	return errors.Join(out...)
}

// Run executes all tasks concurrently and resubmits the temporary failures
// until none are left, the deadline passes or ctx is cancelled.
func (r *Runner) Run(ctx context.Context, tasks []Task) *Report {
	Log := log.FromContext(ctx)

	clk := r.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	var deadline time.Time
	if r.Deadline > 0 {
		deadline = clk.Now().Add(r.Deadline)
	}

	report := &Report{
		Permanent: map[string]error{},
		Unknown:   map[string]error{},
		Pending:   map[string]error{},
	}

	pending := tasks
waves:
	for len(pending) > 0 {
		report.Waves++
		retry := r.wave(ctx, pending, report)
		if len(retry) == 0 {
			break
		}

		if !deadline.IsZero() && !clk.Now().Add(backoff).Before(deadline) {
			for _, t := range retry {
				report.Pending[t.task.Name] = t.err
			}
			break
		}

		names := make([]string, 0, len(retry))
		pending = pending[:0:0]
		for _, t := range retry {
			names = append(names, t.task.Name)
			pending = append(pending, t.task)
		}
		sort.Strings(names)
		Log.Info(fmt.Sprintf("Retrying tasks %v in %s", names, backoff))

		select {
		case <-ctx.Done():
			for _, t := range retry {
				report.Pending[t.task.Name] = ctx.Err()
			}
			break waves
		case <-clk.After(backoff):
		}
	}

	sort.Strings(report.Succeeded)
	return report
}

type failure struct {
	task Task
	err  error
}

func (r *Runner) wave(ctx context.Context, tasks []Task, report *Report) []failure {
	var mu sync.Mutex
	var retry []failure
	g := errgroup.Group{}

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			err := t.Run(ctx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Succeeded = append(report.Succeeded, t.Name)
			case IsTemporary(err):
				retry = append(retry, failure{task: t, err: err})
			case IsPermanent(err):
				report.Permanent[t.Name] = err
			default:
				report.Unknown[t.Name] = err
			}
			// failures are collected, never short-circuit the wave
			return nil
		})
	}
	_ = g.Wait()

	return retry
}

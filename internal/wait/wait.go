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

// Package wait implements the bounded polling used by every "wait for X"
// call site.
package wait

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/utils/clock"
)

// DefaultInterval between two predicate checks
const DefaultInterval = 5 * time.Second

// TimeoutError is returned when the predicate did not hold in time
type TimeoutError struct {
	What    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Timeout, e.What)
}

// IsTimeout -
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// Predicate reports whether the awaited state is reached. A returned error
// aborts the wait.
type Predicate func(ctx context.Context) (bool, error)

// Poller checks a predicate every Interval until Timeout
type Poller struct {
	Clock    clock.Clock
	Interval time.Duration
	Timeout  time.Duration
}

// New returns a Poller on the real clock
func New(interval, timeout time.Duration) *Poller {
	return &Poller{Clock: clock.RealClock{}, Interval: interval, Timeout: timeout}
}

// WithTimeout returns a copy of p bounded by timeout
func (p *Poller) WithTimeout(timeout time.Duration) *Poller {
	c := *p
	c.Timeout = timeout
	return &c
}

// Until checks the predicate immediately and then on every tick
func (p *Poller) Until(ctx context.Context, what string, predicate Predicate) error {
	clk := p.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	start := clk.Now()

	for {
		done, err := predicate(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if p.Timeout > 0 && clk.Since(start) >= p.Timeout {
			return &TimeoutError{What: what, Timeout: p.Timeout}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clk.After(interval):
		}
	}
}

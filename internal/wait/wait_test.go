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

package wait

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"
	clocktesting "k8s.io/utils/clock/testing"
)

// drive advances the fake clock whenever the poller sleeps
func drive(clk *clocktesting.FakeClock, step time.Duration, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		if clk.HasWaiters() {
			clk.Step(step)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestUntilImmediate(t *testing.T) {
	g := NewWithT(t)

	p := New(time.Second, time.Minute)
	calls := 0
	err := p.Until(context.Background(), "job", func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(calls).To(Equal(1))
}

func TestUntilEventually(t *testing.T) {
	g := NewWithT(t)

	clk := clocktesting.NewFakeClock(time.Now())
	stop := make(chan struct{})
	defer close(stop)
	go drive(clk, time.Second, stop)

	p := &Poller{Clock: clk, Interval: time.Second, Timeout: time.Minute}
	calls := 0
	err := p.Until(context.Background(), "deployment", func(context.Context) (bool, error) {
		calls++
		return calls == 4, nil
	})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(calls).To(Equal(4))
}

func TestUntilTimeout(t *testing.T) {
	g := NewWithT(t)

	clk := clocktesting.NewFakeClock(time.Now())
	stop := make(chan struct{})
	defer close(stop)
	go drive(clk, 10*time.Second, stop)

	p := &Poller{Clock: clk, Interval: 10 * time.Second, Timeout: 30 * time.Second}
	err := p.Until(context.Background(), "job keystone-db-sync absent", func(context.Context) (bool, error) {
		return false, nil
	})
	g.Expect(err).To(HaveOccurred())
	g.Expect(IsTimeout(err)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("keystone-db-sync"))
}

func TestUntilPredicateError(t *testing.T) {
	g := NewWithT(t)

	boom := errors.New("boom")
	p := New(time.Second, time.Minute)
	err := p.Until(context.Background(), "x", func(context.Context) (bool, error) {
		return false, boom
	})
	g.Expect(err).To(MatchError(boom))
	g.Expect(IsTimeout(err)).To(BeFalse())
}

func TestUntilCancelled(t *testing.T) {
	g := NewWithT(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(time.Hour, 0)
	err := p.Until(ctx, "x", func(context.Context) (bool, error) { return false, nil })
	g.Expect(err).To(MatchError(context.Canceled))
}

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

package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestPoolBoundsBlockingCalls(t *testing.T) {
	g := NewWithT(t)
	pool := NewPool(2)

	var inFlight, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pool.Do(context.Background(), func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	g.Expect(atomic.LoadInt32(&peak)).To(BeNumerically("<=", 2))
	g.Expect(atomic.LoadInt32(&peak)).To(BeNumerically(">=", 1))
}

func TestPoolCancelledWhileWaiting(t *testing.T) {
	g := NewWithT(t)
	pool := NewPool(1)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = pool.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	err := pool.Do(ctx, func() error {
		ran = true
		return nil
	})
	g.Expect(err).To(MatchError(context.Canceled))
	g.Expect(ran).To(BeFalse())
	close(release)
}

func TestNilPoolRunsDirectly(t *testing.T) {
	g := NewWithT(t)
	var pool *Pool
	g.Expect(pool.Do(context.Background(), func() error { return nil })).To(Succeed())
}

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

package health

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

// ErrHookPending - the hook started work that is not finished yet. The hook
// is run again on the next event of the same workload.
var ErrHookPending = errors.New("hook pending")

// Transition of a component between two health states
type Transition struct {
	Application string
	Component   string
	From        lcmv1.HealthStatus
	To          lcmv1.HealthStatus
}

// HookFunc reacts to a transition of obj
type HookFunc func(ctx context.Context, instance *lcmv1.OpenStackDeployment, obj client.Object) error

type pendingHook struct {
	key string
	fn  HookFunc
}

// Hooks runs side effects on health transitions. Each hook runs at most once
// per transition and workload revision.
type Hooks struct {
	mu      sync.Mutex
	hooks   map[Transition][]HookFunc
	fired   map[string]bool
	pending map[string][]pendingHook
}

// NewHooks -
func NewHooks() *Hooks {
	return &Hooks{
		hooks:   map[Transition][]HookFunc{},
		fired:   map[string]bool{},
		pending: map[string][]pendingHook{},
	}
}

// Register adds fn for t
func (h *Hooks) Register(t Transition, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[t] = append(h.hooks[t], fn)
}

func componentKey(app, component string) string {
	return app + "/" + component
}

// Run starts the hooks of t. revision identifies the observed workload state
// so the same transition seen twice does not run a hook twice. Hook errors
// are logged and never returned. Run reports whether a hook is pending.
func (h *Hooks) Run(
	ctx context.Context,
	t Transition,
	revision string,
	instance *lcmv1.OpenStackDeployment,
	obj client.Object,
) bool {
	h.mu.Lock()
	fns := h.hooks[t]
	h.mu.Unlock()

	pending := false
	for i, fn := range fns {
		key := fmt.Sprintf("%s/%s/%s->%s/%s/%d", t.Application, t.Component, t.From, t.To, revision, i)
		h.mu.Lock()
		done := h.fired[key]
		if !done {
			h.fired[key] = true
		}
		h.mu.Unlock()
		if done {
			continue
		}
		if h.call(ctx, key, fn, instance, obj) {
			pending = true
			ck := componentKey(t.Application, t.Component)
			h.mu.Lock()
			h.pending[ck] = append(h.pending[ck], pendingHook{key: key, fn: fn})
			h.mu.Unlock()
		}
	}
	return pending
}

// HasPending reports whether a component has pending hooks
func (h *Hooks) HasPending(app, component string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending[componentKey(app, component)]) > 0
}

// RunPending reruns the pending hooks of a component. It reports whether any
// hook is still pending.
func (h *Hooks) RunPending(
	ctx context.Context,
	app string,
	component string,
	instance *lcmv1.OpenStackDeployment,
	obj client.Object,
) bool {
	ck := componentKey(app, component)
	h.mu.Lock()
	queued := h.pending[ck]
	delete(h.pending, ck)
	h.mu.Unlock()

	still := []pendingHook{}
	for _, p := range queued {
		if h.call(ctx, p.key, p.fn, instance, obj) {
			still = append(still, p)
		}
	}
	if len(still) == 0 {
		return false
	}
	h.mu.Lock()
	h.pending[ck] = append(h.pending[ck], still...)
	h.mu.Unlock()
	return true
}

func (h *Hooks) call(
	ctx context.Context,
	key string,
	fn HookFunc,
	instance *lcmv1.OpenStackDeployment,
	obj client.Object,
) bool {
	Log := log.FromContext(ctx).WithName("Health").WithName("Hooks")
	err := fn(ctx, instance, obj)
	if errors.Is(err, ErrHookPending) {
		Log.Info(fmt.Sprintf("Hook %s pending", key))
		return true
	}
	if err != nil {
		Log.Error(err, fmt.Sprintf("Hook %s failed", key))
		return false
	}
	Log.Info(fmt.Sprintf("Hook %s done", key))
	return false
}

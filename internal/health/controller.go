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
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	appsv1 "k8s.io/api/apps/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

// HookRequeue - delay before pending hooks are retried
const HookRequeue = 10 * time.Second

type componentRef struct {
	app       string
	component string
}

// WorkloadReconciler tracks the health of one workload kind
type WorkloadReconciler struct {
	Client  client.Client
	Tracker *Tracker
	Hooks   *Hooks
	Kind    string

	newObject func() client.Object

	mu    sync.Mutex
	index map[types.NamespacedName]componentRef
}

// NewDeploymentReconciler -
func NewDeploymentReconciler(c client.Client, t *Tracker, h *Hooks) *WorkloadReconciler {
	return newWorkloadReconciler(c, t, h, "Deployment", func() client.Object { return &appsv1.Deployment{} })
}

// NewStatefulSetReconciler -
func NewStatefulSetReconciler(c client.Client, t *Tracker, h *Hooks) *WorkloadReconciler {
	return newWorkloadReconciler(c, t, h, "StatefulSet", func() client.Object { return &appsv1.StatefulSet{} })
}

// NewDaemonSetReconciler -
func NewDaemonSetReconciler(c client.Client, t *Tracker, h *Hooks) *WorkloadReconciler {
	return newWorkloadReconciler(c, t, h, "DaemonSet", func() client.Object { return &appsv1.DaemonSet{} })
}

func newWorkloadReconciler(
	c client.Client,
	t *Tracker,
	h *Hooks,
	kind string,
	newObject func() client.Object,
) *WorkloadReconciler {
	if h == nil {
		h = NewHooks()
	}
	return &WorkloadReconciler{
		Client:    c,
		Tracker:   t,
		Hooks:     h,
		Kind:      kind,
		newObject: newObject,
		index:     map[types.NamespacedName]componentRef{},
	}
}

// GetLogger returns a logger object with a prefix of "controller.name" and additional controller context fields
func (r *WorkloadReconciler) GetLogger(ctx context.Context) logr.Logger {
	return log.FromContext(ctx).WithName("Controllers").WithName(r.Kind + "Health")
}

// revision identifies the observed state of a workload for hooks
func revision(obj client.Object) string {
	if ds, ok := obj.(*appsv1.DaemonSet); ok {
		return fmt.Sprintf("%d/%d", ds.Generation, ds.Status.NumberReady)
	}
	return fmt.Sprintf("%d", obj.GetGeneration())
}

// Reconcile publishes the health of one workload
func (r *WorkloadReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	Log := r.GetLogger(ctx)

	obj := r.newObject()
	err := r.Client.Get(ctx, req.NamespacedName, obj)
	if k8s_errors.IsNotFound(err) {
		return ctrl.Result{}, r.forget(ctx, req.NamespacedName)
	}
	if err != nil {
		return ctrl.Result{}, err
	}
	if !obj.GetDeletionTimestamp().IsZero() {
		return ctrl.Result{}, r.forget(ctx, req.NamespacedName)
	}

	app, component := Identify(obj.GetLabels(), obj.GetName())
	r.mu.Lock()
	r.index[req.NamespacedName] = componentRef{app: app, component: component}
	r.mu.Unlock()

	status := Classify(obj)
	u, err := r.Tracker.Set(ctx, req.Namespace, app, component, lcmv1.HealthRecord{
		Status:     status,
		Generation: obj.GetGeneration(),
		Workload:   r.workload(obj.GetName()),
	})
	if k8s_errors.IsNotFound(err) {
		// no deployment in this namespace
		return ctrl.Result{}, nil
	}
	if err != nil {
		return ctrl.Result{}, err
	}
	if !u.Written {
		if !r.Hooks.HasPending(app, component) {
			return ctrl.Result{}, nil
		}
		instance, err := lcmv1.GetOpenStackDeployment(ctx, r.Client, req.Namespace)
		if err != nil {
			return ctrl.Result{}, err
		}
		if r.Hooks.RunPending(ctx, app, component, instance, obj) {
			return ctrl.Result{RequeueAfter: HookRequeue}, nil
		}
		return ctrl.Result{}, nil
	}

	Log.Info(fmt.Sprintf("%s %s/%s health %s -> %s", r.Kind, app, component, u.Previous.Status, status))
	pending := r.Hooks.RunPending(ctx, app, component, u.Instance, obj)
	if u.Existed && u.Previous.Status != status {
		t := Transition{Application: app, Component: component, From: u.Previous.Status, To: status}
		if r.Hooks.Run(ctx, t, revision(obj), u.Instance, obj) {
			pending = true
		}
	}
	if pending {
		return ctrl.Result{RequeueAfter: HookRequeue}, nil
	}
	return ctrl.Result{}, nil
}

func (r *WorkloadReconciler) workload(name string) string {
	return r.Kind + "/" + name
}

// forget clears the record of a removed workload. Workloads removed before
// this process indexed them are found by the name stored in the record.
func (r *WorkloadReconciler) forget(ctx context.Context, name types.NamespacedName) error {
	r.mu.Lock()
	ref, ok := r.index[name]
	delete(r.index, name)
	r.mu.Unlock()

	var err error
	if ok {
		r.GetLogger(ctx).Info(fmt.Sprintf("%s %s removed, clearing %s/%s", r.Kind, name, ref.app, ref.component))
		err = r.Tracker.Clear(ctx, name.Namespace, ref.app, ref.component)
	} else {
		err = r.Tracker.ClearWorkload(ctx, name.Namespace, r.workload(name.Name))
	}
	if k8s_errors.IsNotFound(err) {
		return nil
	}
	return err
}

// SetupWithManager watches workloads carrying the application label
func (r *WorkloadReconciler) SetupWithManager(mgr ctrl.Manager) error {
	labelled := predicate.NewPredicateFuncs(func(o client.Object) bool {
		_, ok := o.GetLabels()[ApplicationLabel]
		return ok
	})
	return ctrl.NewControllerManagedBy(mgr).
		Named(strings.ToLower(r.Kind) + "-health").
		For(r.newObject(), builder.WithPredicates(labelled)).
		Complete(r)
}

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

package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

// DefaultBackoff - requeue delay of a deferred maintenance request
const DefaultBackoff = 30 * time.Second

func requeue(err error, backoff time.Duration) (ctrl.Result, error) {
	if tasks.IsTemporary(err) {
		if backoff <= 0 {
			backoff = DefaultBackoff
		}
		return ctrl.Result{RequeueAfter: backoff}, nil
	}
	return ctrl.Result{}, err
}

// deployment returns the deployment of namespace, nil when there is none
func deployment(ctx context.Context, c client.Client, namespace string) (*lcmv1.OpenStackDeployment, error) {
	instance, err := lcmv1.GetOpenStackDeployment(ctx, c, namespace)
	if k8s_errors.IsNotFound(err) {
		return nil, nil
	}
	return instance, err
}

func removeFinalizer(ctx context.Context, c client.Client, obj client.Object) error {
	if !controllerutil.ContainsFinalizer(obj, lcmv1.MaintenanceFinalizer) {
		return nil
	}
	patch := client.MergeFrom(obj.DeepCopyObject().(client.Object))
	controllerutil.RemoveFinalizer(obj, lcmv1.MaintenanceFinalizer)
	return c.Patch(ctx, obj, patch)
}

func addFinalizer(ctx context.Context, c client.Client, obj client.Object) error {
	patch := client.MergeFrom(obj.DeepCopyObject().(client.Object))
	if !controllerutil.AddFinalizer(obj, lcmv1.MaintenanceFinalizer) {
		return nil
	}
	return c.Patch(ctx, obj, patch)
}

// NodeMaintenanceRequestReconciler prepares nodes for maintenance
type NodeMaintenanceRequestReconciler struct {
	client.Client
	Coordinator *Coordinator
	// Namespace of the deployment
	Namespace string
	Backoff   time.Duration
}

// GetLogger -
func (r *NodeMaintenanceRequestReconciler) GetLogger(ctx context.Context) logr.Logger {
	return log.FromContext(ctx).WithName("Controllers").WithName("NodeMaintenanceRequest")
}

// +kubebuilder:rbac:groups=lcm.openstack.org,resources=nodemaintenancerequests,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=nodemaintenancerequests/finalizers,verbs=update;patch
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=nodeworkloadlocks,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=nodeworkloadlocks/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=core,resources=nodes,verbs=get;list;watch

// Reconcile -
func (r *NodeMaintenanceRequestReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	Log := r.GetLogger(ctx)

	request := &lcmv1.NodeMaintenanceRequest{}
	if err := r.Get(ctx, req.NamespacedName, request); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	deleting := !request.DeletionTimestamp.IsZero()

	node := &corev1.Node{}
	err := r.Get(ctx, client.ObjectKey{Name: request.Spec.NodeName}, node)
	if k8s_errors.IsNotFound(err) || (err == nil && !r.Coordinator.Managed(node)) {
		Log.Info(fmt.Sprintf("Node %s is not managed, ignoring request %s", request.Spec.NodeName, request.Name))
		if deleting {
			return ctrl.Result{}, removeFinalizer(ctx, r.Client, request)
		}
		return ctrl.Result{}, nil
	}
	if err != nil {
		return ctrl.Result{}, err
	}

	instance, err := deployment(ctx, r.Client, r.Namespace)
	if err != nil {
		return ctrl.Result{}, err
	}
	lock, err := r.Coordinator.EnsureNodeLock(ctx, node)
	if err != nil {
		return ctrl.Result{}, err
	}

	if deleting {
		if err := r.Coordinator.ReleaseNode(ctx, instance, lock); err != nil {
			return requeue(err, r.Backoff)
		}
		return ctrl.Result{}, removeFinalizer(ctx, r.Client, request)
	}

	if err := addFinalizer(ctx, r.Client, request); err != nil {
		return ctrl.Result{}, err
	}
	if err := r.Coordinator.StartNode(ctx, instance, lock); err != nil {
		Log.Info(fmt.Sprintf("Maintenance of %s deferred: %v", node.Name, err))
		return requeue(err, r.Backoff)
	}
	return ctrl.Result{}, nil
}

// SetupWithManager -
func (r *NodeMaintenanceRequestReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&lcmv1.NodeMaintenanceRequest{}).
		Complete(r)
}

// ClusterMaintenanceRequestReconciler opens and closes cluster maintenance
// windows
type ClusterMaintenanceRequestReconciler struct {
	client.Client
	Coordinator *Coordinator
	Namespace   string
	Backoff     time.Duration
}

// GetLogger -
func (r *ClusterMaintenanceRequestReconciler) GetLogger(ctx context.Context) logr.Logger {
	return log.FromContext(ctx).WithName("Controllers").WithName("ClusterMaintenanceRequest")
}

// +kubebuilder:rbac:groups=lcm.openstack.org,resources=clustermaintenancerequests,verbs=get;list;watch;update;patch
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=clustermaintenancerequests/finalizers,verbs=update;patch
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=clusterworkloadlocks,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=clusterworkloadlocks/status,verbs=get;update;patch

// Reconcile -
func (r *ClusterMaintenanceRequestReconciler) Reconcile(ctx context.Context, req ctrl.Request) (ctrl.Result, error) {
	Log := r.GetLogger(ctx)

	request := &lcmv1.ClusterMaintenanceRequest{}
	if err := r.Get(ctx, req.NamespacedName, request); err != nil {
		return ctrl.Result{}, client.IgnoreNotFound(err)
	}
	deleting := !request.DeletionTimestamp.IsZero()

	instance, err := deployment(ctx, r.Client, r.Namespace)
	if err != nil {
		return ctrl.Result{}, err
	}
	if instance == nil {
		Log.Info(fmt.Sprintf("No deployment in %s, ignoring request %s", r.Namespace, request.Name))
		if deleting {
			return ctrl.Result{}, removeFinalizer(ctx, r.Client, request)
		}
		return ctrl.Result{}, nil
	}

	if deleting {
		if err := r.Coordinator.ReleaseCluster(ctx, instance); err != nil {
			Log.Info(fmt.Sprintf("Cluster release deferred: %v", err))
			return requeue(err, r.Backoff)
		}
		return ctrl.Result{}, removeFinalizer(ctx, r.Client, request)
	}

	if err := addFinalizer(ctx, r.Client, request); err != nil {
		return ctrl.Result{}, err
	}
	if err := r.Coordinator.StartCluster(ctx, instance); err != nil {
		Log.Info(fmt.Sprintf("Cluster maintenance deferred: %v", err))
		return requeue(err, r.Backoff)
	}
	return ctrl.Result{}, nil
}

// SetupWithManager -
func (r *ClusterMaintenanceRequestReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&lcmv1.ClusterMaintenanceRequest{}).
		Complete(r)
}

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

// Package maintenance coordinates node and cluster maintenance windows with
// the workloads of the deployment.
package maintenance

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/samber/lo"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

// Event reasons
const (
	ReasonNodePrepared    = "NodePrepared"
	ReasonNodeReleased    = "NodeReleased"
	ReasonNodeFailed      = "NodeMaintenanceFailed"
	ReasonClusterPrepared = "ClusterPrepared"
	ReasonClusterReleased = "ClusterReleased"
)

// Coordinator drives workload locks through maintenance
type Coordinator struct {
	Client   client.Client
	Registry *services.Registry
	Hooks    map[string]Hook
	// ManagedLabels - a node carrying any of these labels runs workloads of
	// the deployment
	ManagedLabels map[string]string
	Recorder      record.EventRecorder
}

// GetLogger -
func (c *Coordinator) GetLogger(ctx context.Context) logr.Logger {
	return log.FromContext(ctx).WithName("Maintenance")
}

func (c *Coordinator) event(instance *lcmv1.OpenStackDeployment, eventType, reason, format string, args ...interface{}) {
	if c.Recorder != nil && instance != nil {
		c.Recorder.Eventf(instance, eventType, reason, format, args...)
	}
}

// Managed reports whether node runs workloads of the deployment
func (c *Coordinator) Managed(node *corev1.Node) bool {
	for k, v := range c.ManagedLabels {
		if node.Labels[k] == v {
			return true
		}
	}
	return false
}

// EnsureNodeLock returns the lock of node, creating it in the active state
// when absent. The lock is owned by the node.
func (c *Coordinator) EnsureNodeLock(ctx context.Context, node *corev1.Node) (*lcmv1.NodeWorkloadLock, error) {
	lock := &lcmv1.NodeWorkloadLock{}
	err := c.Client.Get(ctx, client.ObjectKey{Name: lcmv1.NodeLockName(node.Name)}, lock)
	if err == nil {
		return lock, nil
	}
	if !k8s_errors.IsNotFound(err) {
		return nil, err
	}

	lock = &lcmv1.NodeWorkloadLock{
		ObjectMeta: metav1.ObjectMeta{Name: lcmv1.NodeLockName(node.Name)},
		Spec: lcmv1.NodeWorkloadLockSpec{
			NodeName:       node.Name,
			ControllerName: lcmv1.ControllerName,
		},
	}
	if err := controllerutil.SetOwnerReference(node, lock, c.Client.Scheme()); err != nil {
		return nil, err
	}
	if err := c.Client.Create(ctx, lock); err != nil {
		return nil, err
	}
	c.GetLogger(ctx).Info(fmt.Sprintf("NodeWorkloadLock %s created", lock.Name))
	err = c.patchNodeLock(ctx, lock, func(s *lcmv1.NodeWorkloadLockStatus) {
		s.State = lcmv1.LockActive
		s.InnerState = lcmv1.LockInactive
	})
	return lock, err
}

// patchNodeLock applies mutate to the lock status with an optimistic lock
func (c *Coordinator) patchNodeLock(
	ctx context.Context,
	lock *lcmv1.NodeWorkloadLock,
	mutate func(*lcmv1.NodeWorkloadLockStatus),
) error {
	first := true
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		if !first {
			if err := c.Client.Get(ctx, client.ObjectKeyFromObject(lock), lock); err != nil {
				return err
			}
		}
		first = false
		patch := client.MergeFromWithOptions(lock.DeepCopy(), client.MergeFromWithOptimisticLock{})
		mutate(&lock.Status)
		return c.Client.Status().Patch(ctx, lock, patch)
	})
}

// busyNode returns the name of another lock whose maintenance is in progress
func (c *Coordinator) busyNode(ctx context.Context, self string) (string, error) {
	locks := &lcmv1.NodeWorkloadLockList{}
	if err := c.Client.List(ctx, locks); err != nil {
		return "", err
	}
	for _, l := range locks.Items {
		if l.Name != self && l.Spec.ControllerName == lcmv1.ControllerName && l.InMaintenance() {
			return l.Spec.NodeName, nil
		}
	}
	return "", nil
}

func (c *Coordinator) hookOrder(instance *lcmv1.OpenStackDeployment) []string {
	if instance == nil {
		return nil
	}
	return lo.Filter(c.Registry.MaintenanceOrder(instance.Spec.Features.Services), func(svc string, _ int) bool {
		_, ok := c.Hooks[svc]
		return ok
	})
}

// failNode keeps temporary hook errors retriable and marks the lock failed
// otherwise
func (c *Coordinator) failNode(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	lock *lcmv1.NodeWorkloadLock,
	service string,
	err error,
) error {
	err = fmt.Errorf("%s maintenance hook on %s: %w", service, lock.Spec.NodeName, err)
	if tasks.IsTemporary(err) {
		return err
	}
	c.GetLogger(ctx).Error(err, "Maintenance hook failed", "lock", lock.Name)
	perr := c.patchNodeLock(ctx, lock, func(s *lcmv1.NodeWorkloadLockStatus) {
		s.State = lcmv1.LockFailed
		s.ErrorMessage = err.Error()
	})
	if perr != nil {
		return perr
	}
	c.event(instance, corev1.EventTypeWarning, ReasonNodeFailed, "Maintenance of %s failed: %v", lock.Spec.NodeName, err)
	return reconcile.TerminalError(err)
}

// StartNode prepares the node of lock for maintenance. Only one node is
// prepared at a time, a busy cluster is reported as a temporary error.
// Hooks run in ascending maintenance weight, then the lock turns inactive.
func (c *Coordinator) StartNode(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	lock *lcmv1.NodeWorkloadLock,
) error {
	Log := c.GetLogger(ctx).WithValues("node", lock.Spec.NodeName)

	switch lock.Status.State {
	case lcmv1.LockInactive:
		return nil
	case lcmv1.LockFailed:
		Log.Info(fmt.Sprintf("NodeWorkloadLock %s failed: %s", lock.Name, lock.Status.ErrorMessage))
		return nil
	}

	if !lock.InMaintenance() {
		busy, err := c.busyNode(ctx, lock.Name)
		if err != nil {
			return err
		}
		if busy != "" {
			return tasks.Temporaryf("node %s is in maintenance, %s has to wait", busy, lock.Spec.NodeName)
		}
		err = c.patchNodeLock(ctx, lock, func(s *lcmv1.NodeWorkloadLockStatus) {
			s.InnerState = lcmv1.LockActive
		})
		if err != nil {
			return err
		}
	}

	for _, svc := range c.hookOrder(instance) {
		Log.Info(fmt.Sprintf("Preparing %s for maintenance", svc))
		if err := c.Hooks[svc].PrepareNode(ctx, instance, lock.Spec.NodeName); err != nil {
			return c.failNode(ctx, instance, lock, svc, err)
		}
	}

	err := c.patchNodeLock(ctx, lock, func(s *lcmv1.NodeWorkloadLockStatus) {
		s.State = lcmv1.LockInactive
		s.ErrorMessage = ""
	})
	if err != nil {
		return err
	}
	Log.Info(fmt.Sprintf("NodeWorkloadLock %s inactive", lock.Name))
	c.event(instance, corev1.EventTypeNormal, ReasonNodePrepared, "Node %s prepared for maintenance", lock.Spec.NodeName)
	return nil
}

// ReleaseNode hands the node of lock back. Hooks run in reverse order, then
// the lock turns active again.
func (c *Coordinator) ReleaseNode(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	lock *lcmv1.NodeWorkloadLock,
) error {
	Log := c.GetLogger(ctx).WithValues("node", lock.Spec.NodeName)

	if lock.Status.State == lcmv1.LockActive && !lock.InMaintenance() {
		return nil
	}

	order := c.hookOrder(instance)
	for i := len(order) - 1; i >= 0; i-- {
		svc := order[i]
		Log.Info(fmt.Sprintf("Releasing %s from maintenance", svc))
		if err := c.Hooks[svc].ReleaseNode(ctx, instance, lock.Spec.NodeName); err != nil {
			return c.failNode(ctx, instance, lock, svc, err)
		}
	}

	err := c.patchNodeLock(ctx, lock, func(s *lcmv1.NodeWorkloadLockStatus) {
		s.State = lcmv1.LockActive
		s.InnerState = lcmv1.LockInactive
		s.ErrorMessage = ""
	})
	if err != nil {
		return err
	}
	Log.Info(fmt.Sprintf("NodeWorkloadLock %s active", lock.Name))
	c.event(instance, corev1.EventTypeNormal, ReasonNodeReleased, "Node %s released from maintenance", lock.Spec.NodeName)
	return nil
}

// EnsureClusterLock returns the cluster lock of the deployment, creating it
// in the active state when absent
func (c *Coordinator) EnsureClusterLock(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
) (*lcmv1.ClusterWorkloadLock, error) {
	lock := &lcmv1.ClusterWorkloadLock{}
	err := c.Client.Get(ctx, client.ObjectKey{Name: lcmv1.ClusterLockName(instance.Name)}, lock)
	if err == nil {
		return lock, nil
	}
	if !k8s_errors.IsNotFound(err) {
		return nil, err
	}

	lock = &lcmv1.ClusterWorkloadLock{
		ObjectMeta: metav1.ObjectMeta{Name: lcmv1.ClusterLockName(instance.Name)},
		Spec:       lcmv1.ClusterWorkloadLockSpec{ControllerName: lcmv1.ControllerName},
	}
	if err := c.Client.Create(ctx, lock); err != nil {
		return nil, err
	}
	c.GetLogger(ctx).Info(fmt.Sprintf("ClusterWorkloadLock %s created", lock.Name))
	return lock, c.setClusterLock(ctx, instance, lock, lcmv1.LockActive)
}

func (c *Coordinator) setClusterLock(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	lock *lcmv1.ClusterWorkloadLock,
	state lcmv1.LockState,
) error {
	patch := client.MergeFrom(lock.DeepCopy())
	lock.Status.State = state
	lock.Status.ErrorMessage = ""
	if err := c.Client.Status().Patch(ctx, lock, patch); err != nil {
		return err
	}

	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		current := &lcmv1.OpenStackDeployment{}
		if err := c.Client.Get(ctx, client.ObjectKeyFromObject(instance), current); err != nil {
			return err
		}
		patch := client.MergeFromWithOptions(current.DeepCopy(), client.MergeFromWithOptimisticLock{})
		current.Status.Maintenance.ClusterLock = state
		if err := c.Client.Status().Patch(ctx, current, patch); err != nil {
			return err
		}
		instance.Status.Maintenance = current.Status.Maintenance
		return nil
	})
}

// StartCluster opens a cluster maintenance window. The deployment must be
// fully applied.
func (c *Coordinator) StartCluster(ctx context.Context, instance *lcmv1.OpenStackDeployment) error {
	lock, err := c.EnsureClusterLock(ctx, instance)
	if err != nil {
		return err
	}
	if lock.Status.State == lcmv1.LockInactive {
		return nil
	}
	if instance.Status.Osdpl.State != lcmv1.OsdplApplied {
		return tasks.Temporaryf("deployment %s is %s, cluster maintenance has to wait", instance.Name, instance.Status.Osdpl.State)
	}
	if err := c.setClusterLock(ctx, instance, lock, lcmv1.LockInactive); err != nil {
		return err
	}
	c.GetLogger(ctx).Info(fmt.Sprintf("ClusterWorkloadLock %s inactive", lock.Name))
	c.event(instance, corev1.EventTypeNormal, ReasonClusterPrepared, "Cluster prepared for maintenance")
	return nil
}

// ReleaseCluster closes a cluster maintenance window once every tracked
// component is ready again
func (c *Coordinator) ReleaseCluster(ctx context.Context, instance *lcmv1.OpenStackDeployment) error {
	lock, err := c.EnsureClusterLock(ctx, instance)
	if err != nil {
		return err
	}
	if lock.Status.State == lcmv1.LockActive {
		return nil
	}
	if !instance.Status.HealthGreen() {
		return tasks.Temporaryf("deployment %s is not healthy, cluster maintenance stays open", instance.Name)
	}
	if err := c.setClusterLock(ctx, instance, lock, lcmv1.LockActive); err != nil {
		return err
	}
	c.GetLogger(ctx).Info(fmt.Sprintf("ClusterWorkloadLock %s active", lock.Name))
	c.event(instance, corev1.EventTypeNormal, ReasonClusterReleased, "Cluster released from maintenance")
	return nil
}

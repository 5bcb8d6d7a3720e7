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
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

const namespace = "openstack"

var managedLabels = map[string]string{"openstack-compute-node": "enabled"}

// journalHook records its calls together with the inner state of the lock
// at call time
type journalHook struct {
	name    string
	client  client.Client
	mu      *sync.Mutex
	journal *[]string
	inner   *[]lcmv1.LockState
	err     error
}

func (h *journalHook) note(ctx context.Context, op, node string) {
	lock := &lcmv1.NodeWorkloadLock{}
	Expect(h.client.Get(ctx, client.ObjectKey{Name: lcmv1.NodeLockName(node)}, lock)).To(Succeed())
	h.mu.Lock()
	defer h.mu.Unlock()
	*h.journal = append(*h.journal, op+" "+h.name)
	*h.inner = append(*h.inner, lock.Status.InnerState)
}

func (h *journalHook) PrepareNode(ctx context.Context, _ *lcmv1.OpenStackDeployment, node string) error {
	h.note(ctx, "prepare", node)
	return h.err
}

func (h *journalHook) ReleaseNode(ctx context.Context, _ *lcmv1.OpenStackDeployment, node string) error {
	h.note(ctx, "release", node)
	return nil
}

func node(name string, labels map[string]string) *corev1.Node {
	return &corev1.Node{ObjectMeta: metav1.ObjectMeta{Name: name, Labels: labels}}
}

func nodeRequest(name, nodeName string) *lcmv1.NodeMaintenanceRequest {
	return &lcmv1.NodeMaintenanceRequest{
		ObjectMeta: metav1.ObjectMeta{Name: name},
		Spec:       lcmv1.NodeMaintenanceRequestSpec{NodeName: nodeName, Scope: lcmv1.ScopeOS},
	}
}

var _ = Describe("Maintenance controllers", func() {
	var (
		ctx      context.Context
		c        client.Client
		coord    *Coordinator
		nodeRec  *NodeMaintenanceRequestReconciler
		clRec    *ClusterMaintenanceRequestReconciler
		journal  []string
		inner    []lcmv1.LockState
		compute  *journalHook
		instance *lcmv1.OpenStackDeployment
	)

	build := func(objs ...client.Object) {
		s := runtime.NewScheme()
		Expect(clientgoscheme.AddToScheme(s)).To(Succeed())
		Expect(lcmv1.AddToScheme(s)).To(Succeed())

		c = fake.NewClientBuilder().
			WithScheme(s).
			WithObjects(append(objs,
				instance,
				node("cmp-1", managedLabels),
				node("cmp-2", managedLabels),
				node("ctl-1", map[string]string{"role": "control"}),
			)...).
			WithStatusSubresource(&lcmv1.OpenStackDeployment{}, &lcmv1.NodeWorkloadLock{}, &lcmv1.ClusterWorkloadLock{}).
			Build()

		mu := &sync.Mutex{}
		compute = &journalHook{name: services.Compute, client: c, mu: mu, journal: &journal, inner: &inner}
		coord = &Coordinator{
			Client:   c,
			Registry: services.NewDefaultRegistry(),
			Hooks: map[string]Hook{
				services.Compute:    compute,
				services.Networking: &journalHook{name: services.Networking, client: c, mu: mu, journal: &journal, inner: &inner},
			},
			ManagedLabels: managedLabels,
			Recorder:      record.NewFakeRecorder(100),
		}
		nodeRec = &NodeMaintenanceRequestReconciler{Client: c, Coordinator: coord, Namespace: namespace}
		clRec = &ClusterMaintenanceRequestReconciler{Client: c, Coordinator: coord, Namespace: namespace}
	}

	getLock := func(nodeName string) *lcmv1.NodeWorkloadLock {
		lock := &lcmv1.NodeWorkloadLock{}
		Expect(c.Get(ctx, client.ObjectKey{Name: lcmv1.NodeLockName(nodeName)}, lock)).To(Succeed())
		return lock
	}

	reconcileNode := func(name string) (ctrl.Result, error) {
		return nodeRec.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: name}})
	}

	BeforeEach(func() {
		ctx = context.Background()
		journal = nil
		inner = nil
		instance = &lcmv1.OpenStackDeployment{
			ObjectMeta: metav1.ObjectMeta{Name: "osdpl", Namespace: namespace},
			Spec: lcmv1.OpenStackDeploymentSpec{
				OpenStackVersion: lcmv1.OpenStackAntelope,
				Features: lcmv1.FeaturesSpec{
					Services: []string{services.Identity, services.Networking, services.Compute},
				},
			},
			Status: lcmv1.OpenStackDeploymentStatus{
				Osdpl: lcmv1.OsdplStatus{State: lcmv1.OsdplApplied},
			},
		}
	})

	When("a node maintenance request is created for a managed node", func() {
		BeforeEach(func() {
			build(nodeRequest("req-1", "cmp-1"))
		})

		It("prepares the node with hooks in maintenance order", func() {
			result, err := reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(ctrl.Result{}))

			Expect(journal).To(Equal([]string{"prepare compute", "prepare networking"}))
			// every hook ran while maintenance was in progress
			Expect(inner).To(HaveEach(lcmv1.LockActive))

			lock := getLock("cmp-1")
			Expect(lock.Status.State).To(Equal(lcmv1.LockInactive))
			Expect(lock.Status.InnerState).To(Equal(lcmv1.LockActive))
			Expect(lock.Spec.ControllerName).To(Equal(lcmv1.ControllerName))
			Expect(lock.OwnerReferences).To(HaveLen(1))
			Expect(lock.OwnerReferences[0].Name).To(Equal("cmp-1"))

			req := &lcmv1.NodeMaintenanceRequest{}
			Expect(c.Get(ctx, client.ObjectKey{Name: "req-1"}, req)).To(Succeed())
			Expect(req.Finalizers).To(ContainElement(lcmv1.MaintenanceFinalizer))

			// a second pass is a no-op
			_, err = reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(journal).To(HaveLen(2))
		})

		It("releases the node in reverse order once the request is gone", func() {
			_, err := reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())

			req := &lcmv1.NodeMaintenanceRequest{}
			Expect(c.Get(ctx, client.ObjectKey{Name: "req-1"}, req)).To(Succeed())
			Expect(c.Delete(ctx, req)).To(Succeed())

			_, err = reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(journal).To(Equal([]string{
				"prepare compute", "prepare networking", "release networking", "release compute",
			}))

			lock := getLock("cmp-1")
			Expect(lock.Status.State).To(Equal(lcmv1.LockActive))
			Expect(lock.Status.InnerState).To(Equal(lcmv1.LockInactive))

			err = c.Get(ctx, client.ObjectKey{Name: "req-1"}, req)
			Expect(k8s_errors.IsNotFound(err)).To(BeTrue())
		})
	})

	When("another node is in maintenance", func() {
		BeforeEach(func() {
			busy := &lcmv1.NodeWorkloadLock{
				ObjectMeta: metav1.ObjectMeta{Name: lcmv1.NodeLockName("cmp-2")},
				Spec:       lcmv1.NodeWorkloadLockSpec{NodeName: "cmp-2", ControllerName: lcmv1.ControllerName},
				Status:     lcmv1.NodeWorkloadLockStatus{State: lcmv1.LockInactive, InnerState: lcmv1.LockActive},
			}
			build(nodeRequest("req-1", "cmp-1"), busy)
		})

		It("defers the request", func() {
			result, err := reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(DefaultBackoff))
			Expect(journal).To(BeEmpty())

			lock := getLock("cmp-1")
			Expect(lock.Status.State).To(Equal(lcmv1.LockActive))
			Expect(lock.Status.InnerState).To(Equal(lcmv1.LockInactive))
		})
	})

	When("a hook fails", func() {
		BeforeEach(func() {
			build(nodeRequest("req-1", "cmp-1"))
		})

		It("marks the lock failed on a permanent error", func() {
			compute.err = tasks.Permanentf("instance vm-1 is in ERROR state")

			_, err := reconcileNode("req-1")
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, reconcile.TerminalError(nil))).To(BeTrue())

			lock := getLock("cmp-1")
			Expect(lock.Status.State).To(Equal(lcmv1.LockFailed))
			Expect(lock.Status.ErrorMessage).To(ContainSubstring("vm-1 is in ERROR state"))
			Expect(journal).To(Equal([]string{"prepare compute"}))
		})

		It("marks the lock failed on an OpenStack error", func() {
			compute.err = errors.New("live migration of vm-1: No valid host was found")

			_, err := reconcileNode("req-1")
			Expect(errors.Is(err, reconcile.TerminalError(nil))).To(BeTrue())

			lock := getLock("cmp-1")
			Expect(lock.Status.State).To(Equal(lcmv1.LockFailed))
			Expect(lock.Status.ErrorMessage).To(ContainSubstring("No valid host was found"))

			// no automatic retry
			_, err = reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(journal).To(Equal([]string{"prepare compute"}))
			Expect(getLock("cmp-1").Status.State).To(Equal(lcmv1.LockFailed))
		})

		It("waits while instances are left for manual migration", func() {
			compute.err = tasks.Temporaryf("2 instances left on cmp-1, waiting for manual migration")

			result, err := reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(DefaultBackoff))

			lock := getLock("cmp-1")
			Expect(lock.Status.State).To(Equal(lcmv1.LockActive))
			Expect(lock.Status.InnerState).To(Equal(lcmv1.LockActive))

			// the node keeps its place, the retry resumes it
			compute.err = nil
			_, err = reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			Expect(getLock("cmp-1").Status.State).To(Equal(lcmv1.LockInactive))
		})
	})

	When("the node is not managed", func() {
		BeforeEach(func() {
			build(nodeRequest("req-1", "ctl-1"))
		})

		It("ignores the request", func() {
			_, err := reconcileNode("req-1")
			Expect(err).ToNot(HaveOccurred())
			err = c.Get(ctx, client.ObjectKey{Name: lcmv1.NodeLockName("ctl-1")}, &lcmv1.NodeWorkloadLock{})
			Expect(k8s_errors.IsNotFound(err)).To(BeTrue())
			Expect(journal).To(BeEmpty())
		})
	})

	When("a cluster maintenance request is created", func() {
		reconcileCluster := func() (ctrl.Result, error) {
			return clRec.Reconcile(ctx, ctrl.Request{NamespacedName: types.NamespacedName{Name: "cluster"}})
		}
		getClusterLock := func() *lcmv1.ClusterWorkloadLock {
			lock := &lcmv1.ClusterWorkloadLock{}
			Expect(c.Get(ctx, client.ObjectKey{Name: lcmv1.ClusterLockName("osdpl")}, lock)).To(Succeed())
			return lock
		}

		It("waits for the deployment to be applied", func() {
			instance.Status.Osdpl.State = lcmv1.OsdplApplying
			build(&lcmv1.ClusterMaintenanceRequest{ObjectMeta: metav1.ObjectMeta{Name: "cluster"}})

			result, err := reconcileCluster()
			Expect(err).ToNot(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(DefaultBackoff))
			Expect(getClusterLock().Status.State).To(Equal(lcmv1.LockActive))
		})

		It("opens the window and closes it once healthy", func() {
			instance.Status.Health = map[string]map[string]lcmv1.HealthRecord{
				"nova": {"compute": {Status: lcmv1.HealthProgressing, Generation: 1}},
			}
			build(&lcmv1.ClusterMaintenanceRequest{ObjectMeta: metav1.ObjectMeta{Name: "cluster"}})

			_, err := reconcileCluster()
			Expect(err).ToNot(HaveOccurred())
			Expect(getClusterLock().Status.State).To(Equal(lcmv1.LockInactive))
			current, err := lcmv1.GetOpenStackDeployment(ctx, c, namespace)
			Expect(err).ToNot(HaveOccurred())
			Expect(current.Status.Maintenance.ClusterLock).To(Equal(lcmv1.LockInactive))

			req := &lcmv1.ClusterMaintenanceRequest{}
			Expect(c.Get(ctx, client.ObjectKey{Name: "cluster"}, req)).To(Succeed())
			Expect(c.Delete(ctx, req)).To(Succeed())

			// not healthy yet
			result, err := reconcileCluster()
			Expect(err).ToNot(HaveOccurred())
			Expect(result.RequeueAfter).To(Equal(DefaultBackoff))
			Expect(getClusterLock().Status.State).To(Equal(lcmv1.LockInactive))

			current, err = lcmv1.GetOpenStackDeployment(ctx, c, namespace)
			Expect(err).ToNot(HaveOccurred())
			patch := client.MergeFrom(current.DeepCopy())
			current.Status.Health["nova"]["compute"] = lcmv1.HealthRecord{Status: lcmv1.HealthReady, Generation: 2}
			Expect(c.Status().Patch(ctx, current, patch)).To(Succeed())

			_, err = reconcileCluster()
			Expect(err).ToNot(HaveOccurred())
			Expect(getClusterLock().Status.State).To(Equal(lcmv1.LockActive))
			err = c.Get(ctx, client.ObjectKey{Name: "cluster"}, req)
			Expect(k8s_errors.IsNotFound(err)).To(BeTrue())
		})
	})
})

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

package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	condition "github.com/openstack-k8s-operators/lib-common/modules/common/condition"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/tools/record"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	"github.com/openstack-k8s-operators/osdpl-operator/api/test/helpers"
	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/bundle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/credentials"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/helm"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/layers"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/lifecycle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/osdpl"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/settings"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/wait"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/workflow"
)

const namespace = "openstack"

type helmCall struct {
	Op      string
	Release string
	Values  layers.Values
}

// fakeHelm records every call and replays scripted upgrade results per
// release
type fakeHelm struct {
	mu        sync.Mutex
	calls     []helmCall
	results   map[string][]helm.Result
	onUpgrade func(ctx context.Context, rel bundle.Release)
}

func (f *fakeHelm) record(op, name string, values layers.Values) helm.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, helmCall{Op: op, Release: name, Values: values})
	if op != "upgrade" {
		return helm.Result{Kind: helm.ResultOK}
	}
	queue := f.results[name]
	if len(queue) == 0 {
		return helm.Result{Kind: helm.ResultOK}
	}
	f.results[name] = queue[1:]
	return queue[0]
}

func (f *fakeHelm) UpgradeInstall(ctx context.Context, _ string, rel bundle.Release) (helm.Result, error) {
	res := f.record("upgrade", rel.Name, rel.Values)
	if f.onUpgrade != nil && res.Kind == helm.ResultOK {
		f.onUpgrade(ctx, rel)
	}
	return res, nil
}

func (f *fakeHelm) Uninstall(_ context.Context, _, name string) (helm.Result, error) {
	return f.record("uninstall", name, nil), nil
}

func (f *fakeHelm) Rollback(_ context.Context, _, name string) (helm.Result, error) {
	return f.record("rollback", name, nil), nil
}

func (f *fakeHelm) Status(context.Context, string, string) (*helm.ReleaseStatus, error) {
	return nil, nil
}

func (f *fakeHelm) released(op string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c.Release)
		}
	}
	return out
}

func (f *fakeHelm) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func newDeployment(enabled ...string) *lcmv1.OpenStackDeployment {
	return helpers.NewOpenStackDeployment(types.NamespacedName{Namespace: namespace, Name: "osdpl"}, enabled...)
}

var infraReleases = []string{"openstack-mariadb", "openstack-rabbitmq", "openstack-memcached"}

var _ = Describe("OpenStackDeployment controller", func() {
	var (
		ctx      context.Context
		c        client.Client
		fh       *fakeHelm
		r        *OpenStackDeploymentReconciler
		instance *lcmv1.OpenStackDeployment
		th       *helpers.TestHelper
	)
	key := types.NamespacedName{Namespace: namespace, Name: "osdpl"}

	build := func(objs ...client.Object) {
		s := runtime.NewScheme()
		Expect(clientgoscheme.AddToScheme(s)).To(Succeed())
		Expect(lcmv1.AddToScheme(s)).To(Succeed())

		c = fake.NewClientBuilder().
			WithScheme(s).
			WithObjects(append(objs, instance)...).
			WithStatusSubresource(&lcmv1.OpenStackDeployment{}, &lcmv1.HelmBundle{}).
			Build()

		registry := services.NewDefaultRegistry()
		renderer, err := bundle.NewRenderer(registry, "1.0.0")
		Expect(err).ToNot(HaveOccurred())

		recorder := record.NewFakeRecorder(1000)
		fh = &fakeHelm{results: map[string][]helm.Result{}}
		th = helpers.NewTestHelper(ctx, c, time.Second, 10*time.Millisecond, logger)
		r = &OpenStackDeploymentReconciler{
			Client:   c,
			Scheme:   s,
			Recorder: recorder,
			Registry: registry,
			Renderer: renderer,
			Driver: &lifecycle.Driver{
				Client:   c,
				Helm:     fh,
				Registry: registry,
				Recorder: recorder,
				Workflow: workflow.NewStore(c),
				Poller:   wait.New(10*time.Millisecond, 5*time.Second),
			},
			Credentials: credentials.NewProvider(c),
			Settings:    &settings.Settings{TaskBackoff: time.Millisecond},
			RuntimeID:   "run-1",
			Version:     "1.0.0",
		}
	}

	reconcileOnce := func() (ctrl.Result, error) {
		return r.Reconcile(ctx, ctrl.Request{NamespacedName: key})
	}

	// the first pass only adds the finalizer
	converge := func() (ctrl.Result, error) {
		_, err := reconcileOnce()
		Expect(err).ToNot(HaveOccurred())
		return reconcileOnce()
	}

	get := func() *lcmv1.OpenStackDeployment {
		return th.GetOpenStackDeployment(key)
	}

	update := func(mutate func(*lcmv1.OpenStackDeployment)) {
		th.UpdateOpenStackDeployment(key, mutate)
	}

	bundleExists := func(service string) bool {
		return th.HelmBundleExists(types.NamespacedName{Namespace: namespace, Name: lifecycle.BundleName("osdpl", service)})
	}

	BeforeEach(func() {
		ctx = context.Background()
		instance = newDeployment(services.Identity)
	})

	When("a deployment is created", func() {
		BeforeEach(func() {
			build()
		})

		It("adds the finalizer and initializes the conditions on the first pass", func() {
			_, err := reconcileOnce()
			Expect(err).ToNot(HaveOccurred())

			o := get()
			Expect(o.Finalizers).To(ContainElement(lcmv1.OpenStackDeploymentFinalizer))
			Expect(o.Status.Conditions.Has(lcmv1.ServicesReadyCondition)).To(BeTrue())
			Expect(o.Status.Conditions.IsTrue(condition.ReadyCondition)).To(BeFalse())
			th.ExpectCondition(key, lcmv1.ServicesReadyCondition, corev1.ConditionUnknown)
			Expect(fh.released("upgrade")).To(BeEmpty())
		})

		It("applies every resolved service", func() {
			result, err := converge()
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(ctrl.Result{}))

			Expect(fh.released("upgrade")).To(ConsistOf(append(infraReleases, "openstack-keystone")))

			o := get()
			Expect(o.Status.Osdpl.State).To(Equal(lcmv1.OsdplApplied))
			Expect(o.Status.Osdpl.LastAppliedServices).To(Equal([]string{
				services.Database, services.Messaging, services.Memcached, services.Identity,
			}))
			Expect(o.Status.Osdpl.Changes).ToNot(BeEmpty())
			Expect(o.Status.OpenStackVersion).To(Equal(lcmv1.OpenStackAntelope))
			Expect(o.Status.Version).To(Equal("1.0.0"))
			Expect(o.Status.Fingerprint).ToNot(BeEmpty())
			Expect(o.Annotations).To(HaveKey(lcmv1.LastAppliedAnnotation))
			Expect(o.IsReady()).To(BeTrue())

			st := o.Status.Services[services.Identity]
			Expect(st.State).To(Equal(lcmv1.ServiceApplied))
			Expect(st.RuntimeID).To(Equal("run-1"))
			Expect(st.Fingerprint).ToNot(BeEmpty())
			Expect(o.Status.Children).To(HaveKeyWithValue(services.Identity, true))
			Expect(bundleExists(services.Identity)).To(BeTrue())

			secret := &corev1.Secret{}
			Expect(c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: credentials.SecretName(lcmv1.AdminCredentials)}, secret)).To(Succeed())
		})

		It("skips services this process already applied", func() {
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			fh.reset()

			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())
			Expect(fh.released("upgrade")).To(BeEmpty())
			Expect(get().Status.Osdpl.Changes).To(BeEmpty())
		})

		It("applies nothing after a restart of the same build", func() {
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			fh.reset()

			restarted := *r
			restarted.Driver = &lifecycle.Driver{
				Client:   c,
				Helm:     fh,
				Registry: r.Registry,
				Recorder: r.Recorder,
				Workflow: workflow.NewStore(c),
				Poller:   wait.New(10*time.Millisecond, 5*time.Second),
			}
			_, err = restarted.Reconcile(ctx, ctrl.Request{NamespacedName: key})
			Expect(err).ToNot(HaveOccurred())
			Expect(fh.released("upgrade")).To(BeEmpty())
			Expect(get().Status.Services[services.Identity].RuntimeID).To(Equal("run-1"))
		})

		It("applies again after an engine upgrade", func() {
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			fh.reset()

			r.RuntimeID = "run-2"
			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())
			Expect(fh.released("upgrade")).To(HaveLen(4))
			Expect(get().Status.Services[services.Identity].RuntimeID).To(Equal("run-2"))
		})

		It("deletes services removed from the spec", func() {
			update(func(o *lcmv1.OpenStackDeployment) {
				o.Spec.Features.Services = []string{services.Identity, services.Dashboard}
			})
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			Expect(bundleExists(services.Dashboard)).To(BeTrue())
			fh.reset()

			update(func(o *lcmv1.OpenStackDeployment) {
				o.Spec.Features.Services = []string{services.Identity}
			})
			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())

			Expect(fh.released("uninstall")).To(Equal([]string{"openstack-horizon"}))
			Expect(bundleExists(services.Dashboard)).To(BeFalse())
			o := get()
			Expect(o.Status.Services).ToNot(HaveKey(services.Dashboard))
			Expect(o.Status.Children).ToNot(HaveKey(services.Dashboard))
			Expect(o.Status.Osdpl.LastAppliedServices).ToNot(ContainElement(services.Dashboard))
		})

		It("retries a temporary helm failure in the next wave", func() {
			fh.results["openstack-keystone"] = []helm.Result{{Kind: helm.ResultFatal, Output: helm.Output{Stderr: "connection refused", ExitCode: 1}}}

			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			Expect(fh.released("upgrade")).To(HaveLen(5))
			Expect(get().Status.Services[services.Identity].State).To(Equal(lcmv1.ServiceApplied))
		})

		It("deletes all children in reverse order when the deployment is deleted", func() {
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			fh.reset()

			th.DeleteOpenStackDeployment(key)
			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())

			Expect(fh.released("uninstall")).To(Equal([]string{
				"openstack-keystone", "openstack-memcached", "openstack-rabbitmq", "openstack-mariadb",
			}))
			Expect(bundleExists(services.Identity)).To(BeFalse())
			th.AssertOpenStackDeploymentDoesNotExist(key)
		})
	})

	When("the deployment is a draft", func() {
		BeforeEach(func() {
			instance.Spec.Draft = true
			build()
		})

		It("applies nothing", func() {
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			Expect(fh.calls).To(BeEmpty())
			Expect(bundleExists(services.Identity)).To(BeFalse())
		})
	})

	When("the spec is invalid", func() {
		It("fails terminally on an unknown service", func() {
			instance = newDeployment("object-storage")
			build()

			_, err := converge()
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, reconcile.TerminalError(nil))).To(BeTrue())

			o := get()
			Expect(o.Status.Osdpl.State).To(Equal(lcmv1.OsdplFailed))
			Expect(o.Status.Osdpl.Cause).To(ContainSubstring("object-storage"))
			Expect(o.Status.Conditions.IsFalse(lcmv1.ServicesReadyCondition)).To(BeTrue())
		})

		It("applies the other services when one cannot be rendered", func() {
			instance.Spec.Common.OpenStack = runtime.RawExtension{Raw: []byte(`{"pod":"flat"}`)}
			build()

			_, err := converge()
			Expect(errors.Is(err, reconcile.TerminalError(nil))).To(BeTrue())
			Expect(fh.released("upgrade")).To(ConsistOf(infraReleases))

			o := get()
			Expect(o.Status.Services[services.Identity].State).To(Equal(lcmv1.ServiceFailed))
			Expect(o.Status.Services[services.Identity].Error).ToNot(BeEmpty())
			Expect(o.Status.Services[services.Database].State).To(Equal(lcmv1.ServiceApplied))
			Expect(o.Status.Osdpl.State).To(Equal(lcmv1.OsdplFailed))
		})
	})

	When("a service needs the ceph secret", func() {
		BeforeEach(func() {
			instance = newDeployment(services.Image)
			build()
		})

		It("waits for the secret and applies the rest", func() {
			result, err := converge()
			Expect(err).ToNot(HaveOccurred())
			Expect(result.RequeueAfter).To(BeNumerically(">", 0))
			Expect(fh.released("upgrade")).ToNot(ContainElement("openstack-glance"))

			o := get()
			Expect(o.Status.Services[services.Image].State).To(Equal(lcmv1.ServiceWaiting))
			Expect(o.Status.Services[services.Identity].State).To(Equal(lcmv1.ServiceApplied))
			Expect(o.Status.Conditions.IsFalse(lcmv1.ServicesReadyCondition)).To(BeTrue())

			Expect(c.Create(ctx, &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{Name: CephSecretName, Namespace: namespace},
				Data:       map[string][]byte{"client.admin": []byte("key")},
			})).To(Succeed())

			result, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())
			Expect(result).To(Equal(ctrl.Result{}))
			Expect(fh.released("upgrade")).To(ContainElement("openstack-glance"))

			o = get()
			Expect(o.Status.Services[services.Image].State).To(Equal(lcmv1.ServiceApplied))
			Expect(o.Status.WatchedSecrets).To(HaveKey(CephSecretName))
		})

		It("applies the dependent services again when the secret changes", func() {
			secret := &corev1.Secret{
				ObjectMeta: metav1.ObjectMeta{Name: CephSecretName, Namespace: namespace},
				Data:       map[string][]byte{"client.admin": []byte("key")},
			}
			Expect(c.Create(ctx, secret)).To(Succeed())
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			fh.reset()

			secret.Data["client.admin"] = []byte("rotated")
			Expect(c.Update(ctx, secret)).To(Succeed())
			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())
			Expect(fh.released("upgrade")).To(Equal([]string{"openstack-glance"}))
		})
	})

	When("a credential rotation is requested", func() {
		BeforeEach(func() {
			build()
		})

		It("rotates the password and applies the services again", func() {
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			secretKey := types.NamespacedName{Namespace: namespace, Name: credentials.SecretName(lcmv1.AdminCredentials)}
			before := &corev1.Secret{}
			Expect(c.Get(ctx, secretKey, before)).To(Succeed())
			fh.reset()

			o := get()
			o.Status.Credentials = map[string]lcmv1.CredentialsStatus{
				lcmv1.AdminCredentials: {RotationID: 1},
			}
			Expect(c.Status().Update(ctx, o)).To(Succeed())

			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())

			after := &corev1.Secret{}
			Expect(c.Get(ctx, secretKey, after)).To(Succeed())
			Expect(after.Data[credentials.PasswordKey]).ToNot(Equal(before.Data[credentials.PasswordKey]))
			Expect(get().Status.Credentials[lcmv1.AdminCredentials].AppliedRotationID).To(BeEquivalentTo(1))
			Expect(fh.released("upgrade")).To(ContainElement("openstack-keystone"))
		})
	})

	When("the OpenStack release changes", func() {
		BeforeEach(func() {
			build(helpers.ReadyDeployment(types.NamespacedName{Namespace: namespace, Name: "keystone-api"}))
			// the chart runs its db sync jobs to completion
			fh.onUpgrade = func(ctx context.Context, rel bundle.Release) {
				if rel.Name != "openstack-keystone" {
					return
				}
				for _, name := range []string{"keystone-db-sync-expand", "keystone-db-sync-migrate", "keystone-db-sync-contract"} {
					j := &batchv1.Job{ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace}}
					j.Status.Succeeded = 1
					_ = c.Create(ctx, j)
				}
			}
		})

		It("runs the upgrade stages before applying the new release", func() {
			_, err := converge()
			Expect(err).ToNot(HaveOccurred())
			fh.reset()

			update(func(o *lcmv1.OpenStackDeployment) {
				o.Spec.OpenStackVersion = lcmv1.OpenStackBobcat
			})
			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())

			calls := fh.released("upgrade")
			Expect(calls).To(HaveLen(8))
			Expect(calls[:4]).To(Equal([]string{
				"openstack-keystone", "openstack-keystone", "openstack-keystone", "openstack-keystone",
			}))
			expand, _ := layers.Lookup(fh.calls[0].Values, "manifests", "job_db_sync_expand")
			Expect(expand).To(BeTrue())

			o := get()
			Expect(o.Status.OpenStackVersion).To(Equal(lcmv1.OpenStackBobcat))
			Expect(o.Status.Conditions.IsTrue(lcmv1.UpgradeReadyCondition)).To(BeTrue())

			cm := &corev1.ConfigMap{}
			Expect(c.Get(ctx, types.NamespacedName{Namespace: namespace, Name: workflow.ConfigMapName("osdpl", services.Identity)}, cm)).To(Succeed())
		})
	})

	When("image precaching is enabled", func() {
		BeforeEach(func() {
			build(&appsv1.DaemonSet{
				ObjectMeta: metav1.ObjectMeta{Name: osdpl.PrecacheName, Namespace: namespace},
				Status:     appsv1.DaemonSetStatus{DesiredNumberScheduled: 2},
			})
			r.Settings.PrecacheEnabled = true
		})

		It("applies nothing until every node cached the images", func() {
			result, err := converge()
			Expect(err).ToNot(HaveOccurred())
			Expect(result.RequeueAfter).To(BeNumerically(">", 0))
			Expect(fh.calls).To(BeEmpty())
			Expect(get().Status.Conditions.IsFalse(lcmv1.PrecacheReadyCondition)).To(BeTrue())

			dsKey := types.NamespacedName{Namespace: namespace, Name: osdpl.PrecacheName}
			ds := &appsv1.DaemonSet{}
			Expect(c.Get(ctx, dsKey, ds)).To(Succeed())
			Expect(ds.Annotations).To(HaveKey(osdpl.PrecacheImagesAnnotation))
			Expect(ds.Spec.Template.Spec.InitContainers).ToNot(BeEmpty())

			ds = th.SimulateDaemonSetReady(dsKey)

			_, err = reconcileOnce()
			Expect(err).ToNot(HaveOccurred())
			Expect(fh.released("upgrade")).To(HaveLen(4))

			o := get()
			Expect(o.Status.Hash).To(HaveKeyWithValue(lcmv1.PrecacheHash, ds.Annotations[osdpl.PrecacheImagesAnnotation]))
			Expect(o.Status.Conditions.IsTrue(lcmv1.PrecacheReadyCondition)).To(BeTrue())
		})
	})
})

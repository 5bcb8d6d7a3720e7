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

// Package helpers contains test helpers for OpenStackDeployment reconcilers.
package helpers

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"github.com/onsi/gomega"
	"github.com/openstack-k8s-operators/lib-common/modules/common/condition"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

// TestHelper is a collection of helpers for testing the deployment
// reconcilers against a kubernetes client
type TestHelper struct {
	Ctx       context.Context
	K8sClient client.Client
	Timeout   time.Duration
	Interval  time.Duration
	Logger    logr.Logger
}

// NewTestHelper returns a TestHelper
func NewTestHelper(
	ctx context.Context,
	k8sClient client.Client,
	timeout time.Duration,
	interval time.Duration,
	logger logr.Logger,
) *TestHelper {
	return &TestHelper{
		Ctx:       ctx,
		K8sClient: k8sClient,
		Timeout:   timeout,
		Interval:  interval,
		Logger:    logger,
	}
}

// NewOpenStackDeployment returns an unsaved deployment of the enabled services
//
// Example usage:
//
//	instance := helpers.NewOpenStackDeployment(name, "identity", "compute")
func NewOpenStackDeployment(name types.NamespacedName, enabled ...string) *lcmv1.OpenStackDeployment {
	return &lcmv1.OpenStackDeployment{
		ObjectMeta: metav1.ObjectMeta{Name: name.Name, Namespace: name.Namespace},
		Spec: lcmv1.OpenStackDeploymentSpec{
			OpenStackVersion: lcmv1.OpenStackAntelope,
			Region:           "RegionOne",
			Features:         lcmv1.FeaturesSpec{Services: enabled},
		},
	}
}

// GetOpenStackDeployment returns the deployment with the given name
func (th *TestHelper) GetOpenStackDeployment(name types.NamespacedName) *lcmv1.OpenStackDeployment {
	instance := &lcmv1.OpenStackDeployment{}
	gomega.Eventually(func(g gomega.Gomega) {
		g.Expect(th.K8sClient.Get(th.Ctx, name, instance)).Should(gomega.Succeed())
	}, th.Timeout, th.Interval).Should(gomega.Succeed())
	return instance
}

// UpdateOpenStackDeployment applies mutate to the stored spec and metadata
func (th *TestHelper) UpdateOpenStackDeployment(name types.NamespacedName, mutate func(*lcmv1.OpenStackDeployment)) {
	gomega.Eventually(func(g gomega.Gomega) {
		instance := &lcmv1.OpenStackDeployment{}
		g.Expect(th.K8sClient.Get(th.Ctx, name, instance)).Should(gomega.Succeed())
		mutate(instance)
		g.Expect(th.K8sClient.Update(th.Ctx, instance)).Should(gomega.Succeed())
	}, th.Timeout, th.Interval).Should(gomega.Succeed())
}

// DeleteOpenStackDeployment requests deletion of the deployment. Finalizers
// keep it around until the reconciler removes them.
func (th *TestHelper) DeleteOpenStackDeployment(name types.NamespacedName) {
	instance := th.GetOpenStackDeployment(name)
	gomega.Expect(th.K8sClient.Delete(th.Ctx, instance)).Should(gomega.Succeed())
}

// AssertOpenStackDeploymentDoesNotExist ensures the deployment is gone
func (th *TestHelper) AssertOpenStackDeploymentDoesNotExist(name types.NamespacedName) {
	gomega.Eventually(func(g gomega.Gomega) {
		err := th.K8sClient.Get(th.Ctx, name, &lcmv1.OpenStackDeployment{})
		g.Expect(k8s_errors.IsNotFound(err)).To(gomega.BeTrue())
	}, th.Timeout, th.Interval).Should(gomega.Succeed())
}

// ExpectCondition asserts the status of a deployment condition
func (th *TestHelper) ExpectCondition(
	name types.NamespacedName,
	conditionType condition.Type,
	expectedStatus corev1.ConditionStatus,
) {
	gomega.Eventually(func(g gomega.Gomega) {
		instance := &lcmv1.OpenStackDeployment{}
		g.Expect(th.K8sClient.Get(th.Ctx, name, instance)).Should(gomega.Succeed())
		c := instance.Status.Conditions.Get(conditionType)
		g.Expect(c).ToNot(gomega.BeNil(), "condition %s not set", conditionType)
		g.Expect(c.Status).To(gomega.Equal(expectedStatus), "condition %s: %s", conditionType, c.Message)
	}, th.Timeout, th.Interval).Should(gomega.Succeed())
}

// HelmBundleExists reports whether the bundle object is stored
func (th *TestHelper) HelmBundleExists(name types.NamespacedName) bool {
	err := th.K8sClient.Get(th.Ctx, name, &lcmv1.HelmBundle{})
	if k8s_errors.IsNotFound(err) {
		return false
	}
	gomega.Expect(err).ToNot(gomega.HaveOccurred())
	return true
}

// ReadyDeployment returns a Deployment whose status reports a finished
// rollout, for seeding a client
func ReadyDeployment(name types.NamespacedName) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name.Name, Namespace: name.Namespace},
		Status: appsv1.DeploymentStatus{Conditions: []appsv1.DeploymentCondition{
			{Type: appsv1.DeploymentAvailable, Status: corev1.ConditionTrue},
			{Type: appsv1.DeploymentProgressing, Status: corev1.ConditionTrue, Reason: "NewReplicaSetAvailable"},
		}},
	}
}

// SimulateDaemonSetReady marks the DaemonSet as rolled out on all its
// desired nodes
func (th *TestHelper) SimulateDaemonSetReady(name types.NamespacedName) *appsv1.DaemonSet {
	ds := &appsv1.DaemonSet{}
	gomega.Eventually(func(g gomega.Gomega) {
		g.Expect(th.K8sClient.Get(th.Ctx, name, ds)).Should(gomega.Succeed())
		desired := ds.Status.DesiredNumberScheduled
		ds.Status = appsv1.DaemonSetStatus{
			ObservedGeneration:     ds.Generation,
			DesiredNumberScheduled: desired,
			CurrentNumberScheduled: desired,
			NumberReady:            desired,
			UpdatedNumberScheduled: desired,
			NumberAvailable:        desired,
		}
		g.Expect(th.K8sClient.Update(th.Ctx, ds)).Should(gomega.Succeed())
	}, th.Timeout, th.Interval).Should(gomega.Succeed())
	th.Logger.Info("Simulated DaemonSet ready", "on", name)
	return ds
}

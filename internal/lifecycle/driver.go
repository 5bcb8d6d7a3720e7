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

// Package lifecycle applies, upgrades and deletes rendered service bundles.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/log"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/bundle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/helm"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/wait"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/workflow"
)

// Event reasons
const (
	ReasonBundleCreated = "BundleCreated"
	ReasonBundleUpdated = "BundleUpdated"
	ReasonBundleDeleted = "BundleDeleted"
	ReasonPurged        = "ImmutablePurged"
	ReasonStageDone     = "UpgradeStageCompleted"
	ReasonStageFailed   = "UpgradeStageFailed"

	// DefaultAttempts - helm upgrades retried after a recovered failure
	DefaultAttempts = 3
)

// Releaser is the helm surface the driver needs
type Releaser interface {
	UpgradeInstall(ctx context.Context, repository string, rel bundle.Release) (helm.Result, error)
	Uninstall(ctx context.Context, namespace, name string) (helm.Result, error)
	Rollback(ctx context.Context, namespace, name string) (helm.Result, error)
	Status(ctx context.Context, namespace, name string) (*helm.ReleaseStatus, error)
}

// ApplyResult -
type ApplyResult struct {
	Created bool
	Updated bool
	// Purged immutable child objects
	Purged []string
}

// Driver applies bundles through helm and tracks them in HelmBundle objects
// owned by the deployment
type Driver struct {
	Client   client.Client
	Helm     Releaser
	Registry *services.Registry
	Recorder record.EventRecorder
	Workflow *workflow.Store
	Poller   *wait.Poller
	Attempts int
}

// BundleName -
func BundleName(osdpl, service string) string {
	return fmt.Sprintf("%s-%s", osdpl, service)
}

// GetLogger -
func (d *Driver) GetLogger(ctx context.Context) logr.Logger {
	return log.FromContext(ctx).WithName("Lifecycle")
}

func (d *Driver) attempts() int {
	if d.Attempts > 0 {
		return d.Attempts
	}
	return DefaultAttempts
}

// poller bounds waits by spec.timeouts.wait of the deployment when set, by
// the process wide default otherwise
func (d *Driver) poller(instance *lcmv1.OpenStackDeployment) *wait.Poller {
	p := d.Poller
	if p == nil {
		p = wait.New(wait.DefaultInterval, lcmv1.DefaultWaitTimeout)
	}
	if instance != nil && instance.Spec.Timeouts.Wait != nil {
		return p.WithTimeout(instance.Spec.WaitTimeout())
	}
	return p
}

func (d *Driver) event(instance *lcmv1.OpenStackDeployment, eventType, reason, format string, args ...interface{}) {
	if d.Recorder != nil {
		d.Recorder.Eventf(instance, eventType, reason, format, args...)
	}
}

// Apply creates or updates the bundle of a service. An existing bundle gets
// its changed immutable children purged first. Every release is then
// installed through helm.
func (d *Driver) Apply(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	b *bundle.Bundle,
) (result *ApplyResult, _err error) {
	Log := d.GetLogger(ctx).WithValues("service", b.Service)
	start := time.Now()
	defer func() {
		observeApply(b.Service, start, _err)
	}()

	svc, ok := d.Registry.Get(b.Service)
	if !ok {
		return nil, tasks.Permanentf("unknown service %s", b.Service)
	}
	result = &ApplyResult{}

	hb := &lcmv1.HelmBundle{
		ObjectMeta: metav1.ObjectMeta{
			Name:      BundleName(instance.Name, b.Service),
			Namespace: instance.Namespace,
		},
	}
	existing := &lcmv1.HelmBundle{}
	err := d.Client.Get(ctx, client.ObjectKeyFromObject(hb), existing)
	if err != nil && !k8s_errors.IsNotFound(err) {
		return nil, tasks.Temporary(err)
	}
	if err == nil {
		purged, err := d.purgeImmutable(ctx, instance, svc.Descriptor(), existing, b)
		result.Purged = purged
		if err != nil {
			return result, err
		}
	}

	releases, err := helmReleases(b)
	if err != nil {
		return result, tasks.Permanent(err)
	}

	op, err := controllerutil.CreateOrPatch(ctx, d.Client, hb, func() error {
		if hb.Labels == nil {
			hb.Labels = map[string]string{}
		}
		hb.Labels[lcmv1.ServiceLabel] = b.Service
		if hb.Annotations == nil {
			hb.Annotations = map[string]string{}
		}
		hb.Annotations[lcmv1.FingerprintAnnotation] = b.Fingerprint
		hb.Annotations[lcmv1.EngineVersionAnnotation] = b.EngineVersion
		hb.Spec = lcmv1.HelmBundleSpec{
			Service:    b.Service,
			Repository: b.Repository,
			Releases:   releases,
		}
		return controllerutil.SetControllerReference(instance, hb, d.Client.Scheme())
	})
	if err != nil {
		return result, tasks.Temporary(err)
	}
	switch op {
	case controllerutil.OperationResultCreated:
		result.Created = true
		Log.Info(fmt.Sprintf("HelmBundle %s created", hb.Name))
		d.event(instance, corev1.EventTypeNormal, ReasonBundleCreated, "Bundle of %s created", b.Service)
	case controllerutil.OperationResultUpdated:
		result.Updated = true
		Log.Info(fmt.Sprintf("HelmBundle %s updated", hb.Name))
		d.event(instance, corev1.EventTypeNormal, ReasonBundleUpdated, "Bundle of %s updated", b.Service)
	}

	statuses := map[string]lcmv1.ReleaseStatus{}
	var installErr error
	for _, rel := range b.Releases {
		prev := hb.Status.Releases[rel.Name]
		st := lcmv1.ReleaseStatus{Revision: prev.Revision, Fingerprint: rel.Fingerprint}
		if prev.Fingerprint != rel.Fingerprint {
			st.Revision++
		}
		deployed, err := d.install(ctx, instance, b.Repository, rel)
		if err != nil {
			st = prev
			st.Status = "failed"
			st.Message = err.Error()
			statuses[rel.Name] = st
			installErr = err
			break
		}
		st.Status = "deployed"
		if deployed != nil {
			st.Revision = deployed.Version
			st.Status = deployed.Info.Status
		}
		statuses[rel.Name] = st
	}

	patch := client.MergeFrom(hb.DeepCopy())
	if hb.Status.Releases == nil {
		hb.Status.Releases = map[string]lcmv1.ReleaseStatus{}
	}
	for name, st := range statuses {
		hb.Status.Releases[name] = st
	}
	if installErr == nil {
		hb.Status.Fingerprint = b.Fingerprint
	}
	if err := d.Client.Status().Patch(ctx, hb, patch); err != nil {
		if installErr != nil {
			return result, installErr
		}
		return result, tasks.Temporary(err)
	}
	return result, installErr
}

func helmReleases(b *bundle.Bundle) ([]lcmv1.HelmRelease, error) {
	out := make([]lcmv1.HelmRelease, 0, len(b.Releases))
	for _, rel := range b.Releases {
		values, err := lcmv1.EncodeValues(rel.Values)
		if err != nil {
			return nil, fmt.Errorf("encoding values of %s: %w", rel.Name, err)
		}
		out = append(out, lcmv1.HelmRelease{
			Name:      rel.Name,
			Chart:     rel.Chart,
			Version:   rel.Version,
			Namespace: rel.Namespace,
			Values:    values,
		})
	}
	return out, nil
}

// install runs helm upgrade --install, recovering from immutable objects and
// stuck releases. A release left pending by an interrupted helm process is
// rolled back first. Returns the installed revision when helm reports it.
func (d *Driver) install(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	repository string,
	rel bundle.Release,
) (*helm.ReleaseStatus, error) {
	Log := d.GetLogger(ctx).WithValues("release", rel.Name)

	current, err := d.Helm.Status(ctx, rel.Namespace, rel.Name)
	if err != nil {
		return nil, tasks.Temporary(err)
	}
	if current.Pending() {
		Log.Info(fmt.Sprintf("Release %s is %s, rolling back", rel.Name, current.Info.Status))
		if err := d.rollback(ctx, rel); err != nil {
			return nil, err
		}
	}

	for attempt := 1; attempt <= d.attempts(); attempt++ {
		res, err := d.Helm.UpgradeInstall(ctx, repository, rel)
		if err != nil {
			return nil, tasks.Temporary(err)
		}

		switch res.Kind {
		case helm.ResultOK:
			deployed, err := d.Helm.Status(ctx, rel.Namespace, rel.Name)
			if err != nil {
				Log.Info(fmt.Sprintf("Reading status of %s: %v", rel.Name, err))
				return nil, nil
			}
			return deployed, nil
		case helm.ResultImmutable:
			Log.Info(fmt.Sprintf("%s %s has an immutable field change, recreating", res.Object.Kind, res.Object.Name))
			if err := d.purge(ctx, instance, res.Object.Kind, res.Object.Name); err != nil {
				return nil, err
			}
		case helm.ResultPending:
			Log.Info(fmt.Sprintf("Release %s has a pending operation, rolling back", rel.Name))
			if err := d.rollback(ctx, rel); err != nil {
				return nil, err
			}
		case helm.ResultNoDeployed:
			Log.Info(fmt.Sprintf("Release %s has no deployed revision, uninstalling", rel.Name))
			r, err := d.Helm.Uninstall(ctx, rel.Namespace, rel.Name)
			if err != nil {
				return nil, tasks.Temporary(err)
			}
			if r.Kind != helm.ResultOK {
				return nil, tasks.Temporaryf("helm uninstall %s: %s", rel.Name, r.Message())
			}
		default:
			return nil, tasks.Temporaryf("helm upgrade %s: %s", rel.Name, res.Message())
		}
	}
	return nil, tasks.Temporaryf("helm upgrade %s not recovered after %d attempts", rel.Name, d.attempts())
}

func (d *Driver) rollback(ctx context.Context, rel bundle.Release) error {
	r, err := d.Helm.Rollback(ctx, rel.Namespace, rel.Name)
	if err != nil {
		return tasks.Temporary(err)
	}
	if r.Kind != helm.ResultOK {
		return tasks.Temporaryf("helm rollback %s: %s", rel.Name, r.Message())
	}
	return nil
}

// Delete uninstalls the releases of a service and removes its bundle. An
// absent bundle is not an error.
func (d *Driver) Delete(ctx context.Context, instance *lcmv1.OpenStackDeployment, service string) error {
	Log := d.GetLogger(ctx).WithValues("service", service)

	hb := &lcmv1.HelmBundle{}
	key := client.ObjectKey{Namespace: instance.Namespace, Name: BundleName(instance.Name, service)}
	err := d.Client.Get(ctx, key, hb)
	if k8s_errors.IsNotFound(err) {
		Log.Info(fmt.Sprintf("HelmBundle %s already absent", key.Name))
		return nil
	}
	if err != nil {
		return tasks.Temporary(err)
	}

	for i := len(hb.Spec.Releases) - 1; i >= 0; i-- {
		rel := hb.Spec.Releases[i]
		res, err := d.Helm.Uninstall(ctx, rel.Namespace, rel.Name)
		if err != nil {
			return tasks.Temporary(err)
		}
		if res.Kind != helm.ResultOK {
			return tasks.Temporaryf("helm uninstall %s: %s", rel.Name, res.Message())
		}
	}

	err = d.Client.Delete(ctx, hb, client.PropagationPolicy(metav1.DeletePropagationForeground))
	if err != nil && !k8s_errors.IsNotFound(err) {
		return tasks.Temporary(err)
	}
	err = d.poller(instance).Until(ctx, "HelmBundle "+key.Name+" deletion", func(ctx context.Context) (bool, error) {
		err := d.Client.Get(ctx, key, &lcmv1.HelmBundle{})
		if k8s_errors.IsNotFound(err) {
			return true, nil
		}
		return false, err
	})
	if err != nil {
		return tasks.Temporary(err)
	}

	Log.Info(fmt.Sprintf("HelmBundle %s deleted", key.Name))
	d.event(instance, corev1.EventTypeNormal, ReasonBundleDeleted, "Bundle of %s deleted", service)
	return nil
}

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

package lifecycle

import (
	"context"
	"fmt"

	"github.com/openstack-k8s-operators/lib-common/modules/common/util"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/bundle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/health"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/layers"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

// StageError reports the upgrade stage a service failed in
type StageError struct {
	Service string
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("upgrade of %s failed in stage %s: %v", e.Service, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Upgrade moves a service to target through its ordered stages. Every stage
// applies the bundle with the stage values layered over the release it
// targets and then waits for the stage object. Progress is stored in the
// workflow record so completed stages are skipped on resume.
func (d *Driver) Upgrade(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	b *bundle.Bundle,
	target lcmv1.OpenStackVersion,
) error {
	Log := d.GetLogger(ctx).WithValues("service", b.Service, "target", target)

	svc, ok := d.Registry.Get(b.Service)
	if !ok {
		return tasks.Permanentf("unknown service %s", b.Service)
	}
	stages := svc.UpgradeStages()
	if len(stages) == 0 {
		return nil
	}

	rec, err := d.Workflow.Load(ctx, instance, b.Service, target)
	if err != nil {
		return tasks.Temporary(err)
	}

	for _, stage := range stages {
		if rec.Done(stage.Name) {
			Log.Info(fmt.Sprintf("Stage %s already completed", stage.Name))
			continue
		}
		Log.Info(fmt.Sprintf("Starting stage %s", stage.Name))

		err := d.runStage(ctx, instance, svc.Descriptor(), b, stage)
		if err != nil {
			rec.MarkFailed(stage.Name, err)
			if serr := d.Workflow.Save(ctx, instance, rec); serr != nil {
				Log.Error(serr, "Unable to save workflow state")
			}
			d.event(instance, corev1.EventTypeWarning, ReasonStageFailed,
				"Upgrade of %s to %s failed in stage %s: %v", b.Service, target, stage.Name, err)
			serr := &StageError{Service: b.Service, Stage: stage.Name, Err: err}
			if tasks.IsPermanent(err) {
				return tasks.Permanent(serr)
			}
			return tasks.Temporary(serr)
		}

		rec.MarkDone(stage.Name)
		if err := d.Workflow.Save(ctx, instance, rec); err != nil {
			return tasks.Temporary(err)
		}
		d.event(instance, corev1.EventTypeNormal, ReasonStageDone,
			"Upgrade of %s to %s completed stage %s", b.Service, target, stage.Name)
	}
	return nil
}

func (d *Driver) runStage(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	desc *services.Descriptor,
	b *bundle.Bundle,
	stage services.UpgradeStage,
) error {
	staged, err := stageBundle(b, stage)
	if err != nil {
		return err
	}
	if _, err := d.Apply(ctx, instance, staged); err != nil {
		return err
	}

	key := client.ObjectKey{Namespace: instance.Namespace, Name: stage.Object}
	what := fmt.Sprintf("stage %s of %s", stage.Name, b.Service)
	switch stage.Kind {
	case services.StageJob:
		err = d.poller(instance).Until(ctx, what, func(ctx context.Context) (bool, error) {
			return jobComplete(ctx, d.Client, key)
		})
	case services.StageRollout:
		child := desc.ChildObject(stage.Object)
		if child == nil {
			return tasks.Permanentf("stage %s awaits unknown object %s", stage.Name, stage.Object)
		}
		err = d.poller(instance).Until(ctx, what, func(ctx context.Context) (bool, error) {
			return workloadReady(ctx, d.Client, child.Kind, key)
		})
	default:
		return tasks.Permanentf("unknown stage kind %s", stage.Kind)
	}
	if err != nil && tasks.KindOf(err) == tasks.KindUnknown {
		return tasks.Temporary(err)
	}
	return err
}

// stageBundle layers the stage values over its release
func stageBundle(b *bundle.Bundle, stage services.UpgradeStage) (*bundle.Bundle, error) {
	staged := *b
	staged.Releases = make([]bundle.Release, len(b.Releases))
	copy(staged.Releases, b.Releases)

	found := false
	for i := range staged.Releases {
		rel := &staged.Releases[i]
		if rel.Name != stage.Release {
			continue
		}
		found = true
		values, err := layers.Merge(b.Service,
			layers.Named{Name: layers.LayerDefaults, Values: rel.Values},
			layers.Named{Name: "stage " + stage.Name, Values: stage.Values},
		)
		if err != nil {
			return nil, tasks.Permanent(err)
		}
		rel.Values = values
		rel.Fingerprint = ""
		fp, err := util.ObjectHash(*rel)
		if err != nil {
			return nil, err
		}
		rel.Fingerprint = fp
	}
	if !found {
		return nil, tasks.Permanentf("stage %s targets unknown release %s", stage.Name, stage.Release)
	}

	var err error
	staged.Fingerprint, err = bundle.Fingerprint(&staged)
	if err != nil {
		return nil, err
	}
	return &staged, nil
}

func jobComplete(ctx context.Context, c client.Client, key client.ObjectKey) (bool, error) {
	j := &batchv1.Job{}
	err := c.Get(ctx, key, j)
	if k8s_errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, cond := range j.Status.Conditions {
		if cond.Type == batchv1.JobFailed && cond.Status == corev1.ConditionTrue {
			return false, tasks.Permanentf("job %s failed: %s", key.Name, cond.Message)
		}
	}
	return j.Status.Succeeded > 0, nil
}

func workloadReady(ctx context.Context, c client.Client, kind string, key client.ObjectKey) (bool, error) {
	obj, err := objectFor(kind)
	if err != nil {
		return false, tasks.Permanent(err)
	}
	err = c.Get(ctx, key, obj)
	if k8s_errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	// conditions of an older generation describe the previous rollout
	if observedGeneration(obj) < obj.GetGeneration() {
		return false, nil
	}
	return health.Classify(obj) == lcmv1.HealthReady, nil
}

func observedGeneration(obj client.Object) int64 {
	switch o := obj.(type) {
	case *appsv1.Deployment:
		return o.Status.ObservedGeneration
	case *appsv1.StatefulSet:
		return o.Status.ObservedGeneration
	case *appsv1.DaemonSet:
		return o.Status.ObservedGeneration
	}
	return obj.GetGeneration()
}

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

	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

// Update describes the outcome of Tracker.Set
type Update struct {
	// Previous record, zero when there was none
	Previous lcmv1.HealthRecord
	Existed  bool
	// Written is false when the update was stale or changed nothing
	Written bool
	// Instance as patched, nil when nothing was written
	Instance *lcmv1.OpenStackDeployment
}

// Tracker writes health records onto the deployment status. Writes never
// lower the stored generation of a record.
type Tracker struct {
	Client client.Client
}

// NewTracker -
func NewTracker(c client.Client) *Tracker {
	return &Tracker{Client: c}
}

// Set stores rec for (app, component) of the deployment in namespace.
// Records carrying a lower generation than the stored one are dropped.
func (t *Tracker) Set(
	ctx context.Context,
	namespace string,
	app string,
	component string,
	rec lcmv1.HealthRecord,
) (Update, error) {
	var u Update
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		u = Update{}
		instance, err := lcmv1.GetOpenStackDeployment(ctx, t.Client, namespace)
		if err != nil {
			return err
		}

		prev, ok := instance.Status.Health[app][component]
		u.Previous, u.Existed = prev, ok
		if ok && (rec.Generation < prev.Generation || rec == prev) {
			return nil
		}

		patch := client.MergeFromWithOptions(instance.DeepCopy(), client.MergeFromWithOptimisticLock{})
		if instance.Status.Health == nil {
			instance.Status.Health = map[string]map[string]lcmv1.HealthRecord{}
		}
		if instance.Status.Health[app] == nil {
			instance.Status.Health[app] = map[string]lcmv1.HealthRecord{}
		}
		instance.Status.Health[app][component] = rec
		if err := t.Client.Status().Patch(ctx, instance, patch); err != nil {
			return err
		}
		u.Written = true
		u.Instance = instance
		return nil
	})
	if err == nil && u.Written {
		observe(namespace, app, component, rec.Status)
	}
	return u, err
}

// Clear removes the record of (app, component)
func (t *Tracker) Clear(ctx context.Context, namespace, app, component string) error {
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		instance, err := lcmv1.GetOpenStackDeployment(ctx, t.Client, namespace)
		if err != nil {
			return err
		}
		if _, ok := instance.Status.Health[app][component]; !ok {
			return nil
		}

		patch := client.MergeFromWithOptions(instance.DeepCopy(), client.MergeFromWithOptimisticLock{})
		delete(instance.Status.Health[app], component)
		if len(instance.Status.Health[app]) == 0 {
			delete(instance.Status.Health, app)
		}
		return t.Client.Status().Patch(ctx, instance, patch)
	})
	if err == nil {
		forget(namespace, app, component)
	}
	return err
}

// ClearWorkload removes every record computed from workload
func (t *Tracker) ClearWorkload(ctx context.Context, namespace, workload string) error {
	var cleared []componentRef
	err := retry.RetryOnConflict(retry.DefaultRetry, func() error {
		cleared = nil
		instance, err := lcmv1.GetOpenStackDeployment(ctx, t.Client, namespace)
		if err != nil {
			return err
		}

		patch := client.MergeFromWithOptions(instance.DeepCopy(), client.MergeFromWithOptimisticLock{})
		for app, components := range instance.Status.Health {
			for component, rec := range components {
				if rec.Workload == workload {
					delete(components, component)
					cleared = append(cleared, componentRef{app: app, component: component})
				}
			}
			if len(components) == 0 {
				delete(instance.Status.Health, app)
			}
		}
		if len(cleared) == 0 {
			return nil
		}
		return t.Client.Status().Patch(ctx, instance, patch)
	})
	if err == nil {
		for _, ref := range cleared {
			forget(namespace, ref.app, ref.component)
		}
	}
	return err
}

// SetHash stores a hash in status.hash of the deployment
func (t *Tracker) SetHash(ctx context.Context, namespace, key, value string) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		instance, err := lcmv1.GetOpenStackDeployment(ctx, t.Client, namespace)
		if err != nil {
			return err
		}
		if instance.Status.Hash[key] == value {
			return nil
		}
		patch := client.MergeFromWithOptions(instance.DeepCopy(), client.MergeFromWithOptimisticLock{})
		if instance.Status.Hash == nil {
			instance.Status.Hash = map[string]string{}
		}
		instance.Status.Hash[key] = value
		return t.Client.Status().Patch(ctx, instance, patch)
	})
}

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
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/bundle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/layers"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

// objectFor returns an empty object of a child object kind
func objectFor(kind string) (client.Object, error) {
	switch kind {
	case services.KindJob:
		return &batchv1.Job{}, nil
	case services.KindDeployment:
		return &appsv1.Deployment{}, nil
	case services.KindStatefulSet:
		return &appsv1.StatefulSet{}, nil
	case services.KindDaemonSet:
		return &appsv1.DaemonSet{}, nil
	}
	return nil, fmt.Errorf("unsupported kind %s", kind)
}

// imagesChanged compares the image tags of a child between the applied and
// the rendered bundle. A tag missing from the applied bundle counts as
// changed.
func imagesChanged(old layers.Values, b *bundle.Bundle, child services.ChildObject) bool {
	for _, key := range child.ImageKeys {
		newTag, _ := b.ImageTag(child.Release, key)
		oldTag, ok := layers.Lookup(old, "images", "tags", key)
		if !ok || oldTag != newTag {
			return true
		}
	}
	return false
}

// purgeImmutable deletes every immutable child whose images change. Purges
// run concurrently and all of them finish before the call returns.
func (d *Driver) purgeImmutable(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	desc *services.Descriptor,
	applied *lcmv1.HelmBundle,
	b *bundle.Bundle,
) ([]string, error) {
	oldValues := map[string]layers.Values{}
	targets := []services.ChildObject{}
	for _, child := range desc.ImmutableChildren() {
		oldRel := applied.Release(child.Release)
		if oldRel == nil || b.Release(child.Release) == nil {
			// new release, nothing applied to compare with
			continue
		}
		old, ok := oldValues[child.Release]
		if !ok {
			var err error
			old, err = lcmv1.DecodeValues(oldRel.Values)
			if err != nil {
				return nil, tasks.Permanent(fmt.Errorf("applied values of %s: %w", child.Release, err))
			}
			oldValues[child.Release] = old
		}
		if imagesChanged(old, b, child) {
			targets = append(targets, child)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	var mu sync.Mutex
	purged := []string{}
	g, gctx := errgroup.WithContext(ctx)
	for _, child := range targets {
		child := child
		g.Go(func() error {
			if err := d.purge(gctx, instance, child.Kind, child.Name); err != nil {
				return err
			}
			mu.Lock()
			purged = append(purged, child.Name)
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	sort.Strings(purged)
	for _, name := range purged {
		d.event(instance, corev1.EventTypeNormal, ReasonPurged, "Immutable %s purged for %s", name, b.Service)
	}
	return purged, err
}

// purge deletes an object and waits until it is gone. Deleting an absent
// object succeeds.
func (d *Driver) purge(ctx context.Context, instance *lcmv1.OpenStackDeployment, kind, name string) error {
	Log := d.GetLogger(ctx)
	namespace := instance.Namespace

	obj, err := objectFor(kind)
	if err != nil {
		return tasks.Permanent(err)
	}
	obj.SetNamespace(namespace)
	obj.SetName(name)

	err = d.Client.Delete(ctx, obj, client.PropagationPolicy(metav1.DeletePropagationBackground))
	if k8s_errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return tasks.Temporary(err)
	}
	Log.Info(fmt.Sprintf("%s %s deleted, waiting for removal", kind, name))

	key := client.ObjectKey{Namespace: namespace, Name: name}
	err = d.poller(instance).Until(ctx, fmt.Sprintf("%s %s deletion", kind, name), func(ctx context.Context) (bool, error) {
		current, _ := objectFor(kind)
		err := d.Client.Get(ctx, key, current)
		if k8s_errors.IsNotFound(err) {
			return true, nil
		}
		return false, err
	})
	if err != nil {
		return tasks.Temporary(err)
	}
	return nil
}

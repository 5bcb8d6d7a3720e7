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

package osdpl

import (
	"fmt"
	"sort"

	"github.com/openstack-k8s-operators/lib-common/modules/common/util"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

const (
	// PrecacheName of the image precache daemonset
	PrecacheName = "image-precaching"
	// PrecacheImagesAnnotation holds the hash of the cached image set
	PrecacheImagesAnnotation = "lcm.openstack.org/precache-images"
	// PauseImage keeps precache pods running after pulling
	PauseImage = "registry.k8s.io/pause:3.9"
)

// PrecacheHash - hash of the image set, independent of map order
func PrecacheHash(images map[string]string) (string, error) {
	return util.ObjectHash(sortedImages(images))
}

func sortedImages(images map[string]string) []string {
	refs := make([]string, 0, len(images))
	seen := map[string]bool{}
	for _, ref := range images {
		if !seen[ref] {
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs
}

// PrecacheDaemonSet pulls every image on every node through init
// containers that exit at once
func PrecacheDaemonSet(
	instance *lcmv1.OpenStackDeployment,
	images map[string]string,
	labels map[string]string,
) (*appsv1.DaemonSet, error) {
	hash, err := PrecacheHash(images)
	if err != nil {
		return nil, err
	}

	initContainers := []corev1.Container{}
	for i, ref := range sortedImages(images) {
		initContainers = append(initContainers, corev1.Container{
			Name:            fmt.Sprintf("precache-%d", i),
			Image:           ref,
			ImagePullPolicy: corev1.PullIfNotPresent,
			Command:         []string{"/bin/true"},
			SecurityContext: baseSecurityContext(),
		})
	}

	ds := &appsv1.DaemonSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:        PrecacheName,
			Namespace:   instance.Namespace,
			Labels:      labels,
			Annotations: map[string]string{PrecacheImagesAnnotation: hash},
		},
		Spec: appsv1.DaemonSetSpec{
			Selector: &metav1.LabelSelector{MatchLabels: labels},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels:      labels,
					Annotations: map[string]string{PrecacheImagesAnnotation: hash},
				},
				Spec: corev1.PodSpec{
					InitContainers: initContainers,
					Containers: []corev1.Container{
						{
							Name:            "pause",
							Image:           PauseImage,
							SecurityContext: baseSecurityContext(),
						},
					},
					TerminationGracePeriodSeconds: ptr.To(int64(1)),
					Tolerations: []corev1.Toleration{
						{Operator: corev1.TolerationOpExists},
					},
				},
			},
		},
	}
	return ds, nil
}

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

// Package services is the static catalog of managed services: which charts
// each service installs, which child objects those charts create and how
// services are ordered for upgrades and node maintenance.
package services

import (
	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

// Group is the common values group a service belongs to
type Group string

const (
	// GroupOpenStack - API services
	GroupOpenStack Group = "openstack"
	// GroupInfra - shared infrastructure
	GroupInfra Group = "infra"
)

// Child object kinds
const (
	KindJob         = "Job"
	KindDeployment  = "Deployment"
	KindStatefulSet = "StatefulSet"
	KindDaemonSet   = "DaemonSet"
)

// Release is one chart installation of a service
type Release struct {
	// Name of the helm release
	Name string
	// Chart name in the repository
	Chart string
}

// ChildObject is a workload a release creates
type ChildObject struct {
	Name    string
	Kind    string
	Release string
	// ImageKeys are the keys under images.tags the object runs
	ImageKeys []string
	// Immutable objects are deleted and recreated when an image changes
	Immutable bool
}

// StageKind -
type StageKind string

const (
	// StageJob waits for a Job to complete
	StageJob StageKind = "job"
	// StageRollout waits for a workload to become ready
	StageRollout StageKind = "rollout"
)

// UpgradeStage is one step of an ordered release upgrade
type UpgradeStage struct {
	Name    string
	Kind    StageKind
	Release string
	// Object is the child object awaited by the stage
	Object string
	// Values are layered over the rendered release values for this stage
	Values map[string]interface{}
}

// Descriptor is the static registry entry of a service
type Descriptor struct {
	Name     string
	Group    Group
	Releases []Release
	Children []ChildObject
	// Credentials lists the credential scopes rendering needs
	Credentials []string
	// Requires lists services that must be enabled alongside
	Requires []string
	// RequiresCeph - the service cannot start without the shared ceph secret
	RequiresCeph bool
	// Weight orders upgrades, lower first
	Weight int
	// MaintenanceWeight orders node maintenance hooks, lower first. Zero
	// means the service takes no part in node maintenance.
	MaintenanceWeight int
	// Upgrade stages, empty when a plain apply is enough
	Upgrade []UpgradeStage
}

// Service is the capability set every managed service provides. Apply and
// delete are uniform for all services and performed by the lifecycle driver
// from this data.
type Service interface {
	Descriptor() *Descriptor
	// TemplateArgs are service specific inputs of the values template
	TemplateArgs(spec *lcmv1.OpenStackDeploymentSpec) map[string]interface{}
	// ChildObjects created by the service's releases
	ChildObjects() []ChildObject
	// UpgradeStages - nil when the service has no ordered upgrade
	UpgradeStages() []UpgradeStage
}

type base struct {
	d Descriptor
}

func (b *base) Descriptor() *Descriptor { return &b.d }

func (b *base) ChildObjects() []ChildObject { return b.d.Children }

func (b *base) UpgradeStages() []UpgradeStage { return b.d.Upgrade }

func (b *base) TemplateArgs(spec *lcmv1.OpenStackDeploymentSpec) map[string]interface{} {
	return map[string]interface{}{
		"logLevel": logLevel(spec, b.d.Name),
	}
}

func logLevel(spec *lcmv1.OpenStackDeploymentSpec, service string) string {
	if l, ok := spec.Features.Logging[service]; ok && l.Level != "" {
		return l.Level
	}
	return "INFO"
}

// ChildObject returns the named child object, or nil
func (d *Descriptor) ChildObject(name string) *ChildObject {
	for i := range d.Children {
		if d.Children[i].Name == name {
			return &d.Children[i]
		}
	}
	return nil
}

// ImmutableChildren - children that must be purged on image changes
func (d *Descriptor) ImmutableChildren() []ChildObject {
	out := []ChildObject{}
	for _, c := range d.Children {
		if c.Immutable {
			out = append(out, c)
		}
	}
	return out
}

// ImageKeys - all image keys used by a release's children
func (d *Descriptor) ImageKeys(release string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, c := range d.Children {
		if c.Release != release {
			continue
		}
		for _, k := range c.ImageKeys {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

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

package services

import (
	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

// Service names
const (
	Database     = "database"
	Messaging    = "messaging"
	Memcached    = "memcached"
	Identity     = "identity"
	Image        = "image"
	Networking   = "networking"
	Placement    = "placement"
	Compute      = "compute"
	BlockStorage = "block-storage"
	Dashboard    = "dashboard"
)

var infraDeps = []string{Database, Messaging, Memcached}

// dbStages is the expand/migrate/contract sequence of services with online
// schema migrations
func dbStages(release, prefix, workload string) []UpgradeStage {
	return []UpgradeStage{
		{
			Name: "expand", Kind: StageJob, Release: release, Object: prefix + "-db-sync-expand",
			Values: map[string]interface{}{"manifests": map[string]interface{}{"job_db_sync_expand": true}},
		},
		{
			Name: "migrate", Kind: StageJob, Release: release, Object: prefix + "-db-sync-migrate",
			Values: map[string]interface{}{"manifests": map[string]interface{}{"job_db_sync_migrate": true}},
		},
		{Name: "rollout", Kind: StageRollout, Release: release, Object: workload},
		{
			Name: "contract", Kind: StageJob, Release: release, Object: prefix + "-db-sync-contract",
			Values: map[string]interface{}{"manifests": map[string]interface{}{"job_db_sync_contract": true}},
		},
	}
}

// syncStages is the db-sync then rollout sequence of services with offline
// migrations
func syncStages(release, prefix, workload string) []UpgradeStage {
	return []UpgradeStage{
		{Name: "migrate", Kind: StageJob, Release: release, Object: prefix + "-db-sync"},
		{Name: "rollout", Kind: StageRollout, Release: release, Object: workload},
	}
}

func dbSync(release, prefix string) ChildObject {
	return ChildObject{
		Name: prefix + "-db-sync", Kind: KindJob, Release: release,
		ImageKeys: []string{prefix + "_db_sync"}, Immutable: true,
	}
}

func bootstrap(release, prefix string) ChildObject {
	return ChildObject{
		Name: prefix + "-bootstrap", Kind: KindJob, Release: release,
		ImageKeys: []string{"bootstrap"}, Immutable: true,
	}
}

// NewDatabase -
func NewDatabase() Service {
	return &base{d: Descriptor{
		Name:     Database,
		Group:    GroupInfra,
		Releases: []Release{{Name: "openstack-mariadb", Chart: "mariadb"}},
		Children: []ChildObject{
			{Name: "mariadb-server", Kind: KindStatefulSet, Release: "openstack-mariadb", ImageKeys: []string{"mariadb"}},
		},
		Credentials: []string{Database},
		Weight:      1,
	}}
}

// NewMessaging -
func NewMessaging() Service {
	return &base{d: Descriptor{
		Name:     Messaging,
		Group:    GroupInfra,
		Releases: []Release{{Name: "openstack-rabbitmq", Chart: "rabbitmq"}},
		Children: []ChildObject{
			{Name: "openstack-rabbitmq-rabbitmq", Kind: KindStatefulSet, Release: "openstack-rabbitmq", ImageKeys: []string{"rabbitmq"}},
		},
		Credentials: []string{Messaging},
		Weight:      2,
	}}
}

// NewMemcached -
func NewMemcached() Service {
	return &base{d: Descriptor{
		Name:     Memcached,
		Group:    GroupInfra,
		Releases: []Release{{Name: "openstack-memcached", Chart: "memcached"}},
		Children: []ChildObject{
			{Name: "openstack-memcached-memcached", Kind: KindDeployment, Release: "openstack-memcached", ImageKeys: []string{"memcached"}},
		},
		Weight: 3,
	}}
}

// NewIdentity -
func NewIdentity() Service {
	const rel = "openstack-keystone"
	return &identity{base{d: Descriptor{
		Name:     Identity,
		Group:    GroupOpenStack,
		Releases: []Release{{Name: rel, Chart: "keystone"}},
		Children: []ChildObject{
			dbSync(rel, "keystone"),
			bootstrap(rel, "keystone"),
			{Name: "keystone-credential-setup", Kind: KindJob, Release: rel, ImageKeys: []string{"keystone_credential_setup"}, Immutable: true},
			{Name: "keystone-fernet-setup", Kind: KindJob, Release: rel, ImageKeys: []string{"keystone_fernet_setup"}, Immutable: true},
			{Name: "keystone-db-sync-expand", Kind: KindJob, Release: rel, ImageKeys: []string{"keystone_db_sync"}, Immutable: true},
			{Name: "keystone-db-sync-migrate", Kind: KindJob, Release: rel, ImageKeys: []string{"keystone_db_sync"}, Immutable: true},
			{Name: "keystone-db-sync-contract", Kind: KindJob, Release: rel, ImageKeys: []string{"keystone_db_sync"}, Immutable: true},
			{Name: "keystone-api", Kind: KindDeployment, Release: rel, ImageKeys: []string{"keystone_api"}},
		},
		Credentials: []string{lcmv1.AdminCredentials, Identity, Database},
		Requires:    infraDeps,
		Weight:      10,
		Upgrade:     dbStages(rel, "keystone", "keystone-api"),
	}}}
}

type identity struct{ base }

func (s *identity) TemplateArgs(spec *lcmv1.OpenStackDeploymentSpec) map[string]interface{} {
	args := s.base.TemplateArgs(spec)
	args["region"] = spec.Region
	return args
}

// NewImage -
func NewImage() Service {
	const rel = "openstack-glance"
	return &base{d: Descriptor{
		Name:     Image,
		Group:    GroupOpenStack,
		Releases: []Release{{Name: rel, Chart: "glance"}},
		Children: []ChildObject{
			dbSync(rel, "glance"),
			bootstrap(rel, "glance"),
			{Name: "glance-db-sync-expand", Kind: KindJob, Release: rel, ImageKeys: []string{"glance_db_sync"}, Immutable: true},
			{Name: "glance-db-sync-migrate", Kind: KindJob, Release: rel, ImageKeys: []string{"glance_db_sync"}, Immutable: true},
			{Name: "glance-db-sync-contract", Kind: KindJob, Release: rel, ImageKeys: []string{"glance_db_sync"}, Immutable: true},
			{Name: "glance-api", Kind: KindDeployment, Release: rel, ImageKeys: []string{"glance_api"}},
		},
		Credentials:  []string{Image, Database, Messaging},
		Requires:     append([]string{Identity}, infraDeps...),
		RequiresCeph: true,
		Weight:       20,
		Upgrade:      dbStages(rel, "glance", "glance-api"),
	}}
}

// NewNetworking -
func NewNetworking() Service {
	const rel = "openstack-neutron"
	return &networking{base{d: Descriptor{
		Name:  Networking,
		Group: GroupOpenStack,
		Releases: []Release{
			{Name: "openstack-openvswitch", Chart: "openvswitch"},
			{Name: rel, Chart: "neutron"},
		},
		Children: []ChildObject{
			{Name: "openvswitch-openvswitch-vswitchd", Kind: KindDaemonSet, Release: "openstack-openvswitch", ImageKeys: []string{"openvswitch_vswitchd"}},
			dbSync(rel, "neutron"),
			{Name: "neutron-server", Kind: KindDeployment, Release: rel, ImageKeys: []string{"neutron_server"}},
			{Name: "neutron-ovs-agent-default", Kind: KindDaemonSet, Release: rel, ImageKeys: []string{"neutron_openvswitch_agent"}},
		},
		Credentials:       []string{Networking, Database, Messaging},
		Requires:          append([]string{Identity}, infraDeps...),
		Weight:            30,
		MaintenanceWeight: 20,
		Upgrade:           syncStages(rel, "neutron", "neutron-server"),
	}}}
}

type networking struct{ base }

func (s *networking) TemplateArgs(spec *lcmv1.OpenStackDeploymentSpec) map[string]interface{} {
	args := s.base.TemplateArgs(spec)
	args["tunnelInterface"] = spec.Features.Neutron.TunnelInterface
	return args
}

// NewPlacement -
func NewPlacement() Service {
	const rel = "openstack-placement"
	return &base{d: Descriptor{
		Name:     Placement,
		Group:    GroupOpenStack,
		Releases: []Release{{Name: rel, Chart: "placement"}},
		Children: []ChildObject{
			dbSync(rel, "placement"),
			{Name: "placement-api", Kind: KindDeployment, Release: rel, ImageKeys: []string{"placement"}},
		},
		Credentials: []string{Placement, Database},
		Requires:    append([]string{Identity}, infraDeps...),
		Weight:      35,
		Upgrade:     syncStages(rel, "placement", "placement-api"),
	}}
}

// NewCompute -
func NewCompute() Service {
	const rel = "openstack-nova"
	return &compute{base{d: Descriptor{
		Name:  Compute,
		Group: GroupOpenStack,
		Releases: []Release{
			{Name: "openstack-libvirt", Chart: "libvirt"},
			{Name: rel, Chart: "nova"},
		},
		Children: []ChildObject{
			{Name: "libvirt-libvirt-default", Kind: KindDaemonSet, Release: "openstack-libvirt", ImageKeys: []string{"libvirt"}},
			dbSync(rel, "nova"),
			bootstrap(rel, "nova"),
			{Name: "nova-cell-setup", Kind: KindJob, Release: rel, ImageKeys: []string{"nova_cell_setup"}, Immutable: true},
			{Name: "nova-api-osapi", Kind: KindDeployment, Release: rel, ImageKeys: []string{"nova_api"}},
			{Name: "nova-conductor", Kind: KindDeployment, Release: rel, ImageKeys: []string{"nova_conductor"}},
			{Name: "nova-scheduler", Kind: KindDeployment, Release: rel, ImageKeys: []string{"nova_scheduler"}},
			{Name: "nova-compute-default", Kind: KindDaemonSet, Release: rel, ImageKeys: []string{"nova_compute"}},
		},
		Credentials:       []string{Compute, Database, Messaging},
		Requires:          append([]string{Identity, Networking, Placement, Image}, infraDeps...),
		Weight:            40,
		MaintenanceWeight: 10,
		Upgrade:           syncStages(rel, "nova", "nova-api-osapi"),
	}}}
}

type compute struct{ base }

func (s *compute) TemplateArgs(spec *lcmv1.OpenStackDeploymentSpec) map[string]interface{} {
	args := s.base.TemplateArgs(spec)
	args["liveMigrationInterface"] = spec.Features.Nova.LiveMigrationInterface
	args["migrationMode"] = string(spec.MigrationMode())
	return args
}

// NewBlockStorage -
func NewBlockStorage() Service {
	const rel = "openstack-cinder"
	return &base{d: Descriptor{
		Name:     BlockStorage,
		Group:    GroupOpenStack,
		Releases: []Release{{Name: rel, Chart: "cinder"}},
		Children: []ChildObject{
			dbSync(rel, "cinder"),
			bootstrap(rel, "cinder"),
			{Name: "cinder-api", Kind: KindDeployment, Release: rel, ImageKeys: []string{"cinder_api"}},
			{Name: "cinder-volume", Kind: KindStatefulSet, Release: rel, ImageKeys: []string{"cinder_volume"}},
		},
		Credentials:  []string{BlockStorage, Database, Messaging},
		Requires:     append([]string{Identity}, infraDeps...),
		RequiresCeph: true,
		Weight:       50,
		Upgrade:      syncStages(rel, "cinder", "cinder-api"),
	}}
}

// NewDashboard -
func NewDashboard() Service {
	const rel = "openstack-horizon"
	return &base{d: Descriptor{
		Name:     Dashboard,
		Group:    GroupOpenStack,
		Releases: []Release{{Name: rel, Chart: "horizon"}},
		Children: []ChildObject{
			dbSync(rel, "horizon"),
			{Name: "horizon", Kind: KindDeployment, Release: rel, ImageKeys: []string{"horizon"}},
		},
		Credentials: []string{Dashboard, Database},
		Requires:    []string{Identity, Database, Memcached},
		Weight:      60,
	}}
}

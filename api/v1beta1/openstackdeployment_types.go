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

package v1beta1

import (
	condition "github.com/openstack-k8s-operators/lib-common/modules/common/condition"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

const (
	// OpenStackDeploymentFinalizer blocks deletion until all child bundles are gone
	OpenStackDeploymentFinalizer = "lcm.openstack.org/osdpl"

	// LastAppliedAnnotation holds the spec snapshot the last successful cycle applied
	LastAppliedAnnotation = "lcm.openstack.org/last-applied"

	// RotationRequestAnnotation is touched by clients requesting a credential rotation
	RotationRequestAnnotation = "lcm.openstack.org/rotation-request"

	// FingerprintAnnotation is set on every HelmBundle with its content fingerprint
	FingerprintAnnotation = "lcm.openstack.org/fingerprint"

	// EngineVersionAnnotation records which controller version rendered a bundle
	EngineVersionAnnotation = "lcm.openstack.org/engine-version"

	// ServiceLabel identifies the service a child object belongs to
	ServiceLabel = "lcm.openstack.org/service"

	// PrecacheHash tracks the image precache daemonset content
	PrecacheHash = "precache"

	// CellSetupHash tracks the last cell setup job launched by the compute hook
	CellSetupHash = "cellsetup"

	// AdminCredentials is the credential group holding the cloud admin user
	AdminCredentials = "admin"
)

// InstanceMigrationMode selects how instances leave a compute host before maintenance
type InstanceMigrationMode string

const (
	// MigrationModeLive live-migrates all instances off the host
	MigrationModeLive InstanceMigrationMode = "live"
	// MigrationModeManual waits until an operator has emptied the host
	MigrationModeManual InstanceMigrationMode = "manual"
	// MigrationModeSkip only disables the compute service
	MigrationModeSkip InstanceMigrationMode = "skip"
)

// OpenStackDeploymentSpec defines the desired state of OpenStackDeployment
type OpenStackDeploymentSpec struct {
	// +kubebuilder:validation:Required
	// +kubebuilder:validation:Enum=queens;rocky;stein;train;ussuri;victoria;wallaby;xena;yoga;zed;antelope;bobcat;caracal;master
	// OpenStackVersion - release to deploy
	OpenStackVersion OpenStackVersion `json:"openstackVersion"`

	// +kubebuilder:validation:Optional
	// +kubebuilder:default=false
	// Draft - suspends reconciliation of this deployment
	Draft bool `json:"draft,omitempty"`

	// +kubebuilder:validation:Optional
	// +kubebuilder:default=RegionOne
	// Region - OpenStack region name
	Region string `json:"region,omitempty"`

	// +kubebuilder:validation:Required
	// Features - enabled services and feature flags
	Features FeaturesSpec `json:"features"`

	// +kubebuilder:validation:Optional
	// Common - values shared by groups of charts
	Common CommonSpec `json:"common,omitempty"`

	// +kubebuilder:validation:Optional
	// Services - explicit per-service chart value overrides
	Services map[string]ServiceOverrides `json:"services,omitempty"`

	// +kubebuilder:validation:Optional
	// Artifacts - image and chart sources
	Artifacts ArtifactsSpec `json:"artifacts,omitempty"`

	// +kubebuilder:validation:Optional
	// Timeouts - bounds for apply and wait operations
	Timeouts TimeoutsSpec `json:"timeouts,omitempty"`
}

// FeaturesSpec - enabled services and per-service feature flags
type FeaturesSpec struct {
	// +kubebuilder:validation:Required
	// Services - set of enabled services
	Services []string `json:"services"`

	// +kubebuilder:validation:Optional
	// Nova - compute feature flags
	Nova NovaFeatures `json:"nova,omitempty"`

	// +kubebuilder:validation:Optional
	// Neutron - networking feature flags
	Neutron NeutronFeatures `json:"neutron,omitempty"`

	// +kubebuilder:validation:Optional
	// Logging - per-service log settings
	Logging map[string]LoggingFeature `json:"logging,omitempty"`
}

// NovaFeatures -
type NovaFeatures struct {
	// +kubebuilder:validation:Optional
	// +kubebuilder:validation:Enum=live;manual;skip
	// InstanceMigrationMode - how instances are moved away during node maintenance
	InstanceMigrationMode InstanceMigrationMode `json:"instanceMigrationMode,omitempty"`

	// +kubebuilder:validation:Optional
	// LiveMigrationInterface - host interface used for live migration traffic
	LiveMigrationInterface string `json:"liveMigrationInterface,omitempty"`
}

// NeutronFeatures -
type NeutronFeatures struct {
	// +kubebuilder:validation:Optional
	// TunnelInterface - host interface for tenant tunnels
	TunnelInterface string `json:"tunnelInterface,omitempty"`
}

// LoggingFeature -
type LoggingFeature struct {
	// +kubebuilder:validation:Optional
	// +kubebuilder:validation:Enum=DEBUG;INFO;WARNING;ERROR
	Level string `json:"level,omitempty"`
}

// CommonSpec - group and per-chart common values
type CommonSpec struct {
	// +kubebuilder:validation:Optional
	// +kubebuilder:pruning:PreserveUnknownFields
	// +kubebuilder:validation:Schemaless
	// OpenStack - values applied to every chart of the openstack group
	OpenStack runtime.RawExtension `json:"openstack,omitempty"`

	// +kubebuilder:validation:Optional
	// +kubebuilder:pruning:PreserveUnknownFields
	// +kubebuilder:validation:Schemaless
	// Infra - values applied to every chart of the infra group
	Infra runtime.RawExtension `json:"infra,omitempty"`

	// +kubebuilder:validation:Optional
	// +kubebuilder:pruning:PreserveUnknownFields
	// +kubebuilder:validation:Schemaless
	// Charts - values applied to a chart wherever it is used
	Charts map[string]runtime.RawExtension `json:"charts,omitempty"`
}

// ServiceOverrides - per-service explicit values
type ServiceOverrides struct {
	// +kubebuilder:validation:Optional
	// +kubebuilder:pruning:PreserveUnknownFields
	// +kubebuilder:validation:Schemaless
	// Charts - values by chart name
	Charts map[string]runtime.RawExtension `json:"charts,omitempty"`
}

// ArtifactsSpec - image and chart sources
type ArtifactsSpec struct {
	// +kubebuilder:validation:Optional
	// ImagesBaseURL - registry prefix for all images
	ImagesBaseURL string `json:"imagesBaseURL,omitempty"`

	// +kubebuilder:validation:Optional
	// HelmRepository - chart repository url
	HelmRepository string `json:"helmRepository,omitempty"`

	// +kubebuilder:validation:Optional
	// Images - explicit image references by image key
	Images map[string]string `json:"images,omitempty"`
}

// TimeoutsSpec -
type TimeoutsSpec struct {
	// +kubebuilder:validation:Optional
	// Apply - bound for a single helm release apply
	Apply *metav1.Duration `json:"apply,omitempty"`

	// +kubebuilder:validation:Optional
	// Wait - bound for waiting on child objects
	Wait *metav1.Duration `json:"wait,omitempty"`
}

// HealthStatus is the aggregated health of a workload
type HealthStatus string

const (
	// HealthUnknown -
	HealthUnknown HealthStatus = "Unknown"
	// HealthReady -
	HealthReady HealthStatus = "Ready"
	// HealthProgressing -
	HealthProgressing HealthStatus = "Progressing"
	// HealthUnhealthy -
	HealthUnhealthy HealthStatus = "Unhealthy"
)

// HealthRecord - health of one application component
type HealthRecord struct {
	Status HealthStatus `json:"status"`
	// Generation of the workload the status was computed from
	Generation int64 `json:"generation"`
	// Workload the record was computed from, as <Kind>/<name>
	Workload string `json:"workload,omitempty"`
}

// ServiceState is the lifecycle state of a single service
type ServiceState string

const (
	// ServiceApplying -
	ServiceApplying ServiceState = "Applying"
	// ServiceApplied -
	ServiceApplied ServiceState = "Applied"
	// ServiceWaiting - blocked on an external prerequisite
	ServiceWaiting ServiceState = "Waiting"
	// ServiceDeleting -
	ServiceDeleting ServiceState = "Deleting"
	// ServiceFailed - permanent failure, needs a spec change
	ServiceFailed ServiceState = "Failed"
)

// ServiceStatus -
type ServiceStatus struct {
	State       ServiceState `json:"state"`
	Fingerprint string       `json:"fingerprint,omitempty"`
	// RuntimeID identifies the controller process that applied the service
	RuntimeID string      `json:"runtimeID,omitempty"`
	Timestamp metav1.Time `json:"timestamp,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// OsdplState is the overall state of a deployment
type OsdplState string

const (
	// OsdplApplying -
	OsdplApplying OsdplState = "Applying"
	// OsdplApplied -
	OsdplApplied OsdplState = "Applied"
	// OsdplFailed -
	OsdplFailed OsdplState = "Failed"
)

// OsdplStatus -
type OsdplStatus struct {
	State OsdplState `json:"state,omitempty"`
	// Changes - json patch between the last applied and the current spec
	Changes string `json:"changes,omitempty"`
	Cause   string `json:"cause,omitempty"`
	// LastAppliedServices - service set of the last completed cycle
	LastAppliedServices []string    `json:"lastAppliedServices,omitempty"`
	Timestamp           metav1.Time `json:"timestamp,omitempty"`
}

// CredentialsStatus - rotation bookkeeping of one credential group
type CredentialsStatus struct {
	RotationID        int64 `json:"rotationID"`
	AppliedRotationID int64 `json:"appliedRotationID"`
}

// MaintenanceStatus -
type MaintenanceStatus struct {
	ClusterLock LockState `json:"clusterLock,omitempty"`
}

// OpenStackDeploymentStatus defines the observed state of OpenStackDeployment
type OpenStackDeploymentStatus struct {
	// Conditions
	Conditions condition.Conditions `json:"conditions,omitempty" optional:"true"`

	// ObservedGeneration - the most recent generation observed for this object
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// Version of the controller that applied the deployment
	Version string `json:"version,omitempty"`

	// Fingerprint of the applied spec
	Fingerprint string `json:"fingerprint,omitempty"`

	// OpenStackVersion - release of the last successful cycle
	OpenStackVersion OpenStackVersion `json:"openstackVersion,omitempty"`

	// Children - existence of per-service bundles
	Children map[string]bool `json:"children,omitempty"`

	// Health by application and component
	Health map[string]map[string]HealthRecord `json:"health,omitempty"`

	// Services - per-service lifecycle state
	Services map[string]ServiceStatus `json:"services,omitempty"`

	// Osdpl - overall state
	Osdpl OsdplStatus `json:"osdpl,omitempty"`

	// WatchedSecrets - hashes of external secrets the deployment depends on
	WatchedSecrets map[string]string `json:"watchedSecrets,omitempty"`

	// Credentials - rotation state by credential group
	Credentials map[string]CredentialsStatus `json:"credentials,omitempty"`

	// Maintenance - cluster lock state
	Maintenance MaintenanceStatus `json:"maintenance,omitempty"`

	// Map of hashes to track e.g. job status
	Hash map[string]string `json:"hash,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:resource:shortName=osdpl
//+kubebuilder:printcolumn:name="Version",type="string",JSONPath=".spec.openstackVersion",description="OpenStack release"
//+kubebuilder:printcolumn:name="State",type="string",JSONPath=".status.osdpl.state",description="State"
//+kubebuilder:printcolumn:name="Status",type="string",JSONPath=".status.conditions[0].status",description="Status"
//+kubebuilder:printcolumn:name="Message",type="string",JSONPath=".status.conditions[0].message",description="Message"

// OpenStackDeployment is the Schema for the openstackdeployments API
type OpenStackDeployment struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   OpenStackDeploymentSpec   `json:"spec,omitempty"`
	Status OpenStackDeploymentStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// OpenStackDeploymentList contains a list of OpenStackDeployment
type OpenStackDeploymentList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []OpenStackDeployment `json:"items"`
}

func init() {
	SchemeBuilder.Register(&OpenStackDeployment{}, &OpenStackDeploymentList{})
}

// IsReady - returns true if the deployment is reconciled successfully
func (instance OpenStackDeployment) IsReady() bool {
	return instance.Status.Conditions.IsTrue(condition.ReadyCondition)
}

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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	// MaintenanceFinalizer keeps a maintenance request around until the
	// node or cluster is handed back
	MaintenanceFinalizer = "lcm.openstack.org/maintenance"

	// ControllerName is written to every workload lock this operator owns
	ControllerName = "openstack"
)

// LockState -
type LockState string

const (
	// LockActive - workloads run normally, maintenance is not allowed
	LockActive LockState = "active"
	// LockInactive - workloads are prepared, maintenance may proceed
	LockInactive LockState = "inactive"
	// LockFailed - preparation failed, operator action required
	LockFailed LockState = "failed"
)

// MaintenanceScope -
type MaintenanceScope string

const (
	// ScopeOS - host OS maintenance, workloads must leave the node
	ScopeOS MaintenanceScope = "os"
	// ScopeDrain - kubernetes drain only
	ScopeDrain MaintenanceScope = "drain"
)

// NodeMaintenanceRequestSpec -
type NodeMaintenanceRequestSpec struct {
	// NodeName - node to be maintained
	NodeName string `json:"nodeName"`

	// +kubebuilder:validation:Optional
	// +kubebuilder:default=drain
	// +kubebuilder:validation:Enum=os;drain
	Scope MaintenanceScope `json:"scope,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:resource:scope=Cluster
//+kubebuilder:printcolumn:name="Node",type="string",JSONPath=".spec.nodeName",description="Node"

// NodeMaintenanceRequest asks workload owners to prepare a node for maintenance
type NodeMaintenanceRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec NodeMaintenanceRequestSpec `json:"spec,omitempty"`
}

//+kubebuilder:object:root=true

// NodeMaintenanceRequestList -
type NodeMaintenanceRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NodeMaintenanceRequest `json:"items"`
}

// ClusterMaintenanceRequestSpec -
type ClusterMaintenanceRequestSpec struct {
	// +kubebuilder:validation:Optional
	// +kubebuilder:default=drain
	// +kubebuilder:validation:Enum=os;drain
	Scope MaintenanceScope `json:"scope,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:resource:scope=Cluster

// ClusterMaintenanceRequest announces a cluster wide maintenance window
type ClusterMaintenanceRequest struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec ClusterMaintenanceRequestSpec `json:"spec,omitempty"`
}

//+kubebuilder:object:root=true

// ClusterMaintenanceRequestList -
type ClusterMaintenanceRequestList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ClusterMaintenanceRequest `json:"items"`
}

// NodeWorkloadLockSpec -
type NodeWorkloadLockSpec struct {
	NodeName       string `json:"nodeName"`
	ControllerName string `json:"controllerName"`
}

// NodeWorkloadLockStatus -
type NodeWorkloadLockStatus struct {
	// +kubebuilder:default=active
	State LockState `json:"state,omitempty"`
	// InnerState - active while maintenance work for the node is in progress
	InnerState   LockState `json:"innerState,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:resource:scope=Cluster
//+kubebuilder:printcolumn:name="Node",type="string",JSONPath=".spec.nodeName",description="Node"
//+kubebuilder:printcolumn:name="State",type="string",JSONPath=".status.state",description="State"

// NodeWorkloadLock gates maintenance of a single node
type NodeWorkloadLock struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   NodeWorkloadLockSpec   `json:"spec,omitempty"`
	Status NodeWorkloadLockStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// NodeWorkloadLockList -
type NodeWorkloadLockList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NodeWorkloadLock `json:"items"`
}

// ClusterWorkloadLockSpec -
type ClusterWorkloadLockSpec struct {
	ControllerName string `json:"controllerName"`
}

// ClusterWorkloadLockStatus -
type ClusterWorkloadLockStatus struct {
	// +kubebuilder:default=active
	State        LockState `json:"state,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:resource:scope=Cluster
//+kubebuilder:printcolumn:name="State",type="string",JSONPath=".status.state",description="State"

// ClusterWorkloadLock gates cluster wide maintenance
type ClusterWorkloadLock struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   ClusterWorkloadLockSpec   `json:"spec,omitempty"`
	Status ClusterWorkloadLockStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// ClusterWorkloadLockList -
type ClusterWorkloadLockList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []ClusterWorkloadLock `json:"items"`
}

func init() {
	SchemeBuilder.Register(
		&NodeMaintenanceRequest{}, &NodeMaintenanceRequestList{},
		&ClusterMaintenanceRequest{}, &ClusterMaintenanceRequestList{},
		&NodeWorkloadLock{}, &NodeWorkloadLockList{},
		&ClusterWorkloadLock{}, &ClusterWorkloadLockList{},
	)
}

// NodeLockName - name of the workload lock for a node
func NodeLockName(nodeName string) string {
	return "openstack-" + nodeName
}

// ClusterLockName - name of the cluster workload lock for a deployment
func ClusterLockName(osdplName string) string {
	return "openstack-" + osdplName
}

// InMaintenance - true while the lock's maintenance work is ongoing
func (l *NodeWorkloadLock) InMaintenance() bool {
	return l.Status.InnerState == LockActive
}

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
	"k8s.io/apimachinery/pkg/runtime"
)

// HelmRelease - one chart installation of a bundle
type HelmRelease struct {
	// Name - helm release name
	Name string `json:"name"`
	// Chart - chart name inside the repository
	Chart string `json:"chart"`
	// Version - chart version
	Version string `json:"version"`
	// Namespace the release is installed into
	Namespace string `json:"namespace"`

	// +kubebuilder:validation:Optional
	// +kubebuilder:pruning:PreserveUnknownFields
	// +kubebuilder:validation:Schemaless
	// Values - merged chart values
	Values runtime.RawExtension `json:"values,omitempty"`
}

// HelmBundleSpec defines the desired state of HelmBundle
type HelmBundleSpec struct {
	// Service the bundle was rendered for
	Service string `json:"service"`

	// +kubebuilder:validation:Optional
	// Repository - chart repository url
	Repository string `json:"repository,omitempty"`

	// Releases in install order
	Releases []HelmRelease `json:"releases"`
}

// ReleaseStatus -
type ReleaseStatus struct {
	Revision    int    `json:"revision,omitempty"`
	Status      string `json:"status,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Message     string `json:"message,omitempty"`
}

// HelmBundleStatus defines the observed state of HelmBundle
type HelmBundleStatus struct {
	// Fingerprint of the last fully applied bundle
	Fingerprint string `json:"fingerprint,omitempty"`

	// Releases by release name
	Releases map[string]ReleaseStatus `json:"releases,omitempty"`
}

//+kubebuilder:object:root=true
//+kubebuilder:subresource:status
//+kubebuilder:printcolumn:name="Service",type="string",JSONPath=".spec.service",description="Service"
//+kubebuilder:printcolumn:name="Fingerprint",type="string",JSONPath=".status.fingerprint",description="Fingerprint"

// HelmBundle is the Schema for the helmbundles API
type HelmBundle struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec   HelmBundleSpec   `json:"spec,omitempty"`
	Status HelmBundleStatus `json:"status,omitempty"`
}

//+kubebuilder:object:root=true

// HelmBundleList contains a list of HelmBundle
type HelmBundleList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []HelmBundle `json:"items"`
}

func init() {
	SchemeBuilder.Register(&HelmBundle{}, &HelmBundleList{})
}

// Release returns the named release of the bundle, or nil
func (b *HelmBundle) Release(name string) *HelmRelease {
	for i := range b.Spec.Releases {
		if b.Spec.Releases[i].Name == name {
			return &b.Spec.Releases[i]
		}
	}
	return nil
}

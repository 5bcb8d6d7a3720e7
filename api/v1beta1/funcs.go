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
	"context"
	"encoding/json"
	"fmt"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

const (
	// DefaultWaitTimeout bounds waits for child objects when the spec does not
	DefaultWaitTimeout = 10 * time.Minute

	// DefaultApplyTimeout bounds a single helm release apply when the spec does not
	DefaultApplyTimeout = 20 * time.Minute
)

// GetOpenStackDeployment - get the deployment object in namespace. Only one
// deployment per namespace is supported.
func GetOpenStackDeployment(
	ctx context.Context,
	c client.Client,
	namespace string,
) (*OpenStackDeployment, error) {
	osdplList := &OpenStackDeploymentList{}

	err := c.List(ctx, osdplList, client.InNamespace(namespace))
	if err != nil {
		return nil, err
	}

	if len(osdplList.Items) > 1 {
		return nil, fmt.Errorf("more then one OpenStackDeployment object found in namespace %s", namespace)
	}

	if len(osdplList.Items) == 0 {
		return nil, k8s_errors.NewNotFound(
			appsv1.Resource("OpenStackDeployment"),
			fmt.Sprintf("No OpenStackDeployment object found in namespace %s", namespace),
		)
	}

	return &osdplList.Items[0], nil
}

// DecodeValues - decodes an embedded values document. Empty input yields an
// empty map.
func DecodeValues(raw runtime.RawExtension) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	if len(raw.Raw) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(raw.Raw, &values); err != nil {
		return nil, fmt.Errorf("values must be an object: %w", err)
	}
	return values, nil
}

// EncodeValues - inverse of DecodeValues
func EncodeValues(values map[string]interface{}) (runtime.RawExtension, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return runtime.RawExtension{}, err
	}
	return runtime.RawExtension{Raw: raw}, nil
}

// WaitTimeout - wait bound from the spec or the default
func (spec OpenStackDeploymentSpec) WaitTimeout() time.Duration {
	if spec.Timeouts.Wait != nil && spec.Timeouts.Wait.Duration > 0 {
		return spec.Timeouts.Wait.Duration
	}
	return DefaultWaitTimeout
}

// ApplyTimeout - helm apply bound from the spec or the default
func (spec OpenStackDeploymentSpec) ApplyTimeout() time.Duration {
	if spec.Timeouts.Apply != nil && spec.Timeouts.Apply.Duration > 0 {
		return spec.Timeouts.Apply.Duration
	}
	return DefaultApplyTimeout
}

// MigrationMode - instance migration mode with the live default
func (spec OpenStackDeploymentSpec) MigrationMode() InstanceMigrationMode {
	if spec.Features.Nova.InstanceMigrationMode == "" {
		return MigrationModeLive
	}
	return spec.Features.Nova.InstanceMigrationMode
}

// IsServiceEnabled -
func (spec OpenStackDeploymentSpec) IsServiceEnabled(name string) bool {
	for _, s := range spec.Features.Services {
		if s == name {
			return true
		}
	}
	return false
}

// HealthGreen - true when every tracked component reports Ready
func (status OpenStackDeploymentStatus) HealthGreen() bool {
	for _, components := range status.Health {
		for _, record := range components {
			if record.Status != HealthReady {
				return false
			}
		}
	}
	return true
}

// RotationPending - true when a rotation was requested for group and not yet applied
func (status OpenStackDeploymentStatus) RotationPending(group string) bool {
	c, ok := status.Credentials[group]
	return ok && c.RotationID > c.AppliedRotationID
}

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

package cli

import (
	"context"
	"fmt"
	"strconv"

	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/wait"
)

// RequestRotation bumps the rotation counter of group and touches the
// deployment so it gets reconciled. It returns the requested rotation id.
func RequestRotation(ctx context.Context, c client.Client, key types.NamespacedName, group string) (int64, error) {
	osdpl := &lcmv1.OpenStackDeployment{}
	if err := c.Get(ctx, key, osdpl); err != nil {
		return 0, err
	}

	base := osdpl.DeepCopy()
	if osdpl.Status.Credentials == nil {
		osdpl.Status.Credentials = map[string]lcmv1.CredentialsStatus{}
	}
	st := osdpl.Status.Credentials[group]
	st.RotationID = max(st.RotationID, st.AppliedRotationID) + 1
	osdpl.Status.Credentials[group] = st
	if err := c.Status().Patch(ctx, osdpl, client.MergeFrom(base)); err != nil {
		return 0, fmt.Errorf("requesting rotation of %s: %w", group, err)
	}

	base = osdpl.DeepCopy()
	if osdpl.Annotations == nil {
		osdpl.Annotations = map[string]string{}
	}
	osdpl.Annotations[lcmv1.RotationRequestAnnotation] = group + "/" + strconv.FormatInt(st.RotationID, 10)
	if err := c.Patch(ctx, osdpl, client.MergeFrom(base)); err != nil {
		return 0, fmt.Errorf("annotating %s: %w", key, err)
	}
	return st.RotationID, nil
}

// Rotated reports whether rotation id of group is applied, the deployment is
// applied and every tracked component is healthy
func Rotated(osdpl *lcmv1.OpenStackDeployment, group string, id int64) bool {
	st := osdpl.Status.Credentials[group]
	return st.AppliedRotationID >= id &&
		osdpl.Status.Osdpl.State == lcmv1.OsdplApplied &&
		osdpl.Status.HealthGreen()
}

// WaitRotation polls the deployment until rotation id of group is rolled out
func WaitRotation(
	ctx context.Context,
	c client.Client,
	poller *wait.Poller,
	key types.NamespacedName,
	group string,
	id int64,
) error {
	return poller.Until(ctx, fmt.Sprintf("rotation %d of %s credentials", id, group), func(ctx context.Context) (bool, error) {
		osdpl := &lcmv1.OpenStackDeployment{}
		if err := c.Get(ctx, key, osdpl); err != nil {
			return false, err
		}
		return Rotated(osdpl, group, id), nil
	})
}

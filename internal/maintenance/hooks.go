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

package maintenance

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/openstack"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/wait"
)

// DisabledReason is recorded on compute services disabled for maintenance
const DisabledReason = "node maintenance requested by the openstack controller"

// Hook prepares the workloads of one service for node maintenance and hands
// the node back afterwards. Both calls must be safe to repeat.
type Hook interface {
	PrepareNode(ctx context.Context, instance *lcmv1.OpenStackDeployment, node string) error
	ReleaseNode(ctx context.Context, instance *lcmv1.OpenStackDeployment, node string) error
}

// DefaultHooks - maintenance hooks by service name
func DefaultHooks(f openstack.Factory, p *wait.Poller) map[string]Hook {
	return map[string]Hook{
		services.Compute:    &ComputeHook{Factory: f, Poller: p},
		services.Networking: &NetworkHook{Factory: f},
	}
}

// ComputeHook disables nova-compute on the node and moves instances away
// according to the instance migration mode. Only the wait for a manual
// migration is temporary, every other failure needs the operator.
type ComputeHook struct {
	Factory openstack.Factory
	Poller  *wait.Poller
}

// migratable instance states
var liveStates = map[string]bool{"ACTIVE": true, "PAUSED": true}

func (h *ComputeHook) PrepareNode(ctx context.Context, instance *lcmv1.OpenStackDeployment, node string) error {
	Log := log.FromContext(ctx).WithName("Maintenance").WithValues("node", node)

	nova, err := h.Factory.Compute(ctx, instance)
	if err != nil {
		return err
	}
	if err := nova.DisableService(ctx, node, DisabledReason); err != nil {
		return err
	}

	mode := instance.Spec.MigrationMode()
	switch mode {
	case lcmv1.MigrationModeSkip:
		Log.Info("Instance migration skipped")
		return nil
	case lcmv1.MigrationModeManual:
		left, err := nova.ListInstances(ctx, node)
		if err != nil {
			return err
		}
		if len(left) > 0 {
			return tasks.Temporaryf("%d instances left on %s, waiting for manual migration", len(left), node)
		}
		return nil
	}

	left, err := nova.ListInstances(ctx, node)
	if err != nil {
		return err
	}
	for _, i := range left {
		if i.Status == "ERROR" {
			return tasks.Permanentf("instance %s on %s is in ERROR state", i.ID, node)
		}
		if !liveStates[i.Status] {
			Log.Info(fmt.Sprintf("Instance %s is %s, not migrated", i.ID, i.Status))
			continue
		}
		Log.Info(fmt.Sprintf("Live migrating instance %s", i.ID))
		if err := nova.LiveMigrate(ctx, i.ID); err != nil {
			return fmt.Errorf("live migration of %s: %w", i.ID, err)
		}
	}

	poller := h.Poller
	if instance.Spec.Timeouts.Wait != nil {
		poller = poller.WithTimeout(instance.Spec.WaitTimeout())
	}
	err = poller.Until(ctx, "instances to leave "+node, func(ctx context.Context) (bool, error) {
		left, err := nova.ListInstances(ctx, node)
		if err != nil {
			return false, err
		}
		for _, i := range left {
			if liveStates[i.Status] || i.Status == "MIGRATING" {
				return false, nil
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	return nil
}

func (h *ComputeHook) ReleaseNode(ctx context.Context, instance *lcmv1.OpenStackDeployment, node string) error {
	nova, err := h.Factory.Compute(ctx, instance)
	if err != nil {
		return err
	}
	if err := nova.EnableService(ctx, node); err != nil {
		return err
	}
	return nil
}

// NetworkHook takes the neutron agents of the node out of scheduling
type NetworkHook struct {
	Factory openstack.Factory
}

func (h *NetworkHook) PrepareNode(ctx context.Context, instance *lcmv1.OpenStackDeployment, node string) error {
	return h.setAgents(ctx, instance, node, false)
}

func (h *NetworkHook) ReleaseNode(ctx context.Context, instance *lcmv1.OpenStackDeployment, node string) error {
	return h.setAgents(ctx, instance, node, true)
}

func (h *NetworkHook) setAgents(ctx context.Context, instance *lcmv1.OpenStackDeployment, node string, up bool) error {
	neutron, err := h.Factory.Network(ctx, instance)
	if err != nil {
		return err
	}
	if err := neutron.SetAgentsAdminState(ctx, node, up); err != nil {
		return err
	}
	return nil
}

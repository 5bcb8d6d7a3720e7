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

package health

import (
	"context"
	"fmt"
	"time"

	"github.com/openstack-k8s-operators/lib-common/modules/common/helper"
	"github.com/openstack-k8s-operators/lib-common/modules/common/job"
	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/osdpl"
)

// ComputeTransition - the compute daemonset became ready
var ComputeTransition = Transition{
	Application: "nova",
	Component:   "compute",
	From:        lcmv1.HealthProgressing,
	To:          lcmv1.HealthReady,
}

// CellSetup discovers new compute hosts by running the cell setup job
// once the compute daemonset is ready on more nodes
type CellSetup struct {
	Client  client.Client
	Kclient kubernetes.Interface
	Scheme  *runtime.Scheme
	Tracker *Tracker
}

// Hook - HookFunc of the cell setup
func (c *CellSetup) Hook(ctx context.Context, instance *lcmv1.OpenStackDeployment, obj client.Object) error {
	Log := log.FromContext(ctx).WithName("Health").WithName("CellSetup")

	ds, ok := obj.(*appsv1.DaemonSet)
	if !ok {
		return fmt.Errorf("cell setup expects a DaemonSet, got %T", obj)
	}

	cron := &batchv1.CronJob{}
	err := c.Client.Get(ctx, types.NamespacedName{Namespace: ds.Namespace, Name: osdpl.CellSetupCronJob}, cron)
	if k8s_errors.IsNotFound(err) {
		Log.Info(fmt.Sprintf("CronJob %s not found, skipping cell setup", osdpl.CellSetupCronJob))
		return nil
	}
	if err != nil {
		return err
	}

	h, err := helper.NewHelper(instance, c.Client, c.Kclient, c.Scheme, Log)
	if err != nil {
		return err
	}

	jobDef := osdpl.CellSetupJobDef(instance, cron, ds.Status.NumberReady, map[string]string{
		ApplicationLabel: "nova",
		ComponentLabel:   "cell-setup",
	})
	cellSetup := job.NewJob(
		jobDef,
		lcmv1.CellSetupHash,
		false,
		5*time.Second,
		instance.Status.Hash[lcmv1.CellSetupHash],
	)
	ctrlResult, err := cellSetup.DoJob(ctx, h)
	if err != nil {
		return err
	}
	if (ctrlResult != ctrl.Result{}) {
		return ErrHookPending
	}
	if cellSetup.HasChanged() {
		Log.Info(fmt.Sprintf("Job %s hash added - %s", jobDef.Name, cellSetup.GetHash()))
		return c.Tracker.SetHash(ctx, instance.Namespace, lcmv1.CellSetupHash, cellSetup.GetHash())
	}
	return nil
}

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

// Package osdpl builds the workloads the operator runs itself, next to the
// ones installed by helm releases.
package osdpl

import (
	"strconv"

	"github.com/openstack-k8s-operators/lib-common/modules/common/env"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

const (
	// CellSetupCronJob is created by the compute release
	CellSetupCronJob = "nova-cell-setup"
	// CellSetupJob is the one-off job started from it
	CellSetupJob = "nova-cell-setup-hook"
)

// CellSetupJobDef builds a one-off cell setup job from the job template of
// the compute release's cron job. The number of compute nodes is part of the
// job, so a new node count gives a new job hash.
func CellSetupJobDef(
	instance *lcmv1.OpenStackDeployment,
	cron *batchv1.CronJob,
	computeNodes int32,
	labels map[string]string,
) *batchv1.Job {
	envVars := map[string]env.Setter{}
	envVars["KOLLA_CONFIG_STRATEGY"] = env.SetValue("COPY_ALWAYS")
	envVars["NOVA_COMPUTE_NODES"] = env.SetValue(strconv.Itoa(int(computeNodes)))

	spec := *cron.Spec.JobTemplate.Spec.DeepCopy()
	spec.Template.Spec.RestartPolicy = corev1.RestartPolicyOnFailure
	for i := range spec.Template.Spec.Containers {
		c := &spec.Template.Spec.Containers[i]
		c.Env = env.MergeEnvs(c.Env, envVars)
		if c.SecurityContext == nil {
			c.SecurityContext = cellSetupSecurityContext()
		}
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      CellSetupJob,
			Namespace: instance.Namespace,
			Labels:    labels,
		},
		Spec: spec,
	}
}

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

// Package health classifies workload readiness and publishes it per
// application and component on the deployment status.
package health

import (
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

// Progressing condition reasons of a deployment
const (
	reasonRolloutComplete = "NewReplicaSetAvailable"
	reasonReplicaSetNew   = "NewReplicaSetCreated"
	reasonReplicaSetFound = "FoundNewReplicaSet"
	reasonReplicaSetUpd   = "ReplicaSetUpdated"
)

func deploymentCondition(d *appsv1.Deployment, t appsv1.DeploymentConditionType) *appsv1.DeploymentCondition {
	for i := range d.Status.Conditions {
		if d.Status.Conditions[i].Type == t {
			return &d.Status.Conditions[i]
		}
	}
	return nil
}

// ClassifyDeployment - Ready when available and the rollout completed,
// Unhealthy when not available, Progressing while a rollout is in flight
func ClassifyDeployment(d *appsv1.Deployment) lcmv1.HealthStatus {
	available := deploymentCondition(d, appsv1.DeploymentAvailable)
	progressing := deploymentCondition(d, appsv1.DeploymentProgressing)

	if available != nil && available.Status == corev1.ConditionTrue &&
		progressing != nil && progressing.Status == corev1.ConditionTrue &&
		progressing.Reason == reasonRolloutComplete {
		return lcmv1.HealthReady
	}
	if available != nil && available.Status == corev1.ConditionFalse {
		return lcmv1.HealthUnhealthy
	}
	if progressing != nil {
		switch progressing.Reason {
		case reasonReplicaSetNew, reasonReplicaSetFound, reasonReplicaSetUpd:
			return lcmv1.HealthProgressing
		}
	}
	return lcmv1.HealthUnknown
}

// ClassifyStatefulSet - Ready when the current revision is the update
// revision and all replica counts match, Progressing during a rollout
func ClassifyStatefulSet(s *appsv1.StatefulSet) lcmv1.HealthStatus {
	desired := int32(1)
	if s.Spec.Replicas != nil {
		desired = *s.Spec.Replicas
	}
	st := s.Status
	if st.CurrentRevision == st.UpdateRevision &&
		st.Replicas == desired && st.ReadyReplicas == desired && st.CurrentReplicas == desired {
		return lcmv1.HealthReady
	}
	if st.CurrentRevision != st.UpdateRevision {
		return lcmv1.HealthProgressing
	}
	return lcmv1.HealthUnhealthy
}

// ClassifyDaemonSet - Ready when every count matches the desired count and
// nothing is misscheduled
func ClassifyDaemonSet(ds *appsv1.DaemonSet) lcmv1.HealthStatus {
	st := ds.Status
	desired := st.DesiredNumberScheduled
	if st.CurrentNumberScheduled == desired &&
		st.NumberReady == desired &&
		st.UpdatedNumberScheduled == desired &&
		st.NumberAvailable == desired &&
		st.NumberMisscheduled == 0 {
		return lcmv1.HealthReady
	}
	if st.UpdatedNumberScheduled < desired || st.NumberMisscheduled > 0 {
		return lcmv1.HealthProgressing
	}
	if st.NumberReady < desired {
		return lcmv1.HealthUnhealthy
	}
	return lcmv1.HealthUnknown
}

// Classify dispatches on the workload kind
func Classify(obj client.Object) lcmv1.HealthStatus {
	switch o := obj.(type) {
	case *appsv1.Deployment:
		return ClassifyDeployment(o)
	case *appsv1.StatefulSet:
		return ClassifyStatefulSet(o)
	case *appsv1.DaemonSet:
		return ClassifyDaemonSet(o)
	}
	return lcmv1.HealthUnknown
}

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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

var healthStatus = promauto.With(metrics.Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "osdpl_health_status",
		Help: "Health of a component, 1 for the current status",
	},
	[]string{"namespace", "application", "component", "status"},
)

var allStatuses = []lcmv1.HealthStatus{
	lcmv1.HealthUnknown, lcmv1.HealthReady, lcmv1.HealthProgressing, lcmv1.HealthUnhealthy,
}

func observe(namespace, app, component string, status lcmv1.HealthStatus) {
	for _, s := range allStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		healthStatus.WithLabelValues(namespace, app, component, string(s)).Set(v)
	}
}

func forget(namespace, app, component string) {
	for _, s := range allStatuses {
		healthStatus.DeleteLabelValues(namespace, app, component, string(s))
	}
}

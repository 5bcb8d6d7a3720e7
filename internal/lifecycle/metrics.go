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

package lifecycle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

var serviceApplyDuration = promauto.With(metrics.Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "osdpl_service_apply_duration_seconds",
		Help:    "Duration of a service bundle apply in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
	},
	[]string{"service", "result"},
)

func observeApply(service string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = tasks.KindOf(err).String()
	}
	serviceApplyDuration.WithLabelValues(service, result).Observe(time.Since(start).Seconds())
}

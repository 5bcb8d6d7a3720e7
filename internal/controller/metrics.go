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

package controller

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"
)

var reconcileTotal = promauto.With(metrics.Registry).NewCounterVec(
	prometheus.CounterOpts{
		Name: "osdpl_reconcile_total",
		Help: "Deployment reconcile cycles by result",
	},
	[]string{"result"},
)

func reconcileResult(result ctrl.Result, err error) string {
	switch {
	case errors.Is(err, reconcile.TerminalError(nil)):
		return "failed"
	case err != nil:
		return "error"
	case result.Requeue || result.RequeueAfter > 0:
		return "requeue"
	}
	return "success"
}

func observeReconcile(result ctrl.Result, err error) {
	reconcileTotal.WithLabelValues(reconcileResult(result, err)).Inc()
}

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

package main

import (
	"flag"
	"os"

	"k8s.io/apimachinery/pkg/runtime"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/client-go/kubernetes"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	metricsserver "sigs.k8s.io/controller-runtime/pkg/metrics/server"
	"sigs.k8s.io/controller-runtime/pkg/webhook"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/bundle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/controller"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/credentials"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/health"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/helm"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/lifecycle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/maintenance"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/openstack"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/settings"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/wait"
	webhookv1beta1 "github.com/openstack-k8s-operators/osdpl-operator/internal/webhook/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/workflow"
	// +kubebuilder:scaffold:imports
)

var (
	scheme   = runtime.NewScheme()
	setupLog = ctrl.Log.WithName("setup")
	version  = "0.1.0"
)

func init() {
	utilruntime.Must(clientgoscheme.AddToScheme(scheme))

	utilruntime.Must(lcmv1.AddToScheme(scheme))
	// +kubebuilder:scaffold:scheme
}

func main() {
	var metricsAddr string
	var probeAddr string
	var enableLeaderElection bool
	flag.StringVar(&metricsAddr, "metrics-bind-address", ":8080", "The address the metric endpoint binds to.")
	flag.StringVar(&probeAddr, "health-probe-bind-address", ":8081", "The address the probe endpoint binds to.")
	flag.BoolVar(&enableLeaderElection, "leader-elect", false,
		"Enable leader election for controller manager. "+
			"Enabling this will ensure there is only one active controller manager.")
	opts := zap.Options{
		Development: true,
	}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	cfg, err := settings.Load()
	if err != nil {
		setupLog.Error(err, "invalid settings")
		os.Exit(1)
	}

	options := ctrl.Options{
		Scheme:                 scheme,
		Metrics:                metricsserver.Options{BindAddress: metricsAddr},
		WebhookServer:          webhook.NewServer(webhook.Options{Port: 9443}),
		HealthProbeBindAddress: probeAddr,
		LeaderElection:         enableLeaderElection,
		LeaderElectionID:       "5d1c3f7a.lcm.openstack.org",
	}
	if cfg.WatchNamespace != "" {
		options.Cache = cache.Options{
			DefaultNamespaces: map[string]cache.Config{cfg.WatchNamespace: {}},
		}
	}

	restConfig := ctrl.GetConfigOrDie()
	mgr, err := ctrl.NewManager(restConfig, options)
	if err != nil {
		setupLog.Error(err, "unable to start manager")
		os.Exit(1)
	}

	kclient, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		setupLog.Error(err, "unable to create kubernetes client")
		os.Exit(1)
	}

	registry := services.NewDefaultRegistry()
	renderer, err := bundle.NewRenderer(registry, version)
	if err != nil {
		setupLog.Error(err, "unable to load chart catalog")
		os.Exit(1)
	}
	runtimeID, err := bundle.RuntimeID(version)
	if err != nil {
		setupLog.Error(err, "unable to derive runtime id")
		os.Exit(1)
	}

	pool := tasks.NewPool(cfg.Workers)
	helmClient := helm.NewClient(cfg.HelmBinary, helm.NewExecRunner(pool), cfg.HelmTimeout)
	poller := wait.New(wait.DefaultInterval, cfg.WaitTimeout)
	creds := credentials.NewProvider(mgr.GetClient())

	driver := &lifecycle.Driver{
		Client:   mgr.GetClient(),
		Helm:     helmClient,
		Registry: registry,
		Recorder: mgr.GetEventRecorderFor("osdpl-lifecycle"),
		Workflow: workflow.NewStore(mgr.GetClient()),
		Poller:   poller,
	}

	if err = (&controller.OpenStackDeploymentReconciler{
		Client:      mgr.GetClient(),
		Scheme:      mgr.GetScheme(),
		Recorder:    mgr.GetEventRecorderFor("osdpl-controller"),
		Registry:    registry,
		Renderer:    renderer,
		Driver:      driver,
		Credentials: creds,
		Settings:    cfg,
		RuntimeID:   runtimeID,
		Version:     version,
		Clock:       clock.RealClock{},
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "OpenStackDeployment")
		os.Exit(1)
	}

	tracker := health.NewTracker(mgr.GetClient())
	hooks := health.NewHooks()
	cellSetup := &health.CellSetup{
		Client:  mgr.GetClient(),
		Kclient: kclient,
		Scheme:  mgr.GetScheme(),
		Tracker: tracker,
	}
	hooks.Register(health.ComputeTransition, cellSetup.Hook)

	for _, r := range []*health.WorkloadReconciler{
		health.NewDeploymentReconciler(mgr.GetClient(), tracker, hooks),
		health.NewStatefulSetReconciler(mgr.GetClient(), tracker, hooks),
		health.NewDaemonSetReconciler(mgr.GetClient(), tracker, hooks),
	} {
		if err = r.SetupWithManager(mgr); err != nil {
			setupLog.Error(err, "unable to create controller", "controller", r.Kind+"Health")
			os.Exit(1)
		}
	}

	coordinator := &maintenance.Coordinator{
		Client:        mgr.GetClient(),
		Registry:      registry,
		Hooks:         maintenance.DefaultHooks(openstack.NewCloudFactory(creds, pool), poller),
		ManagedLabels: cfg.ManagedNodeLabels,
		Recorder:      mgr.GetEventRecorderFor("osdpl-maintenance"),
	}
	if err = (&maintenance.NodeMaintenanceRequestReconciler{
		Client:      mgr.GetClient(),
		Coordinator: coordinator,
		Namespace:   cfg.WatchNamespace,
		Backoff:     cfg.TaskBackoff,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "NodeMaintenanceRequest")
		os.Exit(1)
	}
	if err = (&maintenance.ClusterMaintenanceRequestReconciler{
		Client:      mgr.GetClient(),
		Coordinator: coordinator,
		Namespace:   cfg.WatchNamespace,
		Backoff:     cfg.TaskBackoff,
	}).SetupWithManager(mgr); err != nil {
		setupLog.Error(err, "unable to create controller", "controller", "ClusterMaintenanceRequest")
		os.Exit(1)
	}

	if os.Getenv("ENABLE_WEBHOOKS") != "false" {
		if err = webhookv1beta1.SetupOpenStackDeploymentWebhookWithManager(mgr, registry); err != nil {
			setupLog.Error(err, "unable to create webhook", "webhook", "OpenStackDeployment")
			os.Exit(1)
		}
	}
	// +kubebuilder:scaffold:builder

	if err := mgr.AddHealthzCheck("healthz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up health check")
		os.Exit(1)
	}
	if err := mgr.AddReadyzCheck("readyz", healthz.Ping); err != nil {
		setupLog.Error(err, "unable to set up ready check")
		os.Exit(1)
	}

	setupLog.Info("starting manager", "version", version)
	if err := mgr.Start(ctrl.SetupSignalHandler()); err != nil {
		setupLog.Error(err, "problem running manager")
		os.Exit(1)
	}
}

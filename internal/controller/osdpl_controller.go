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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-logr/logr"
	condition "github.com/openstack-k8s-operators/lib-common/modules/common/condition"
	util "github.com/openstack-k8s-operators/lib-common/modules/common/util"
	"github.com/samber/lo"
	"github.com/wI2L/jsondiff"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/equality"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/tools/record"
	"k8s.io/utils/clock"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/builder"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"
	"sigs.k8s.io/controller-runtime/pkg/handler"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/predicate"
	"sigs.k8s.io/controller-runtime/pkg/reconcile"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/bundle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/credentials"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/health"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/lifecycle"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/osdpl"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/settings"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

const (
	// CephSecretName is the shared ceph keyring secret
	CephSecretName = "openstack-ceph-keys"

	// Event reasons
	ReasonCredentialsRotated = "CredentialsRotated"
	ReasonApplied            = "Applied"
	ReasonFailed             = "Failed"
	ReasonWatchedSecret      = "WatchedSecretChanged"
)

// WatchedSecrets are external secrets the deployment depends on
var WatchedSecrets = []string{CephSecretName}

// GetLogger returns a logger object with a logging prefix of "controller.name" and additional controller context fields
func (r *OpenStackDeploymentReconciler) GetLogger(ctx context.Context) logr.Logger {
	return log.FromContext(ctx).WithName("Controllers").WithName("OpenStackDeployment")
}

// OpenStackDeploymentReconciler reconciles an OpenStackDeployment object
type OpenStackDeploymentReconciler struct {
	client.Client
	Scheme      *runtime.Scheme
	Recorder    record.EventRecorder
	Registry    *services.Registry
	Renderer    *bundle.Renderer
	Driver      *lifecycle.Driver
	Credentials *credentials.Provider
	Settings    *settings.Settings
	// RuntimeID identifies the engine build. Services applied by another
	// build are applied again, a restart of the same build applies nothing.
	RuntimeID string
	// Version of the controller
	Version string
	Clock   clock.PassiveClock
}

func (r *OpenStackDeploymentReconciler) now() metav1.Time {
	if r.Clock != nil {
		return metav1.NewTime(r.Clock.Now())
	}
	return metav1.Now()
}

func (r *OpenStackDeploymentReconciler) backoff() time.Duration {
	if r.Settings != nil && r.Settings.TaskBackoff > 0 {
		return r.Settings.TaskBackoff
	}
	return tasks.DefaultBackoff
}

func (r *OpenStackDeploymentReconciler) event(instance *lcmv1.OpenStackDeployment, eventType, reason, format string, args ...interface{}) {
	if r.Recorder != nil {
		r.Recorder.Eventf(instance, eventType, reason, format, args...)
	}
}

// +kubebuilder:rbac:groups=lcm.openstack.org,resources=openstackdeployments,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=openstackdeployments/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=openstackdeployments/finalizers,verbs=update;patch
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=helmbundles,verbs=get;list;watch;create;update;patch;delete
// +kubebuilder:rbac:groups=lcm.openstack.org,resources=helmbundles/status,verbs=get;update;patch
// +kubebuilder:rbac:groups=core,resources=secrets,verbs=get;list;watch;create;update;patch;delete;
// +kubebuilder:rbac:groups=core,resources=configmaps,verbs=get;list;watch;create;update;patch;delete;
// +kubebuilder:rbac:groups=core,resources=events,verbs=create;patch
// +kubebuilder:rbac:groups=batch,resources=jobs,verbs=get;list;watch;create;update;patch;delete;
// +kubebuilder:rbac:groups=apps,resources=deployments;statefulsets;daemonsets,verbs=get;list;watch;create;update;patch;delete;

// Reconcile drives a deployment towards its spec
func (r *OpenStackDeploymentReconciler) Reconcile(ctx context.Context, req ctrl.Request) (result ctrl.Result, _err error) {
	Log := r.GetLogger(ctx)
	defer func() {
		observeReconcile(result, _err)
	}()

	// Fetch the OpenStackDeployment instance
	instance := &lcmv1.OpenStackDeployment{}
	err := r.Get(ctx, req.NamespacedName, instance)
	if err != nil {
		if k8s_errors.IsNotFound(err) {
			// Request object not found, could have been deleted after reconcile request.
			// Owned objects are automatically garbage collected.
			return ctrl.Result{}, nil
		}
		// Error reading the object - requeue the request.
		return ctrl.Result{}, err
	}

	before := instance.DeepCopy()

	//
	// initialize status
	//
	isNewInstance := instance.Status.Conditions == nil
	if isNewInstance {
		instance.Status.Conditions = condition.Conditions{}
	}

	// Save a copy of the condtions so that we can restore the LastTransitionTime
	// when a condition's state doesn't change.
	savedConditions := instance.Status.Conditions.DeepCopy()

	// Always patch the instance status when exiting this function so we can persist any changes.
	defer func() {
		// Don't update the status, if Reconciler Panics
		if r := recover(); r != nil {
			Log.Info(fmt.Sprintf("Panic during reconcile %v\n", r))
			panic(r)
		}
		// update the Ready condition based on the sub conditions
		if instance.Status.Conditions.AllSubConditionIsTrue() {
			instance.Status.Conditions.MarkTrue(
				condition.ReadyCondition, condition.ReadyMessage)
		} else {
			// something is not ready so reset the Ready condition
			instance.Status.Conditions.MarkUnknown(
				condition.ReadyCondition, condition.InitReason, condition.ReadyInitMessage)
			// and recalculate it based on the state of the rest of the conditions
			instance.Status.Conditions.Set(
				instance.Status.Conditions.Mirror(condition.ReadyCondition))
		}
		condition.RestoreLastTransitionTimes(&instance.Status.Conditions, savedConditions)
		err := r.patchInstance(ctx, before, instance)
		if err != nil {
			_err = err
			return
		}
	}()

	//
	// Conditions init
	//
	cl := condition.CreateList(
		condition.UnknownCondition(lcmv1.CredentialsReadyCondition, condition.InitReason, lcmv1.CredentialsReadyInitMessage),
		condition.UnknownCondition(lcmv1.PrecacheReadyCondition, condition.InitReason, lcmv1.PrecacheReadyInitMessage),
		condition.UnknownCondition(lcmv1.UpgradeReadyCondition, condition.InitReason, lcmv1.UpgradeReadyInitMessage),
		condition.UnknownCondition(lcmv1.ServicesReadyCondition, condition.InitReason, lcmv1.ServicesReadyInitMessage),
	)
	instance.Status.Conditions.Init(&cl)
	instance.Status.ObservedGeneration = instance.Generation

	// If we're not deleting this and the object doesn't have our finalizer, add it.
	if instance.DeletionTimestamp.IsZero() && controllerutil.AddFinalizer(instance, lcmv1.OpenStackDeploymentFinalizer) || isNewInstance {
		return ctrl.Result{}, nil
	}

	if instance.Status.Hash == nil {
		instance.Status.Hash = map[string]string{}
	}
	if instance.Status.Children == nil {
		instance.Status.Children = map[string]bool{}
	}
	if instance.Status.Services == nil {
		instance.Status.Services = map[string]lcmv1.ServiceStatus{}
	}
	if instance.Status.WatchedSecrets == nil {
		instance.Status.WatchedSecrets = map[string]string{}
	}

	// Handle deployment delete
	if !instance.DeletionTimestamp.IsZero() {
		return r.reconcileDelete(ctx, instance)
	}

	if instance.Spec.Draft {
		Log.Info("Deployment is a draft, nothing to apply")
		return ctrl.Result{}, nil
	}

	return r.reconcileNormal(ctx, instance)
}

// SetupWithManager - status only updates of the deployment do not trigger a
// cycle, rotation requests touch an annotation
func (r *OpenStackDeploymentReconciler) SetupWithManager(mgr ctrl.Manager) error {
	return ctrl.NewControllerManagedBy(mgr).
		For(&lcmv1.OpenStackDeployment{},
			builder.WithPredicates(predicate.Or(
				predicate.GenerationChangedPredicate{},
				predicate.AnnotationChangedPredicate{},
			))).
		Owns(&lcmv1.HelmBundle{}).
		Owns(&appsv1.DaemonSet{}).
		Watches(
			&corev1.Secret{},
			handler.EnqueueRequestsFromMapFunc(r.findObjectsForSecret),
			builder.WithPredicates(predicate.ResourceVersionChangedPredicate{}),
		).
		Complete(r)
}

func (r *OpenStackDeploymentReconciler) findObjectsForSecret(ctx context.Context, src client.Object) []reconcile.Request {
	if !lo.Contains(WatchedSecrets, src.GetName()) {
		return nil
	}
	Log := r.GetLogger(ctx)

	crList := &lcmv1.OpenStackDeploymentList{}
	if err := r.List(ctx, crList, client.InNamespace(src.GetNamespace())); err != nil {
		Log.Error(err, fmt.Sprintf("listing OpenStackDeployments in %s", src.GetNamespace()))
		return nil
	}

	requests := []reconcile.Request{}
	for _, item := range crList.Items {
		Log.Info(fmt.Sprintf("watched secret %s changed, reconcile: %s - %s", src.GetName(), item.GetName(), item.GetNamespace()))
		requests = append(requests, reconcile.Request{
			NamespacedName: types.NamespacedName{Name: item.GetName(), Namespace: item.GetNamespace()},
		})
	}
	return requests
}

// patchInstance persists the metadata and status changes of a cycle. The
// metadata patch answers with the stored status, so the computed status is
// put back before it is patched.
func (r *OpenStackDeploymentReconciler) patchInstance(ctx context.Context, before, instance *lcmv1.OpenStackDeployment) error {
	status := instance.Status.DeepCopy()
	if !equality.Semantic.DeepEqual(before.ObjectMeta, instance.ObjectMeta) {
		if err := r.Patch(ctx, instance, client.MergeFrom(before)); err != nil {
			return client.IgnoreNotFound(err)
		}
	}
	if equality.Semantic.DeepEqual(before.Status, *status) {
		return nil
	}
	base := instance.DeepCopy()
	base.Status = before.Status
	instance.Status = *status
	return client.IgnoreNotFound(r.Status().Patch(ctx, instance, client.MergeFrom(base)))
}

// fail ends a cycle on a permanent error. The deployment needs a spec change
// before it is retried.
func (r *OpenStackDeploymentReconciler) fail(
	instance *lcmv1.OpenStackDeployment,
	t condition.Type,
	messageFormat string,
	err error,
) (ctrl.Result, error) {
	instance.Status.Conditions.Set(condition.FalseCondition(
		t,
		condition.ErrorReason,
		condition.SeverityWarning,
		messageFormat,
		err.Error()))
	instance.Status.Osdpl.State = lcmv1.OsdplFailed
	instance.Status.Osdpl.Cause = err.Error()
	instance.Status.Osdpl.Timestamp = r.now()
	r.event(instance, corev1.EventTypeWarning, ReasonFailed, "%s", err.Error())
	return ctrl.Result{}, reconcile.TerminalError(err)
}

// settle maps an error onto a reconcile result. Temporary errors requeue
// after the backoff, permanent ones fail the deployment.
func (r *OpenStackDeploymentReconciler) settle(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	t condition.Type,
	messageFormat string,
	err error,
) (ctrl.Result, error) {
	switch {
	case tasks.IsPermanent(err):
		return r.fail(instance, t, messageFormat, err)
	case tasks.IsTemporary(err):
		r.GetLogger(ctx).Info(fmt.Sprintf("Temporary failure, retrying in %s: %s", r.backoff(), err))
		instance.Status.Conditions.Set(condition.FalseCondition(
			t,
			condition.RequestedReason,
			condition.SeverityInfo,
			messageFormat,
			err.Error()))
		return ctrl.Result{RequeueAfter: r.backoff()}, nil
	}
	instance.Status.Conditions.Set(condition.FalseCondition(
		t,
		condition.ErrorReason,
		condition.SeverityWarning,
		messageFormat,
		err.Error()))
	return ctrl.Result{}, err
}

func (r *OpenStackDeploymentReconciler) reconcileDelete(ctx context.Context, instance *lcmv1.OpenStackDeployment) (ctrl.Result, error) {
	Log := r.GetLogger(ctx)
	Log.Info("Reconciling Service delete")

	names := lo.Filter(
		lo.Union(instance.Status.Osdpl.LastAppliedServices, lo.Keys(instance.Status.Children)),
		func(name string, _ int) bool {
			_, ok := r.Registry.Get(name)
			return ok
		})
	ordered, err := r.Registry.Resolve(names)
	if err != nil {
		return ctrl.Result{}, err
	}
	ordered = lo.Intersect(names, ordered)

	// dependents go first
	for i := len(ordered) - 1; i >= 0; i-- {
		name := ordered[i]
		if err := r.Driver.Delete(ctx, instance, name); err != nil {
			if tasks.IsTemporary(err) {
				Log.Info(fmt.Sprintf("Deleting %s failed, retrying in %s: %s", name, r.backoff(), err))
				return ctrl.Result{RequeueAfter: r.backoff()}, nil
			}
			return ctrl.Result{}, err
		}
		delete(instance.Status.Children, name)
		delete(instance.Status.Services, name)
	}

	controllerutil.RemoveFinalizer(instance, lcmv1.OpenStackDeploymentFinalizer)
	Log.Info("Reconciled Service delete successfully")
	return ctrl.Result{}, nil
}

func (r *OpenStackDeploymentReconciler) reconcileNormal(ctx context.Context, instance *lcmv1.OpenStackDeployment) (ctrl.Result, error) {
	Log := r.GetLogger(ctx)
	Log.Info("Reconciling Service")

	resolved, err := r.Registry.Resolve(instance.Spec.Features.Services)
	if err != nil {
		return r.fail(instance, lcmv1.ServicesReadyCondition, lcmv1.ServicesReadyErrorMessage, err)
	}

	instance.Status.Osdpl.State = lcmv1.OsdplApplying

	//
	// credentials
	//
	creds, err := r.reconcileCredentials(ctx, instance, resolved)
	if err != nil {
		return r.settle(ctx, instance, lcmv1.CredentialsReadyCondition, lcmv1.CredentialsReadyErrorMessage, tasks.Temporary(err))
	}
	instance.Status.Conditions.MarkTrue(lcmv1.CredentialsReadyCondition, lcmv1.CredentialsReadyMessage)

	//
	// image precache
	//
	ctrlResult, err := r.reconcilePrecache(ctx, instance, resolved)
	if err != nil {
		return r.settle(ctx, instance, lcmv1.PrecacheReadyCondition, lcmv1.PrecacheReadyErrorMessage, err)
	} else if (ctrlResult != ctrl.Result{}) {
		return ctrlResult, nil
	}

	//
	// changes since the last applied spec
	//
	fingerprint, err := util.ObjectHash(instance.Spec)
	if err != nil {
		return ctrl.Result{}, err
	}
	changes, err := specChanges(instance)
	if err != nil {
		return ctrl.Result{}, err
	}
	instance.Status.Osdpl.Changes = changes

	lastApplied := instance.Status.Osdpl.LastAppliedServices
	toDelete := lo.Without(lo.Union(lastApplied, lo.Keys(instance.Status.Children)), resolved...)
	sort.Strings(toDelete)

	cephPresent, err := r.reconcileWatchedSecrets(ctx, instance)
	if err != nil {
		return ctrl.Result{}, err
	}

	//
	// release upgrade
	//
	if err := r.reconcileUpgrade(ctx, instance, lo.Intersect(lastApplied, resolved), creds); err != nil {
		return r.settle(ctx, instance, lcmv1.UpgradeReadyCondition, lcmv1.UpgradeReadyErrorMessage, err)
	}
	instance.Status.Conditions.MarkTrue(lcmv1.UpgradeReadyCondition, lcmv1.UpgradeReadyMessage)

	//
	// apply and delete waves
	//
	bundles := map[string]*bundle.Bundle{}
	renderErrs := map[string]error{}
	waiting := []string{}
	pending := []tasks.Task{}
	for _, name := range resolved {
		svc, _ := r.Registry.Get(name)
		if svc.Descriptor().RequiresCeph && !cephPresent {
			waiting = append(waiting, name)
			instance.Status.Services[name] = lcmv1.ServiceStatus{
				State:     lcmv1.ServiceWaiting,
				Timestamp: r.now(),
				Error:     fmt.Sprintf("secret %s does not exist", CephSecretName),
			}
			continue
		}

		b, err := r.Renderer.Render(name, instance, creds)
		if err != nil {
			renderErrs[name] = err
			continue
		}
		if r.upToDate(instance, name, b) {
			continue
		}
		bundles[name] = b

		st := instance.Status.Services[name]
		st.State = lcmv1.ServiceApplying
		st.Timestamp = r.now()
		instance.Status.Services[name] = st
		instance.Status.Children[name] = true

		pending = append(pending, tasks.Task{
			Name: name,
			Run: func(ctx context.Context) error {
				_, err := r.Driver.Apply(ctx, instance, b)
				return err
			},
		})
	}
	for _, name := range toDelete {
		name := name
		st := instance.Status.Services[name]
		st.State = lcmv1.ServiceDeleting
		st.Timestamp = r.now()
		instance.Status.Services[name] = st

		pending = append(pending, tasks.Task{
			Name: name,
			Run: func(ctx context.Context) error {
				if err := r.Driver.Delete(ctx, instance, name); err != nil {
					return err
				}
				if r.Driver.Workflow == nil {
					return nil
				}
				return tasks.Temporary(r.Driver.Workflow.Delete(ctx, instance, name))
			},
		})
	}

	runner := &tasks.Runner{
		Backoff:  r.backoff(),
		Deadline: instance.Spec.ApplyTimeout(),
	}
	report := runner.Run(ctx, pending)
	for name, err := range renderErrs {
		report.Permanent[name] = err
	}
	r.recordServices(instance, bundles, report)

	if err := report.Err(); err != nil {
		Log.Info(fmt.Sprintf("Services not applied after %d waves", report.Waves))
		return r.settle(ctx, instance, lcmv1.ServicesReadyCondition, lcmv1.ServicesReadyErrorMessage, err)
	}
	if len(waiting) > 0 {
		instance.Status.Conditions.Set(condition.FalseCondition(
			lcmv1.ServicesReadyCondition,
			condition.RequestedReason,
			condition.SeverityInfo,
			lcmv1.ServicesReadyWaitingMessage,
			strings.Join(waiting, ", ")))
		return ctrl.Result{RequeueAfter: r.backoff()}, nil
	}

	//
	// cycle completed
	//
	current, err := json.Marshal(instance.Spec)
	if err != nil {
		return ctrl.Result{}, err
	}
	if instance.Annotations == nil {
		instance.Annotations = map[string]string{}
	}
	instance.Annotations[lcmv1.LastAppliedAnnotation] = string(current)

	instance.Status.Osdpl.State = lcmv1.OsdplApplied
	instance.Status.Osdpl.Cause = ""
	instance.Status.Osdpl.LastAppliedServices = resolved
	instance.Status.Osdpl.Timestamp = r.now()
	instance.Status.Fingerprint = fingerprint
	instance.Status.Version = r.Version
	instance.Status.OpenStackVersion = instance.Spec.OpenStackVersion
	instance.Status.Conditions.MarkTrue(lcmv1.ServicesReadyCondition, lcmv1.ServicesReadyMessage)

	if len(report.Succeeded) > 0 {
		r.event(instance, corev1.EventTypeNormal, ReasonApplied, "Services %s reconciled", strings.Join(report.Succeeded, ", "))
	}
	Log.Info("Reconciled Service successfully")
	return ctrl.Result{}, nil
}

// upToDate reports whether this process already applied bundle b
func (r *OpenStackDeploymentReconciler) upToDate(instance *lcmv1.OpenStackDeployment, name string, b *bundle.Bundle) bool {
	st, ok := instance.Status.Services[name]
	return ok &&
		st.State == lcmv1.ServiceApplied &&
		st.Fingerprint == b.Fingerprint &&
		st.RuntimeID == r.RuntimeID
}

func (r *OpenStackDeploymentReconciler) recordServices(
	instance *lcmv1.OpenStackDeployment,
	bundles map[string]*bundle.Bundle,
	report *tasks.Report,
) {
	now := r.now()
	for _, name := range report.Succeeded {
		b, ok := bundles[name]
		if !ok {
			delete(instance.Status.Services, name)
			delete(instance.Status.Children, name)
			continue
		}
		instance.Status.Services[name] = lcmv1.ServiceStatus{
			State:       lcmv1.ServiceApplied,
			Fingerprint: b.Fingerprint,
			RuntimeID:   r.RuntimeID,
			Timestamp:   now,
		}
	}
	for name, err := range report.Permanent {
		st := instance.Status.Services[name]
		st.State = lcmv1.ServiceFailed
		st.Error = err.Error()
		st.Timestamp = now
		instance.Status.Services[name] = st
	}
	for _, failed := range []map[string]error{report.Unknown, report.Pending} {
		for name, err := range failed {
			st := instance.Status.Services[name]
			st.Error = err.Error()
			st.Timestamp = now
			instance.Status.Services[name] = st
		}
	}
}

func (r *OpenStackDeploymentReconciler) reconcileCredentials(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	resolved []string,
) (credentials.Set, error) {
	Log := r.GetLogger(ctx)
	ns := instance.Namespace

	scopes := []string{lcmv1.AdminCredentials}
	for _, name := range resolved {
		if svc, ok := r.Registry.Get(name); ok {
			scopes = append(scopes, svc.Descriptor().Credentials...)
		}
	}
	scopes = lo.Uniq(scopes)

	for _, scope := range scopes {
		if _, err := r.Credentials.GetOrCreate(ctx, ns, scope); err != nil {
			return nil, err
		}
	}

	groups := lo.Keys(instance.Status.Credentials)
	sort.Strings(groups)
	for _, group := range groups {
		if !instance.Status.RotationPending(group) {
			continue
		}
		if _, err := r.Credentials.Rotate(ctx, ns, group); err != nil {
			return nil, err
		}
		st := instance.Status.Credentials[group]
		st.AppliedRotationID = st.RotationID
		instance.Status.Credentials[group] = st
		Log.Info(fmt.Sprintf("Credentials %s rotated, rotation %d", group, st.RotationID))
		r.event(instance, corev1.EventTypeNormal, ReasonCredentialsRotated, "Credentials %s rotated", group)
	}

	return r.Credentials.Collect(ctx, ns, scopes)
}

// reconcilePrecache pulls the images of all services on every node before
// they are applied
func (r *OpenStackDeploymentReconciler) reconcilePrecache(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	resolved []string,
) (ctrl.Result, error) {
	Log := r.GetLogger(ctx)

	if r.Settings == nil || !r.Settings.PrecacheEnabled {
		instance.Status.Conditions.MarkTrue(lcmv1.PrecacheReadyCondition, lcmv1.PrecacheReadyDisabledMessage)
		return ctrl.Result{}, nil
	}

	images, err := r.Renderer.Images(&instance.Spec, resolved)
	if err != nil {
		return ctrl.Result{}, tasks.Permanent(err)
	}
	labels := map[string]string{
		"app.kubernetes.io/name":     osdpl.PrecacheName,
		"app.kubernetes.io/instance": instance.Name,
	}
	desired, err := osdpl.PrecacheDaemonSet(instance, images, labels)
	if err != nil {
		return ctrl.Result{}, err
	}
	hash := desired.Annotations[osdpl.PrecacheImagesAnnotation]

	ds := &appsv1.DaemonSet{
		ObjectMeta: metav1.ObjectMeta{
			Name:      desired.Name,
			Namespace: desired.Namespace,
		},
	}
	op, err := controllerutil.CreateOrPatch(ctx, r.Client, ds, func() error {
		ds.Labels = util.MergeStringMaps(ds.Labels, desired.Labels)
		if ds.Annotations == nil {
			ds.Annotations = map[string]string{}
		}
		ds.Annotations[osdpl.PrecacheImagesAnnotation] = hash
		ds.Spec.Selector = desired.Spec.Selector
		ds.Spec.Template = desired.Spec.Template
		return controllerutil.SetControllerReference(instance, ds, r.Scheme)
	})
	if err != nil {
		return ctrl.Result{}, tasks.Temporary(err)
	}
	if op != controllerutil.OperationResultNone {
		Log.Info(fmt.Sprintf("DaemonSet %s %s", ds.Name, op))
	}

	if ds.Status.ObservedGeneration < ds.Generation || health.ClassifyDaemonSet(ds) != lcmv1.HealthReady {
		instance.Status.Conditions.Set(condition.FalseCondition(
			lcmv1.PrecacheReadyCondition,
			condition.RequestedReason,
			condition.SeverityInfo,
			lcmv1.PrecacheReadyInitMessage))
		Log.Info(fmt.Sprintf("Waiting for DaemonSet %s to cache %d images", ds.Name, len(images)))
		return ctrl.Result{RequeueAfter: r.backoff()}, nil
	}

	instance.Status.Hash[lcmv1.PrecacheHash] = hash
	instance.Status.Conditions.MarkTrue(lcmv1.PrecacheReadyCondition, lcmv1.PrecacheReadyMessage)
	return ctrl.Result{}, nil
}

// reconcileWatchedSecrets hashes the watched secrets into the status. A
// changed ceph secret makes every ceph dependent service apply again.
func (r *OpenStackDeploymentReconciler) reconcileWatchedSecrets(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
) (bool, error) {
	Log := r.GetLogger(ctx)
	cephPresent := false

	for _, name := range WatchedSecrets {
		secret := &corev1.Secret{}
		err := r.Get(ctx, types.NamespacedName{Namespace: instance.Namespace, Name: name}, secret)
		if k8s_errors.IsNotFound(err) {
			delete(instance.Status.WatchedSecrets, name)
			continue
		}
		if err != nil {
			return false, err
		}
		hash, err := util.ObjectHash(secret.Data)
		if err != nil {
			return false, err
		}
		if name == CephSecretName {
			cephPresent = true
		}

		if prev, ok := instance.Status.WatchedSecrets[name]; ok && prev != hash {
			Log.Info(fmt.Sprintf("Watched secret %s changed", name))
			r.event(instance, corev1.EventTypeNormal, ReasonWatchedSecret, "Secret %s changed", name)
			for svcName, st := range instance.Status.Services {
				svc, ok := r.Registry.Get(svcName)
				if ok && svc.Descriptor().RequiresCeph {
					st.Fingerprint = ""
					instance.Status.Services[svcName] = st
				}
			}
		}
		instance.Status.WatchedSecrets[name] = hash
	}
	return cephPresent, nil
}

// reconcileUpgrade runs the ordered upgrade of every service that was
// applied at the previous release
func (r *OpenStackDeploymentReconciler) reconcileUpgrade(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
	applied []string,
	creds credentials.Set,
) error {
	Log := r.GetLogger(ctx)

	from := instance.Status.OpenStackVersion
	to := instance.Spec.OpenStackVersion
	if from == "" || from == to {
		return nil
	}

	instance.Status.Conditions.Set(condition.FalseCondition(
		lcmv1.UpgradeReadyCondition,
		condition.RequestedReason,
		condition.SeverityInfo,
		lcmv1.UpgradeReadyRunningMessage,
		from, to))

	for _, name := range r.Registry.UpgradeOrder(applied) {
		Log.Info(fmt.Sprintf("Upgrading %s from %s to %s", name, from, to))
		b, err := r.Renderer.Render(name, instance, creds)
		if err != nil {
			return err
		}
		if err := r.Driver.Upgrade(ctx, instance, b, to); err != nil {
			var stageErr *lifecycle.StageError
			if errors.As(err, &stageErr) {
				st := instance.Status.Services[name]
				st.Error = stageErr.Error()
				st.Timestamp = r.now()
				instance.Status.Services[name] = st
			}
			return err
		}
	}
	return nil
}

// specChanges returns the json patch from the last applied spec to the
// current one, empty when nothing changed
func specChanges(instance *lcmv1.OpenStackDeployment) (string, error) {
	current, err := json.Marshal(instance.Spec)
	if err != nil {
		return "", err
	}
	previous := []byte(instance.Annotations[lcmv1.LastAppliedAnnotation])
	if len(previous) == 0 {
		previous = []byte("{}")
	}
	patch, err := jsondiff.CompareJSON(previous, current)
	if err != nil {
		return "", fmt.Errorf("comparing with the last applied spec: %w", err)
	}
	if len(patch) == 0 {
		return "", nil
	}
	out, err := json.Marshal(patch)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

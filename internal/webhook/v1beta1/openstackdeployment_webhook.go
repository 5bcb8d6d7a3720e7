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

// Package v1beta1 contains webhook implementations for OpenStackDeployment v1beta1 resources.
package v1beta1

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/validation/field"
	ctrl "sigs.k8s.io/controller-runtime"
	logf "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/webhook"
	"sigs.k8s.io/controller-runtime/pkg/webhook/admission"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
)

// Static errors for type assertions
var (
	errUnexpectedObjectType = errors.New("unexpected object type")
)

var osdpllog = logf.Log.WithName("openstackdeployment-resource")

// DefaultRegion of a deployment without one
const DefaultRegion = "RegionOne"

// SetupOpenStackDeploymentWebhookWithManager registers the webhook for OpenStackDeployment in the manager.
func SetupOpenStackDeploymentWebhookWithManager(mgr ctrl.Manager, registry *services.Registry) error {
	return ctrl.NewWebhookManagedBy(mgr).For(&lcmv1.OpenStackDeployment{}).
		WithValidator(&OpenStackDeploymentCustomValidator{Registry: registry}).
		WithDefaulter(&OpenStackDeploymentCustomDefaulter{}).
		Complete()
}

// +kubebuilder:webhook:path=/mutate-lcm-openstack-org-v1beta1-openstackdeployment,mutating=true,failurePolicy=fail,sideEffects=None,groups=lcm.openstack.org,resources=openstackdeployments,verbs=create;update,versions=v1beta1,name=mopenstackdeployment-v1beta1.kb.io,admissionReviewVersions=v1

// OpenStackDeploymentCustomDefaulter sets default values on OpenStackDeployment
// objects when those are created or updated.
type OpenStackDeploymentCustomDefaulter struct{}

var _ webhook.CustomDefaulter = &OpenStackDeploymentCustomDefaulter{}

// Default implements webhook.CustomDefaulter so a webhook will be registered for the Kind OpenStackDeployment.
func (d *OpenStackDeploymentCustomDefaulter) Default(_ context.Context, obj runtime.Object) error {
	osdpl, ok := obj.(*lcmv1.OpenStackDeployment)
	if !ok {
		return fmt.Errorf("%w: expected an OpenStackDeployment object but got %T", errUnexpectedObjectType, obj)
	}
	osdpllog.Info("Defaulting for OpenStackDeployment", "name", osdpl.GetName())

	Default(&osdpl.Spec)
	return nil
}

// Default fills in unset fields of spec. The service list is deduplicated,
// keeping the first occurrence.
func Default(spec *lcmv1.OpenStackDeploymentSpec) {
	if spec.Region == "" {
		spec.Region = DefaultRegion
	}
	if spec.Features.Nova.InstanceMigrationMode == "" {
		spec.Features.Nova.InstanceMigrationMode = lcmv1.MigrationModeLive
	}
	spec.Features.Services = lo.Uniq(spec.Features.Services)
}

// +kubebuilder:webhook:path=/validate-lcm-openstack-org-v1beta1-openstackdeployment,mutating=false,failurePolicy=fail,sideEffects=None,groups=lcm.openstack.org,resources=openstackdeployments,verbs=create;update,versions=v1beta1,name=vopenstackdeployment-v1beta1.kb.io,admissionReviewVersions=v1

// OpenStackDeploymentCustomValidator validates OpenStackDeployment objects
// against the service registry.
type OpenStackDeploymentCustomValidator struct {
	Registry *services.Registry
}

var _ webhook.CustomValidator = &OpenStackDeploymentCustomValidator{}

// ValidateCreate implements webhook.CustomValidator so a webhook will be registered for the type OpenStackDeployment.
func (v *OpenStackDeploymentCustomValidator) ValidateCreate(_ context.Context, obj runtime.Object) (admission.Warnings, error) {
	osdpl, ok := obj.(*lcmv1.OpenStackDeployment)
	if !ok {
		return nil, fmt.Errorf("%w: expected an OpenStackDeployment object but got %T", errUnexpectedObjectType, obj)
	}
	osdpllog.Info("Validation for OpenStackDeployment upon creation", "name", osdpl.GetName())

	return v.invalid(osdpl, v.validateSpec(&osdpl.Spec))
}

// ValidateUpdate implements webhook.CustomValidator so a webhook will be registered for the type OpenStackDeployment.
func (v *OpenStackDeploymentCustomValidator) ValidateUpdate(_ context.Context, oldObj, newObj runtime.Object) (admission.Warnings, error) {
	osdpl, ok := newObj.(*lcmv1.OpenStackDeployment)
	if !ok {
		return nil, fmt.Errorf("%w: expected an OpenStackDeployment object for the newObj but got %T", errUnexpectedObjectType, newObj)
	}
	old, ok := oldObj.(*lcmv1.OpenStackDeployment)
	if !ok {
		return nil, fmt.Errorf("%w: expected an OpenStackDeployment object for the oldObj but got %T", errUnexpectedObjectType, oldObj)
	}
	osdpllog.Info("Validation for OpenStackDeployment upon update", "name", osdpl.GetName())

	allErrs := v.validateSpec(&osdpl.Spec)
	allErrs = append(allErrs, validateVersionChange(old.Spec.OpenStackVersion, osdpl.Spec.OpenStackVersion)...)
	return v.invalid(osdpl, allErrs)
}

// ValidateDelete implements webhook.CustomValidator so a webhook will be registered for the type OpenStackDeployment.
func (v *OpenStackDeploymentCustomValidator) ValidateDelete(_ context.Context, obj runtime.Object) (admission.Warnings, error) {
	if _, ok := obj.(*lcmv1.OpenStackDeployment); !ok {
		return nil, fmt.Errorf("%w: expected an OpenStackDeployment object but got %T", errUnexpectedObjectType, obj)
	}
	return nil, nil
}

func (v *OpenStackDeploymentCustomValidator) invalid(osdpl *lcmv1.OpenStackDeployment, allErrs field.ErrorList) (admission.Warnings, error) {
	if len(allErrs) == 0 {
		return nil, nil
	}
	return nil, apierrors.NewInvalid(
		schema.GroupKind{Group: lcmv1.GroupVersion.Group, Kind: "OpenStackDeployment"},
		osdpl.Name, allErrs)
}

func (v *OpenStackDeploymentCustomValidator) validateSpec(spec *lcmv1.OpenStackDeploymentSpec) field.ErrorList {
	var allErrs field.ErrorList
	specPath := field.NewPath("spec")

	if !spec.OpenStackVersion.IsValid() {
		allErrs = append(allErrs, field.NotSupported(
			specPath.Child("openstackVersion"), spec.OpenStackVersion,
			lo.Map(lcmv1.OpenStackVersions, func(v lcmv1.OpenStackVersion, _ int) string { return string(v) })))
	}

	servicesPath := specPath.Child("features", "services")
	if len(spec.Features.Services) == 0 {
		allErrs = append(allErrs, field.Required(servicesPath, "at least one service must be enabled"))
	} else if v.Registry != nil {
		if _, err := v.Registry.Resolve(spec.Features.Services); err != nil {
			allErrs = append(allErrs, field.Invalid(servicesPath, spec.Features.Services, err.Error()))
		}
	}

	commonPath := specPath.Child("common")
	allErrs = append(allErrs, validateValues(commonPath.Child("openstack"), spec.Common.OpenStack)...)
	allErrs = append(allErrs, validateValues(commonPath.Child("infra"), spec.Common.Infra)...)
	for chart, raw := range spec.Common.Charts {
		allErrs = append(allErrs, validateValues(commonPath.Child("charts").Key(chart), raw)...)
	}
	for name, override := range spec.Services {
		p := specPath.Child("services").Key(name)
		if v.Registry != nil {
			if _, ok := v.Registry.Get(name); !ok {
				allErrs = append(allErrs, field.NotFound(p, name))
				continue
			}
		}
		for chart, raw := range override.Charts {
			allErrs = append(allErrs, validateValues(p.Child("charts").Key(chart), raw)...)
		}
	}
	return allErrs
}

func validateValues(p *field.Path, raw runtime.RawExtension) field.ErrorList {
	if _, err := lcmv1.DecodeValues(raw); err != nil {
		return field.ErrorList{field.Invalid(p, string(raw.Raw), err.Error())}
	}
	return nil
}

// validateVersionChange allows keeping the release or moving to the next one
func validateVersionChange(from, to lcmv1.OpenStackVersion) field.ErrorList {
	p := field.NewPath("spec", "openstackVersion")
	if from == to || !from.IsValid() || !to.IsValid() {
		return nil
	}
	if to.Compare(from) < 0 {
		return field.ErrorList{field.Forbidden(p, fmt.Sprintf("downgrade from %s to %s is not supported", from, to))}
	}
	if next, _ := from.Next(); next != to {
		return field.ErrorList{field.Forbidden(p, fmt.Sprintf("upgrade from %s must go to %s first", from, next))}
	}
	return nil
}

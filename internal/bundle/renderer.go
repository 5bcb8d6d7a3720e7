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

// Package bundle renders the helm releases of a service from the deployment
// spec into a fingerprinted bundle.
package bundle

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"text/template"

	"github.com/openstack-k8s-operators/lib-common/modules/common/util"
	"gopkg.in/yaml.v3"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/credentials"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/layers"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

// Release is one rendered chart installation
type Release struct {
	Name      string
	Chart     string
	Version   string
	Namespace string
	Values    layers.Values
	// Fingerprint of this release alone
	Fingerprint string
}

// Bundle is the complete desired state of one service
type Bundle struct {
	Service       string
	Repository    string
	Releases      []Release
	Fingerprint   string
	EngineVersion string
}

// Release returns the named release, or nil
func (b *Bundle) Release(name string) *Release {
	for i := range b.Releases {
		if b.Releases[i].Name == name {
			return &b.Releases[i]
		}
	}
	return nil
}

// ImageTag returns images.tags.<key> of a release
func (b *Bundle) ImageTag(release, key string) (string, bool) {
	r := b.Release(release)
	if r == nil {
		return "", false
	}
	v, ok := layers.Lookup(r.Values, "images", "tags", key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

type templateContext struct {
	Service     string
	Release     string
	Namespace   string
	Version     lcmv1.OpenStackVersion
	Region      string
	Args        map[string]interface{}
	Credentials credentials.Set
}

// Renderer turns a deployment spec into bundles
type Renderer struct {
	Registry      *services.Registry
	EngineVersion string
	Catalog       *Catalog

	templates *template.Template
}

// NewRenderer loads the built in catalog and value templates
func NewRenderer(registry *services.Registry, engineVersion string) (*Renderer, error) {
	catalog, err := LoadCatalog()
	if err != nil {
		return nil, err
	}
	tmpl, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("parsing value templates: %w", err)
	}
	return &Renderer{
		Registry:      registry,
		EngineVersion: engineVersion,
		Catalog:       catalog,
		templates:     tmpl,
	}, nil
}

// Render builds the bundle of service. Rendering is a pure function of its
// inputs, so equal inputs always give equal fingerprints. Errors caused by the
// inputs are permanent.
func (r *Renderer) Render(
	service string,
	osdpl *lcmv1.OpenStackDeployment,
	creds credentials.Set,
) (*Bundle, error) {
	svc, ok := r.Registry.Get(service)
	if !ok {
		return nil, tasks.Permanentf("unknown service %s", service)
	}
	d := svc.Descriptor()

	for _, scope := range d.Credentials {
		if _, ok := creds[scope]; !ok {
			return nil, tasks.Permanentf("credential %s required by %s is missing", scope, service)
		}
	}

	spec := &osdpl.Spec
	group, err := groupValues(spec, d.Group)
	if err != nil {
		return nil, tasks.Permanent(fmt.Errorf("common.%s: %w", d.Group, err))
	}

	ctx := templateContext{
		Service:     service,
		Namespace:   osdpl.Namespace,
		Version:     spec.OpenStackVersion,
		Region:      spec.Region,
		Args:        svc.TemplateArgs(spec),
		Credentials: creds,
	}

	b := &Bundle{
		Service:       service,
		Repository:    r.Catalog.Repository(spec),
		EngineVersion: r.EngineVersion,
	}
	for _, rel := range d.Releases {
		ctx.Release = rel.Name
		release, err := r.renderRelease(d, rel, spec, group, ctx)
		if err != nil {
			return nil, err
		}
		release.Namespace = osdpl.Namespace
		release.Fingerprint, err = util.ObjectHash(release)
		if err != nil {
			return nil, err
		}
		b.Releases = append(b.Releases, *release)
	}

	b.Fingerprint, err = Fingerprint(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Renderer) renderRelease(
	d *services.Descriptor,
	rel services.Release,
	spec *lcmv1.OpenStackDeploymentSpec,
	group layers.Values,
	ctx templateContext,
) (*Release, error) {
	version, err := r.Catalog.ChartVersion(rel.Chart)
	if err != nil {
		return nil, tasks.Permanent(err)
	}

	defaults, err := r.execute(rel.Chart, ctx)
	if err != nil {
		return nil, tasks.Permanent(fmt.Errorf("rendering %s: %w", rel.Name, err))
	}
	for _, key := range d.ImageKeys(rel.Name) {
		ref, err := r.Catalog.ImageRef(spec, key)
		if err != nil {
			return nil, tasks.Permanent(err)
		}
		layers.Set(defaults, ref, "images", "tags", key)
	}

	chartCommon, err := lcmv1.DecodeValues(spec.Common.Charts[rel.Chart])
	if err != nil {
		return nil, tasks.Permanent(fmt.Errorf("common.charts.%s: %w", rel.Chart, err))
	}
	override, err := lcmv1.DecodeValues(spec.Services[d.Name].Charts[rel.Chart])
	if err != nil {
		return nil, tasks.Permanent(fmt.Errorf("services.%s.charts.%s: %w", d.Name, rel.Chart, err))
	}

	values, err := layers.MergeLayers(d.Name, defaults, group, chartCommon, override)
	if err != nil {
		var conflict *layers.ConflictError
		if errors.As(err, &conflict) {
			return nil, tasks.Permanent(err)
		}
		return nil, err
	}

	return &Release{
		Name:    rel.Name,
		Chart:   rel.Chart,
		Version: version,
		Values:  values,
	}, nil
}

func (r *Renderer) execute(chart string, ctx templateContext) (layers.Values, error) {
	buf := &bytes.Buffer{}
	if err := r.templates.ExecuteTemplate(buf, chart+".yaml", ctx); err != nil {
		return nil, err
	}
	values := layers.Values{}
	if err := yaml.Unmarshal(buf.Bytes(), &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Images returns every image reference used by services, keyed by image
// key
func (r *Renderer) Images(spec *lcmv1.OpenStackDeploymentSpec, names []string) (map[string]string, error) {
	images := map[string]string{}
	for _, name := range names {
		svc, ok := r.Registry.Get(name)
		if !ok {
			continue
		}
		d := svc.Descriptor()
		for _, rel := range d.Releases {
			for _, key := range d.ImageKeys(rel.Name) {
				ref, err := r.Catalog.ImageRef(spec, key)
				if err != nil {
					return nil, err
				}
				images[key] = ref
			}
		}
	}
	return images, nil
}

func groupValues(spec *lcmv1.OpenStackDeploymentSpec, g services.Group) (layers.Values, error) {
	if g == services.GroupInfra {
		return lcmv1.DecodeValues(spec.Common.Infra)
	}
	return lcmv1.DecodeValues(spec.Common.OpenStack)
}

type fingerprintRelease struct {
	Name      string        `json:"name"`
	Chart     string        `json:"chart"`
	Version   string        `json:"version"`
	Namespace string        `json:"namespace"`
	Values    layers.Values `json:"values"`
}

// Fingerprint hashes the canonical form of a bundle. Map keys are encoded in
// sorted order so key order never changes the result, while any nested value
// change does.
func Fingerprint(b *Bundle) (string, error) {
	releases := make([]fingerprintRelease, 0, len(b.Releases))
	for _, r := range b.Releases {
		releases = append(releases, fingerprintRelease{
			Name: r.Name, Chart: r.Chart, Version: r.Version, Namespace: r.Namespace, Values: r.Values,
		})
	}
	sort.Slice(releases, func(i, j int) bool { return releases[i].Name < releases[j].Name })
	return util.ObjectHash(struct {
		Service    string               `json:"service"`
		Repository string               `json:"repository"`
		Releases   []fingerprintRelease `json:"releases"`
	}{b.Service, b.Repository, releases})
}

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

package bundle

import (
	"embed"
	"fmt"
	"strconv"
	"text/template"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

//go:embed data/catalog.yaml
var catalogData []byte

//go:embed templates/*.yaml
var templateFS embed.FS

// Catalog - chart versions and image names
type Catalog struct {
	DefaultImagesBaseURL  string            `yaml:"defaultImagesBaseURL"`
	DefaultHelmRepository string            `yaml:"defaultHelmRepository"`
	Charts                map[string]string `yaml:"charts"`
	Images                map[string]string `yaml:"images"`
}

// LoadCatalog parses the built in catalog
func LoadCatalog() (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(catalogData, c); err != nil {
		return nil, fmt.Errorf("parsing chart catalog: %w", err)
	}
	return c, nil
}

// runtimeNamespace scopes engine runtime identifiers
var runtimeNamespace = uuid.MustParse("0b5f6a2e-6c1d-4f4e-9a53-2f1d8c7e4b10")

// RuntimeID derives a stable identifier of the engine build from its version,
// the embedded catalog and the value templates. A restarted controller of the
// same build gets the same identifier.
func RuntimeID(engineVersion string) (string, error) {
	data := []byte(engineVersion + "\n")
	data = append(data, catalogData...)
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return "", fmt.Errorf("listing value templates: %w", err)
	}
	for _, e := range entries {
		b, err := templateFS.ReadFile("templates/" + e.Name())
		if err != nil {
			return "", fmt.Errorf("reading template %s: %w", e.Name(), err)
		}
		data = append(data, e.Name()...)
		data = append(data, b...)
	}
	return uuid.NewSHA1(runtimeNamespace, data).String(), nil
}

// ChartVersion -
func (c *Catalog) ChartVersion(chart string) (string, error) {
	v, ok := c.Charts[chart]
	if !ok {
		return "", fmt.Errorf("chart %s is not in the catalog", chart)
	}
	return v, nil
}

// ImageRef resolves an image key to a reference. An explicit entry in
// spec.artifacts.images wins, otherwise the catalog image is tagged with the
// OpenStack release.
func (c *Catalog) ImageRef(spec *lcmv1.OpenStackDeploymentSpec, key string) (string, error) {
	if ref, ok := spec.Artifacts.Images[key]; ok && ref != "" {
		return ref, nil
	}
	name, ok := c.Images[key]
	if !ok {
		return "", fmt.Errorf("image %s is not in the catalog", key)
	}
	base := spec.Artifacts.ImagesBaseURL
	if base == "" {
		base = c.DefaultImagesBaseURL
	}
	return fmt.Sprintf("%s/%s:%s", base, name, spec.OpenStackVersion), nil
}

// Repository - helm repository of the deployment
func (c *Catalog) Repository(spec *lcmv1.OpenStackDeploymentSpec) string {
	if spec.Artifacts.HelmRepository != "" {
		return spec.Artifacts.HelmRepository
	}
	return c.DefaultHelmRepository
}

func loadTemplates() (*template.Template, error) {
	return template.New("values").
		Option("missingkey=error").
		Funcs(template.FuncMap{"quote": strconv.Quote}).
		ParseFS(templateFS, "templates/*.yaml")
}

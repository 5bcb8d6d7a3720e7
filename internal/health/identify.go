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
	"regexp"
	"strings"
)

const (
	// ApplicationLabel names the application of a workload
	ApplicationLabel = "application"
	// ComponentLabel names the component within the application
	ComponentLabel = "component"

	exporterComponent = "exporter"
)

type identifyRule struct {
	name string
	// match returns the key and true when the rule applies
	match func(app, component, name string) (string, string, bool)
}

var (
	prometheusExporterRe = regexp.MustCompile(`^prometheus-(.+)-exporter$`)
	serviceRabbitmqRe    = regexp.MustCompile(`^openstack-(.+)-rabbitmq-rabbitmq$`)
)

// identifyRules are applied in order, the first match wins
var identifyRules = []identifyRule{
	{
		name: "prometheus exporter application",
		match: func(app, _, _ string) (string, string, bool) {
			m := prometheusExporterRe.FindStringSubmatch(app)
			if m == nil {
				return "", "", false
			}
			return m[1], exporterComponent, true
		},
	},
	{
		name: "exporter component",
		match: func(app, component, _ string) (string, string, bool) {
			if app == "" || !strings.HasSuffix(component, "-exporter") {
				return "", "", false
			}
			return app, exporterComponent, true
		},
	},
	{
		name: "rabbitmq of a service",
		match: func(app, component, name string) (string, string, bool) {
			if app != "rabbitmq" {
				return "", "", false
			}
			m := serviceRabbitmqRe.FindStringSubmatch(name)
			if m == nil {
				return "", "", false
			}
			if component == "" {
				component = "server"
			}
			return "rabbitmq-" + m[1], component, true
		},
	},
	{
		name: "labelled",
		match: func(app, component, name string) (string, string, bool) {
			if app == "" {
				return "", "", false
			}
			if component == "" {
				component = strings.TrimPrefix(name, app+"-")
			}
			return app, component, true
		},
	},
}

// Identify derives the (application, component) key of a workload from its
// labels, falling back to its name
func Identify(labels map[string]string, name string) (string, string) {
	app, component := labels[ApplicationLabel], labels[ComponentLabel]
	for _, rule := range identifyRules {
		if a, c, ok := rule.match(app, component, name); ok {
			return a, c
		}
	}
	// no labels, split the name
	if i := strings.Index(name, "-"); i > 0 {
		return name[:i], name[i+1:]
	}
	return name, name
}

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

package layers

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/onsi/gomega"
)

func TestMergeLayers(t *testing.T) {
	tests := []struct {
		name     string
		defaults Values
		group    Values
		common   Values
		service  Values
		want     Values
	}{
		{
			name: "No data",
			want: Values{},
		},
		{
			name:     "scalar overridden by more specific layer",
			defaults: Values{"pod": Values{"replicas": 1}},
			group:    Values{"pod": Values{"replicas": 2}},
			service:  Values{"pod": Values{"replicas": 3}},
			want:     Values{"pod": Values{"replicas": 3}},
		},
		{
			name:     "maps merge key by key",
			defaults: Values{"conf": Values{"keystone": Values{"debug": false, "workers": 4}}},
			common:   Values{"conf": Values{"keystone": Values{"debug": true}}},
			want:     Values{"conf": Values{"keystone": Values{"debug": true, "workers": 4}}},
		},
		{
			name:     "lists append",
			defaults: Values{"hosts": []interface{}{"a"}},
			group:    Values{"hosts": []interface{}{"b"}},
			service:  Values{"hosts": []interface{}{"c"}},
			want:     Values{"hosts": []interface{}{"a", "b", "c"}},
		},
		{
			name:     "null removes key",
			defaults: Values{"conf": Values{"policy": Values{"a": "b"}, "debug": true}},
			service:  Values{"conf": Values{"policy": nil}},
			want:     Values{"conf": Values{"debug": true}},
		},
		{
			name:    "new keys are added",
			service: Values{"manifests": Values{"job_db_drop": true}},
			want:    Values{"manifests": Values{"job_db_drop": true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			got, err := MergeLayers("identity", tt.defaults, tt.group, tt.common, tt.service)
			g.Expect(err).ToNot(HaveOccurred())
			g.Expect(got).To(Equal(tt.want))
		})
	}
}

func TestMergeConflict(t *testing.T) {
	tests := []struct {
		name    string
		base    Values
		overlay Values
		path    []string
	}{
		{
			name:    "list into map",
			base:    Values{"conf": Values{"a": 1}},
			overlay: Values{"conf": []interface{}{1}},
			path:    []string{"conf"},
		},
		{
			name:    "map into scalar",
			base:    Values{"conf": Values{"debug": true}},
			overlay: Values{"conf": Values{"debug": Values{"x": 1}}},
			path:    []string{"conf", "debug"},
		},
		{
			name:    "scalar into list",
			base:    Values{"hosts": []interface{}{"a"}},
			overlay: Values{"hosts": "b"},
			path:    []string{"hosts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)

			_, err := MergeLayers("compute", tt.base, nil, nil, tt.overlay)
			g.Expect(err).To(HaveOccurred())

			var conflict *ConflictError
			g.Expect(errors.As(err, &conflict)).To(BeTrue())
			g.Expect(conflict.Service).To(Equal("compute"))
			g.Expect(conflict.Layer).To(Equal(LayerService))
			g.Expect(conflict.Path).To(Equal(tt.path))
		})
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	g := NewWithT(t)

	defaults := Values{"conf": Values{"debug": false}, "hosts": []interface{}{"a"}}
	service := Values{"conf": Values{"debug": true}, "hosts": []interface{}{"b"}}

	before, _ := json.Marshal(defaults)
	got, err := MergeLayers("identity", defaults, nil, nil, service)
	g.Expect(err).ToNot(HaveOccurred())
	after, _ := json.Marshal(defaults)
	g.Expect(after).To(Equal(before))

	// the result shares no structure with its inputs
	got["conf"].(map[string]interface{})["debug"] = "changed"
	g.Expect(service["conf"].(map[string]interface{})["debug"]).To(BeTrue())
}

func TestMergeDeterministic(t *testing.T) {
	g := NewWithT(t)

	build := func(order []string) Values {
		v := Values{}
		for _, k := range order {
			v[k] = Values{"value": k}
		}
		return v
	}

	first, err := MergeLayers("image", build([]string{"a", "b", "c"}), nil, nil, build([]string{"d"}))
	g.Expect(err).ToNot(HaveOccurred())
	second, err := MergeLayers("image", build([]string{"c", "a", "b"}), nil, nil, build([]string{"d"}))
	g.Expect(err).ToNot(HaveOccurred())

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	g.Expect(a).To(Equal(b))
}

func TestLookupAndSet(t *testing.T) {
	g := NewWithT(t)

	v := Values{}
	Set(v, "quay.io/keystone:train", "images", "tags", "keystone_api")

	got, ok := Lookup(v, "images", "tags", "keystone_api")
	g.Expect(ok).To(BeTrue())
	g.Expect(got).To(Equal("quay.io/keystone:train"))

	_, ok = Lookup(v, "images", "missing")
	g.Expect(ok).To(BeFalse())
}

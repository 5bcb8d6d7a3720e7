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

package v1beta1

import (
	"testing"

	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/runtime"
)

func TestOpenStackVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		a    OpenStackVersion
		b    OpenStackVersion
		want int
	}{
		{name: "older", a: OpenStackStein, b: OpenStackTrain, want: -1},
		{name: "equal", a: OpenStackTrain, b: OpenStackTrain, want: 0},
		{name: "newer", a: OpenStackMaster, b: OpenStackQueens, want: 1},
		{name: "unknown is oldest", a: "folsom", b: OpenStackQueens, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			g.Expect(tt.a.Compare(tt.b)).To(Equal(tt.want))
		})
	}
}

func TestOpenStackVersionNext(t *testing.T) {
	g := NewWithT(t)

	next, ok := OpenStackStein.Next()
	g.Expect(ok).To(BeTrue())
	g.Expect(next).To(Equal(OpenStackTrain))

	_, ok = OpenStackMaster.Next()
	g.Expect(ok).To(BeFalse())

	_, ok = OpenStackVersion("folsom").Next()
	g.Expect(ok).To(BeFalse())
}

func TestHealthGreen(t *testing.T) {
	tests := []struct {
		name   string
		health map[string]map[string]HealthRecord
		want   bool
	}{
		{name: "No data", health: nil, want: true},
		{
			name: "all ready",
			health: map[string]map[string]HealthRecord{
				"keystone": {"api": {Status: HealthReady, Generation: 2}},
				"nova":     {"compute": {Status: HealthReady, Generation: 1}},
			},
			want: true,
		},
		{
			name: "one progressing",
			health: map[string]map[string]HealthRecord{
				"keystone": {"api": {Status: HealthReady, Generation: 2}},
				"nova":     {"compute": {Status: HealthProgressing, Generation: 3}},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			status := OpenStackDeploymentStatus{Health: tt.health}
			g.Expect(status.HealthGreen()).To(Equal(tt.want))
		})
	}
}

func TestDecodeValues(t *testing.T) {
	g := NewWithT(t)

	values, err := DecodeValues(runtime.RawExtension{})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(values).To(BeEmpty())

	values, err = DecodeValues(runtime.RawExtension{Raw: []byte(`{"conf":{"debug":true}}`)})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(values).To(HaveKeyWithValue("conf", map[string]interface{}{"debug": true}))

	_, err = DecodeValues(runtime.RawExtension{Raw: []byte(`[1,2]`)})
	g.Expect(err).To(HaveOccurred())

	raw, err := EncodeValues(map[string]interface{}{"a": "b"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(string(raw.Raw)).To(Equal(`{"a":"b"}`))
}

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

package settings

import (
	"os"
	"testing"
	"time"

	. "github.com/onsi/gomega"
)

func TestLoadDefaults(t *testing.T) {
	g := NewWithT(t)
	for _, env := range []string{
		WorkersEnv, HelmBinaryEnv, HelmTimeoutEnv, TaskBackoffEnv,
		PrecacheEnabledEnv, WaitTimeoutEnv, ManagedNodeLabelsEnv, WatchNamespaceEnv,
	} {
		// restored on cleanup
		t.Setenv(env, "")
		os.Unsetenv(env)
	}

	s, err := Load()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(s.Workers).To(BeEquivalentTo(4))
	g.Expect(s.HelmBinary).To(Equal("helm"))
	g.Expect(s.TaskBackoff).To(Equal(10 * time.Second))
	g.Expect(s.WaitTimeout).To(Equal(10 * time.Minute))
	g.Expect(s.PrecacheEnabled).To(BeTrue())
	g.Expect(s.ManagedNodeLabels).To(Equal(map[string]string{"openstack-compute-node": "enabled"}))
}

func TestLoadOverrides(t *testing.T) {
	g := NewWithT(t)
	t.Setenv(WorkersEnv, "8")
	t.Setenv(TaskBackoffEnv, "3s")
	t.Setenv(PrecacheEnabledEnv, "false")
	t.Setenv(ManagedNodeLabelsEnv, "role=compute, zone=a")
	t.Setenv(WatchNamespaceEnv, "openstack")

	s, err := Load()
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(s.Workers).To(BeEquivalentTo(8))
	g.Expect(s.TaskBackoff).To(Equal(3 * time.Second))
	g.Expect(s.PrecacheEnabled).To(BeFalse())
	g.Expect(s.ManagedNodeLabels).To(Equal(map[string]string{"role": "compute", "zone": "a"}))
	g.Expect(s.WatchNamespace).To(Equal("openstack"))
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		WorkersEnv:       "0",
		TaskBackoffEnv:       "soon",
		PrecacheEnabledEnv:   "maybe",
		ManagedNodeLabelsEnv: "=x",
	}
	for env, value := range tests {
		t.Run(env, func(t *testing.T) {
			g := NewWithT(t)
			t.Setenv(env, value)
			_, err := Load()
			g.Expect(err).To(MatchError(ContainSubstring(env)))
		})
	}
}

func TestParseLabels(t *testing.T) {
	g := NewWithT(t)

	set, err := ParseLabels("openstack-compute-node=enabled,node-role.kubernetes.io/compute=")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(set).To(Equal(map[string]string{
		"openstack-compute-node":         "enabled",
		"node-role.kubernetes.io/compute": "",
	}))

	set, err = ParseLabels("")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(set).To(BeEmpty())

	_, err = ParseLabels("bad key=x")
	g.Expect(err).To(HaveOccurred())
	_, err = ParseLabels("role")
	g.Expect(err).To(HaveOccurred())
}

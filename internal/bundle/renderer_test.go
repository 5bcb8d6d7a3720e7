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
	"testing"

	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/credentials"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/layers"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/services"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

func raw(s string) runtime.RawExtension {
	return runtime.RawExtension{Raw: []byte(s)}
}

func newOsdpl() *lcmv1.OpenStackDeployment {
	return &lcmv1.OpenStackDeployment{
		ObjectMeta: metav1.ObjectMeta{Name: "osdpl", Namespace: "openstack"},
		Spec: lcmv1.OpenStackDeploymentSpec{
			OpenStackVersion: lcmv1.OpenStackAntelope,
			Region:           "RegionOne",
			Features: lcmv1.FeaturesSpec{
				Services: []string{services.Identity, services.Compute},
			},
		},
	}
}

func allCredentials() credentials.Set {
	set := credentials.Set{}
	for _, scope := range []string{
		lcmv1.AdminCredentials, services.Identity, services.Database, services.Messaging,
		services.Compute, services.Image, services.Networking, services.Placement,
	} {
		set[scope] = credentials.Credential{Username: scope, Password: "pw-" + scope}
	}
	return set
}

func newRenderer(g Gomega) *Renderer {
	r, err := NewRenderer(services.NewDefaultRegistry(), "1.0.0")
	g.Expect(err).ToNot(HaveOccurred())
	return r
}

func TestRenderIdentity(t *testing.T) {
	g := NewWithT(t)
	r := newRenderer(g)

	b, err := r.Render(services.Identity, newOsdpl(), allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(b.Service).To(Equal(services.Identity))
	g.Expect(b.EngineVersion).To(Equal("1.0.0"))
	g.Expect(b.Fingerprint).ToNot(BeEmpty())
	g.Expect(b.Releases).To(HaveLen(1))

	rel := b.Releases[0]
	g.Expect(rel.Name).To(Equal("openstack-keystone"))
	g.Expect(rel.Namespace).To(Equal("openstack"))
	g.Expect(rel.Version).To(Equal("0.3.15"))

	tag, ok := b.ImageTag("openstack-keystone", "keystone_api")
	g.Expect(ok).To(BeTrue())
	g.Expect(tag).To(Equal("docker.io/openstackhelm/keystone:antelope"))

	pass, ok := layers.Lookup(rel.Values, "endpoints", "identity", "auth", "admin", "password")
	g.Expect(ok).To(BeTrue())
	g.Expect(pass).To(Equal("pw-admin"))

	region, _ := layers.Lookup(rel.Values, "endpoints", "identity", "auth", "admin", "region_name")
	g.Expect(region).To(Equal("RegionOne"))
}

func TestRenderComputeReleases(t *testing.T) {
	g := NewWithT(t)
	r := newRenderer(g)

	osdpl := newOsdpl()
	osdpl.Spec.Features.Nova.LiveMigrationInterface = "br-mgmt"
	osdpl.Spec.Artifacts.Images = map[string]string{"libvirt": "registry.local/libvirt:6.0"}

	b, err := r.Render(services.Compute, osdpl, allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(b.Releases).To(HaveLen(2))
	g.Expect(b.Release("openstack-libvirt")).ToNot(BeNil())
	g.Expect(b.Release("missing")).To(BeNil())

	tag, _ := b.ImageTag("openstack-libvirt", "libvirt")
	g.Expect(tag).To(Equal("registry.local/libvirt:6.0"))

	iface, _ := layers.Lookup(b.Release("openstack-nova").Values, "conf", "nova", "libvirt", "live_migration_interface")
	g.Expect(iface).To(Equal("br-mgmt"))
	mode, _ := layers.Lookup(b.Release("openstack-nova").Values, "conf", "maintenance", "instance_migration_mode")
	g.Expect(mode).To(Equal("live"))
}

func TestRenderLayers(t *testing.T) {
	g := NewWithT(t)
	r := newRenderer(g)

	osdpl := newOsdpl()
	osdpl.Spec.Common.OpenStack = raw(`{"pod":{"replicas":{"api":2}}}`)
	osdpl.Spec.Common.Charts = map[string]runtime.RawExtension{
		"keystone": raw(`{"pod":{"replicas":{"api":3}},"conf":{"keystone":{"DEFAULT":{"max_token_size":255}}}}`),
	}
	osdpl.Spec.Services = map[string]lcmv1.ServiceOverrides{
		services.Identity: {Charts: map[string]runtime.RawExtension{
			"keystone": raw(`{"pod":{"replicas":{"api":5}},"manifests":{"job_db_sync_expand":null}}`),
		}},
	}

	b, err := r.Render(services.Identity, osdpl, allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	values := b.Releases[0].Values

	replicas, _ := layers.Lookup(values, "pod", "replicas", "api")
	g.Expect(replicas).To(BeNumerically("==", 5))
	size, _ := layers.Lookup(values, "conf", "keystone", "DEFAULT", "max_token_size")
	g.Expect(size).To(BeNumerically("==", 255))
	_, ok := layers.Lookup(values, "manifests", "job_db_sync_expand")
	g.Expect(ok).To(BeFalse())
}

func TestRenderFingerprint(t *testing.T) {
	g := NewWithT(t)
	r := newRenderer(g)

	first, err := r.Render(services.Identity, newOsdpl(), allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	second, err := r.Render(services.Identity, newOsdpl(), allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(second.Fingerprint).To(Equal(first.Fingerprint))
	g.Expect(second.Releases[0].Fingerprint).To(Equal(first.Releases[0].Fingerprint))

	// key order of the input does not matter
	a := newOsdpl()
	a.Spec.Common.OpenStack = raw(`{"a":1,"b":{"c":2,"d":3}}`)
	b := newOsdpl()
	b.Spec.Common.OpenStack = raw(`{"b":{"d":3,"c":2},"a":1}`)
	fa, err := r.Render(services.Identity, a, allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	fb, err := r.Render(services.Identity, b, allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(fa.Fingerprint).To(Equal(fb.Fingerprint))

	// a deeply nested change does
	c := newOsdpl()
	c.Spec.Common.OpenStack = raw(`{"a":1,"b":{"c":2,"d":4}}`)
	fc, err := r.Render(services.Identity, c, allCredentials())
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(fc.Fingerprint).ToNot(Equal(fa.Fingerprint))

	// so does a credential change
	creds := allCredentials()
	creds[lcmv1.AdminCredentials] = credentials.Credential{Username: "admin", Password: "rotated"}
	fd, err := r.Render(services.Identity, newOsdpl(), creds)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(fd.Fingerprint).ToNot(Equal(first.Fingerprint))
}

func TestRuntimeID(t *testing.T) {
	g := NewWithT(t)

	first, err := RuntimeID("1.0.0")
	g.Expect(err).ToNot(HaveOccurred())
	again, err := RuntimeID("1.0.0")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(again).To(Equal(first))

	next, err := RuntimeID("1.1.0")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(next).ToNot(Equal(first))
}

func TestRenderErrorsArePermanent(t *testing.T) {
	tests := []struct {
		name    string
		service string
		mutate  func(*lcmv1.OpenStackDeployment, credentials.Set)
	}{
		{
			name:    "missing credential",
			service: services.Identity,
			mutate: func(_ *lcmv1.OpenStackDeployment, c credentials.Set) {
				delete(c, lcmv1.AdminCredentials)
			},
		},
		{
			name:    "type conflict",
			service: services.Identity,
			mutate: func(o *lcmv1.OpenStackDeployment, _ credentials.Set) {
				o.Spec.Common.OpenStack = raw(`{"pod":"flat"}`)
			},
		},
		{
			name:    "values not an object",
			service: services.Identity,
			mutate: func(o *lcmv1.OpenStackDeployment, _ credentials.Set) {
				o.Spec.Common.OpenStack = raw(`[1,2]`)
			},
		},
		{
			name:    "unknown service",
			service: "object-storage",
			mutate:  func(*lcmv1.OpenStackDeployment, credentials.Set) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			r := newRenderer(g)

			osdpl := newOsdpl()
			creds := allCredentials()
			tt.mutate(osdpl, creds)

			_, err := r.Render(tt.service, osdpl, creds)
			g.Expect(err).To(HaveOccurred())
			g.Expect(tasks.IsPermanent(err)).To(BeTrue())
		})
	}
}

func TestRenderEveryService(t *testing.T) {
	g := NewWithT(t)
	r := newRenderer(g)

	creds := allCredentials()
	creds[services.BlockStorage] = credentials.Credential{Username: "blockstorage", Password: "pw"}
	creds[services.Dashboard] = credentials.Credential{Username: "dashboard", Password: "pw"}

	for _, name := range r.Registry.Names() {
		b, err := r.Render(name, newOsdpl(), creds)
		g.Expect(err).ToNot(HaveOccurred(), name)
		g.Expect(b.Releases).ToNot(BeEmpty(), name)
	}

	images, err := r.Images(&newOsdpl().Spec, []string{services.Identity, "unknown"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(images).To(HaveKeyWithValue("keystone_api", "docker.io/openstackhelm/keystone:antelope"))
	g.Expect(images).To(HaveKey("bootstrap"))
}

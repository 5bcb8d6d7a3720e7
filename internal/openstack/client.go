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

// Package openstack talks to the APIs of a deployed cloud on behalf of node
// maintenance.
package openstack

import (
	"context"
	"fmt"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/migrate"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/extensions/services"
	"github.com/gophercloud/gophercloud/openstack/compute/v2/servers"
	"github.com/gophercloud/gophercloud/openstack/networking/v2/extensions/agents"
	"k8s.io/utils/ptr"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/credentials"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/tasks"
)

const (
	// computeMicroversion allows service updates by id
	computeMicroversion = "2.53"

	computeBinary = "nova-compute"
)

// Instance is a server running on a compute host
type Instance struct {
	ID     string
	Name   string
	Status string
}

// Compute - nova operations used by node maintenance
type Compute interface {
	DisableService(ctx context.Context, host, reason string) error
	EnableService(ctx context.Context, host string) error
	ListInstances(ctx context.Context, host string) ([]Instance, error)
	LiveMigrate(ctx context.Context, id string) error
}

// Network - neutron operations used by node maintenance
type Network interface {
	SetAgentsAdminState(ctx context.Context, host string, up bool) error
}

// Factory builds API clients for a deployment
type Factory interface {
	Compute(ctx context.Context, instance *lcmv1.OpenStackDeployment) (Compute, error)
	Network(ctx context.Context, instance *lcmv1.OpenStackDeployment) (Network, error)
}

// AuthURL - internal identity endpoint of the deployment in namespace
func AuthURL(namespace string) string {
	return fmt.Sprintf("http://keystone-api.%s.svc.cluster.local:5000/v3", namespace)
}

// CloudFactory authenticates as the cloud admin with the generated admin
// credential. API requests share the blocking call pool with helm.
type CloudFactory struct {
	Credentials *credentials.Provider
	Pool        *tasks.Pool
	// AuthURL overrides the identity endpoint, AuthURL() when nil
	AuthURL func(namespace string) string
}

// NewCloudFactory -
func NewCloudFactory(p *credentials.Provider, pool *tasks.Pool) *CloudFactory {
	return &CloudFactory{Credentials: p, Pool: pool}
}

func (f *CloudFactory) provider(
	ctx context.Context,
	instance *lcmv1.OpenStackDeployment,
) (*gophercloud.ProviderClient, error) {
	cred, err := f.Credentials.Get(ctx, instance.Namespace, lcmv1.AdminCredentials)
	if err != nil {
		return nil, fmt.Errorf("admin credential: %w", err)
	}
	authURL := AuthURL
	if f.AuthURL != nil {
		authURL = f.AuthURL
	}

	opts := gophercloud.AuthOptions{
		IdentityEndpoint: authURL(instance.Namespace),
		Username:         cred.Username,
		Password:         cred.Password,
		TenantName:       "admin",
		DomainName:       "Default",
	}
	provider, err := openstack.NewClient(opts.IdentityEndpoint)
	if err != nil {
		return nil, err
	}
	provider.Context = ctx
	err = f.Pool.Do(ctx, func() error {
		return openstack.Authenticate(provider, opts)
	})
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func (f *CloudFactory) endpoint(instance *lcmv1.OpenStackDeployment) gophercloud.EndpointOpts {
	return gophercloud.EndpointOpts{
		Region:       instance.Spec.Region,
		Availability: gophercloud.AvailabilityInternal,
	}
}

// Compute -
func (f *CloudFactory) Compute(ctx context.Context, instance *lcmv1.OpenStackDeployment) (Compute, error) {
	provider, err := f.provider(ctx, instance)
	if err != nil {
		return nil, err
	}
	sc, err := openstack.NewComputeV2(provider, f.endpoint(instance))
	if err != nil {
		return nil, err
	}
	sc.Microversion = computeMicroversion
	return &novaClient{sc: sc, pool: f.Pool}, nil
}

// Network -
func (f *CloudFactory) Network(ctx context.Context, instance *lcmv1.OpenStackDeployment) (Network, error) {
	provider, err := f.provider(ctx, instance)
	if err != nil {
		return nil, err
	}
	sc, err := openstack.NewNetworkV2(provider, f.endpoint(instance))
	if err != nil {
		return nil, err
	}
	return &neutronClient{sc: sc, pool: f.Pool}, nil
}

type novaClient struct {
	sc   *gophercloud.ServiceClient
	pool *tasks.Pool
}

func (c *novaClient) computeServices(host string) ([]services.Service, error) {
	pages, err := services.List(c.sc, services.ListOpts{Binary: computeBinary, Host: host}).AllPages()
	if err != nil {
		return nil, err
	}
	return services.ExtractServices(pages)
}

func (c *novaClient) setService(host string, opts services.UpdateOpts) error {
	svcs, err := c.computeServices(host)
	if err != nil {
		return err
	}
	if len(svcs) == 0 {
		return fmt.Errorf("no %s service on host %s", computeBinary, host)
	}
	for _, s := range svcs {
		if _, err := services.Update(c.sc, s.ID, opts).Extract(); err != nil {
			return fmt.Errorf("updating %s on %s: %w", computeBinary, host, err)
		}
	}
	return nil
}

func (c *novaClient) DisableService(ctx context.Context, host, reason string) error {
	return c.pool.Do(ctx, func() error {
		return c.setService(host, services.UpdateOpts{Status: services.ServiceDisabled, DisabledReason: reason})
	})
}

func (c *novaClient) EnableService(ctx context.Context, host string) error {
	return c.pool.Do(ctx, func() error {
		return c.setService(host, services.UpdateOpts{Status: services.ServiceEnabled})
	})
}

func (c *novaClient) ListInstances(ctx context.Context, host string) ([]Instance, error) {
	var out []Instance
	err := c.pool.Do(ctx, func() error {
		pages, err := servers.List(c.sc, servers.ListOpts{Host: host, AllTenants: true}).AllPages()
		if err != nil {
			return err
		}
		list, err := servers.ExtractServers(pages)
		if err != nil {
			return err
		}
		out = make([]Instance, 0, len(list))
		for _, s := range list {
			out = append(out, Instance{ID: s.ID, Name: s.Name, Status: s.Status})
		}
		return nil
	})
	return out, err
}

func (c *novaClient) LiveMigrate(ctx context.Context, id string) error {
	return c.pool.Do(ctx, func() error {
		return migrate.LiveMigrate(c.sc, id, migrate.LiveMigrateOpts{BlockMigration: ptr.To(false)}).ExtractErr()
	})
}

type neutronClient struct {
	sc   *gophercloud.ServiceClient
	pool *tasks.Pool
}

func (c *neutronClient) SetAgentsAdminState(ctx context.Context, host string, up bool) error {
	return c.pool.Do(ctx, func() error {
		return c.setAgentsAdminState(host, up)
	})
}

func (c *neutronClient) setAgentsAdminState(host string, up bool) error {
	pages, err := agents.List(c.sc, agents.ListOpts{Host: host}).AllPages()
	if err != nil {
		return err
	}
	list, err := agents.ExtractAgents(pages)
	if err != nil {
		return err
	}
	for _, a := range list {
		if a.AdminStateUp == up {
			continue
		}
		if _, err := agents.Update(c.sc, a.ID, agents.UpdateOpts{AdminStateUp: ptr.To(up)}).Extract(); err != nil {
			return fmt.Errorf("updating agent %s on %s: %w", a.AgentType, host, err)
		}
	}
	return nil
}

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

package services

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

// Registry maps service names to services
type Registry struct {
	services map[string]Service
}

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{services: map[string]Service{}}
}

// NewDefaultRegistry returns a registry holding every known service
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(NewDatabase())
	r.MustRegister(NewMessaging())
	r.MustRegister(NewMemcached())
	r.MustRegister(NewIdentity())
	r.MustRegister(NewImage())
	r.MustRegister(NewNetworking())
	r.MustRegister(NewPlacement())
	r.MustRegister(NewCompute())
	r.MustRegister(NewBlockStorage())
	r.MustRegister(NewDashboard())
	return r
}

// Register adds s. Names are unique.
func (r *Registry) Register(s Service) error {
	name := s.Descriptor().Name
	if _, ok := r.services[name]; ok {
		return fmt.Errorf("service %s already registered", name)
	}
	r.services[name] = s
	return nil
}

// MustRegister - Register that panics on duplicates
func (r *Registry) MustRegister(s Service) {
	if err := r.Register(s); err != nil {
		panic(err)
	}
}

// Get -
func (r *Registry) Get(name string) (Service, bool) {
	s, ok := r.services[name]
	return s, ok
}

// Names - all registered names, sorted
func (r *Registry) Names() []string {
	names := lo.Keys(r.services)
	sort.Strings(names)
	return names
}

// Resolve validates names and adds every required service. The result is
// sorted by weight, then name.
func (r *Registry) Resolve(names []string) ([]string, error) {
	resolved := map[string]bool{}
	var visit func(name, from string) error
	visit = func(name, from string) error {
		if resolved[name] {
			return nil
		}
		s, ok := r.services[name]
		if !ok {
			if from != "" {
				return fmt.Errorf("service %s required by %s is not registered", name, from)
			}
			return fmt.Errorf("unknown service %s", name)
		}
		resolved[name] = true
		for _, dep := range s.Descriptor().Requires {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}
	return r.byWeight(lo.Keys(resolved), func(d *Descriptor) int { return d.Weight }), nil
}

// UpgradeOrder returns the services of names which have upgrade stages, in
// upgrade order
func (r *Registry) UpgradeOrder(names []string) []string {
	upgradable := lo.Filter(names, func(name string, _ int) bool {
		s, ok := r.services[name]
		return ok && len(s.UpgradeStages()) > 0
	})
	return r.byWeight(upgradable, func(d *Descriptor) int { return d.Weight })
}

// MaintenanceOrder returns the services of names taking part in node
// maintenance, in the order their hooks prepare a node
func (r *Registry) MaintenanceOrder(names []string) []string {
	aware := lo.Filter(names, func(name string, _ int) bool {
		s, ok := r.services[name]
		return ok && s.Descriptor().MaintenanceWeight > 0
	})
	return r.byWeight(aware, func(d *Descriptor) int { return d.MaintenanceWeight })
}

func (r *Registry) byWeight(names []string, weight func(*Descriptor) int) []string {
	out := lo.Uniq(names)
	sort.SliceStable(out, func(i, j int) bool {
		wi := weight(r.services[out[i]].Descriptor())
		wj := weight(r.services[out[j]].Descriptor())
		if wi != wj {
			return wi < wj
		}
		return out[i] < out[j]
	})
	return out
}

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

// Package layers merges hierarchical chart value layers into one document.
//
// Layers are applied lowest precedence first. Maps merge key by key, lists
// are concatenated and scalars are replaced by the more specific layer. An
// explicit null in a more specific layer removes the key. Merging values of
// incompatible kinds is a configuration error.
package layers

import (
	"fmt"
	"sort"
	"strings"
)

// Values is a decoded chart values document
type Values = map[string]interface{}

// Layer names in precedence order
const (
	LayerDefaults    = "defaults"
	LayerGroup       = "group"
	LayerChartCommon = "chart-common"
	LayerService     = "service"
)

// ConflictError reports a kind mismatch between two layers
type ConflictError struct {
	Service string
	Layer   string
	Path    []string
	Have    string
	Want    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("service %s: layer %s: cannot merge %s into %s at %s",
		e.Service, e.Layer, e.Want, e.Have, strings.Join(e.Path, "."))
}

// Named is a layer together with its name, used for error reporting
type Named struct {
	Name   string
	Values Values
}

// MergeLayers merges the four standard layers for a service chart
func MergeLayers(service string, defaults, group, chartCommon, serviceOverride Values) (Values, error) {
	return Merge(service,
		Named{Name: LayerDefaults, Values: defaults},
		Named{Name: LayerGroup, Values: group},
		Named{Name: LayerChartCommon, Values: chartCommon},
		Named{Name: LayerService, Values: serviceOverride},
	)
}

// Merge folds layers into a fresh document. Inputs are never modified.
func Merge(service string, layers ...Named) (Values, error) {
	out := Values{}
	for _, l := range layers {
		if err := mergeInto(out, l.Values, nil, service, l.Name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func mergeInto(dst, src Values, path []string, service, layer string) error {
	// deterministic traversal keeps error reporting stable
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sv := src[k]
		p := append(append([]string{}, path...), k)

		if sv == nil {
			delete(dst, k)
			continue
		}

		dv, exists := dst[k]
		if !exists || dv == nil {
			dst[k] = Copy(sv)
			continue
		}

		switch s := sv.(type) {
		case map[string]interface{}:
			d, ok := dv.(map[string]interface{})
			if !ok {
				return &ConflictError{Service: service, Layer: layer, Path: p, Have: kindOf(dv), Want: "map"}
			}
			if err := mergeInto(d, s, p, service, layer); err != nil {
				return err
			}
		case []interface{}:
			d, ok := dv.([]interface{})
			if !ok {
				return &ConflictError{Service: service, Layer: layer, Path: p, Have: kindOf(dv), Want: "list"}
			}
			merged := make([]interface{}, 0, len(d)+len(s))
			merged = append(merged, d...)
			for _, item := range s {
				merged = append(merged, Copy(item))
			}
			dst[k] = merged
		default:
			if kind := kindOf(dv); kind != "scalar" {
				return &ConflictError{Service: service, Layer: layer, Path: p, Have: kind, Want: "scalar"}
			}
			dst[k] = s
		}
	}
	return nil
}

func kindOf(v interface{}) string {
	switch v.(type) {
	case map[string]interface{}:
		return "map"
	case []interface{}:
		return "list"
	}
	return "scalar"
}

// Copy returns a deep copy of a decoded values tree
func Copy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = Copy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = Copy(item)
		}
		return out
	}
	return v
}

// Lookup walks path through nested maps
func Lookup(values Values, path ...string) (interface{}, bool) {
	var cur interface{} = values
	for _, p := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set writes value at path, creating intermediate maps
func Set(values Values, value interface{}, path ...string) {
	cur := values
	for _, p := range path[:len(path)-1] {
		next, ok := cur[p].(map[string]interface{})
		if !ok {
			next = map[string]interface{}{}
			cur[p] = next
		}
		cur = next
	}
	cur[path[len(path)-1]] = value
}

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

// Package workflow persists the progress of staged upgrades so an
// interrupted upgrade resumes at the first unfinished stage.
package workflow

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"
	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/utils/clock"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/controller/controllerutil"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

const stateKey = "state"

// Record is the progress of one service towards a target release
type Record struct {
	Service   string                 `yaml:"service"`
	Target    lcmv1.OpenStackVersion `yaml:"target"`
	Completed []string               `yaml:"completed"`
	Failed    string                 `yaml:"failed,omitempty"`
	Error     string                 `yaml:"error,omitempty"`
	Updated   string                 `yaml:"updated,omitempty"`
}

// Done reports whether stage already completed
func (r *Record) Done(stage string) bool {
	for _, s := range r.Completed {
		if s == stage {
			return true
		}
	}
	return false
}

// MarkDone -
func (r *Record) MarkDone(stage string) {
	if !r.Done(stage) {
		r.Completed = append(r.Completed, stage)
	}
	r.Failed = ""
	r.Error = ""
}

// MarkFailed keeps the full error text of a failed stage
func (r *Record) MarkFailed(stage string, err error) {
	r.Failed = stage
	r.Error = fmt.Sprintf("%+v", err)
}

// ConfigMapName -
func ConfigMapName(osdpl, service string) string {
	return fmt.Sprintf("%s-workflow-%s", osdpl, service)
}

// Store keeps records in config maps owned by the deployment
type Store struct {
	Client client.Client
	Clock  clock.PassiveClock
}

// NewStore -
func NewStore(c client.Client) *Store {
	return &Store{Client: c, Clock: clock.RealClock{}}
}

// Load returns the record of service. A missing record, or one for another
// target, starts empty.
func (s *Store) Load(
	ctx context.Context,
	osdpl *lcmv1.OpenStackDeployment,
	service string,
	target lcmv1.OpenStackVersion,
) (*Record, error) {
	fresh := &Record{Service: service, Target: target, Completed: []string{}}

	cm := &corev1.ConfigMap{}
	err := s.Client.Get(ctx, types.NamespacedName{Namespace: osdpl.Namespace, Name: ConfigMapName(osdpl.Name, service)}, cm)
	if k8s_errors.IsNotFound(err) {
		return fresh, nil
	}
	if err != nil {
		return nil, err
	}

	rec := &Record{}
	if err := yaml.Unmarshal([]byte(cm.Data[stateKey]), rec); err != nil {
		return nil, fmt.Errorf("decoding workflow %s: %w", cm.Name, err)
	}
	if rec.Target != target || rec.Service != service {
		return fresh, nil
	}
	if rec.Completed == nil {
		rec.Completed = []string{}
	}
	return rec, nil
}

// Save writes rec
func (s *Store) Save(ctx context.Context, osdpl *lcmv1.OpenStackDeployment, rec *Record) error {
	rec.Updated = s.Clock.Now().UTC().Format(metav1.RFC3339Micro)
	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(osdpl.Name, rec.Service),
			Namespace: osdpl.Namespace,
		},
	}
	_, err = controllerutil.CreateOrPatch(ctx, s.Client, cm, func() error {
		if cm.Labels == nil {
			cm.Labels = map[string]string{}
		}
		cm.Labels[lcmv1.ServiceLabel] = rec.Service
		cm.Data = map[string]string{stateKey: string(data)}
		return controllerutil.SetControllerReference(osdpl, cm, s.Client.Scheme())
	})
	return err
}

// Delete drops the record of service
func (s *Store) Delete(ctx context.Context, osdpl *lcmv1.OpenStackDeployment, service string) error {
	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      ConfigMapName(osdpl.Name, service),
			Namespace: osdpl.Namespace,
		},
	}
	return client.IgnoreNotFound(s.Client.Delete(ctx, cm))
}

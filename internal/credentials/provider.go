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

// Package credentials keeps generated service credentials in secrets.
package credentials

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/rand"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
)

const (
	// UsernameKey in the credential secret
	UsernameKey = "username"
	// PasswordKey in the credential secret
	PasswordKey = "password"

	passwordLength = 32
)

// Credential -
type Credential struct {
	Username string
	Password string
}

// Set - credentials by scope
type Set map[string]Credential

// SecretName - secret holding the credential of scope
func SecretName(scope string) string {
	return fmt.Sprintf("generated-%s-credentials", scope)
}

// Provider creates credentials on first use and never overwrites them,
// except on explicit rotation
type Provider struct {
	Client client.Client
	// Generate returns a new password, rand.String when nil
	Generate func(n int) string
}

// NewProvider -
func NewProvider(c client.Client) *Provider {
	return &Provider{Client: c}
}

func (p *Provider) generate() string {
	if p.Generate != nil {
		return p.Generate(passwordLength)
	}
	return rand.String(passwordLength)
}

func username(scope string) string {
	return strings.ReplaceAll(scope, "-", "")
}

// GetOrCreate returns the credential of scope, creating it if absent
func (p *Provider) GetOrCreate(ctx context.Context, namespace, scope string) (Credential, error) {
	s := &corev1.Secret{}
	key := types.NamespacedName{Namespace: namespace, Name: SecretName(scope)}
	err := p.Client.Get(ctx, key, s)
	if err == nil {
		return fromSecret(s)
	}
	if !k8s_errors.IsNotFound(err) {
		return Credential{}, err
	}

	s = &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{
			Name:      key.Name,
			Namespace: namespace,
			Labels:    map[string]string{lcmv1.ServiceLabel: scope},
		},
		Type: corev1.SecretTypeOpaque,
		Data: map[string][]byte{
			UsernameKey: []byte(username(scope)),
			PasswordKey: []byte(p.generate()),
		},
	}
	err = p.Client.Create(ctx, s)
	if k8s_errors.IsAlreadyExists(err) {
		// lost a create race, the stored value wins
		if err := p.Client.Get(ctx, key, s); err != nil {
			return Credential{}, err
		}
	} else if err != nil {
		return Credential{}, err
	}
	return fromSecret(s)
}

// Get returns the credential of scope. A missing secret is reported as a
// NotFound error.
func (p *Provider) Get(ctx context.Context, namespace, scope string) (Credential, error) {
	s := &corev1.Secret{}
	if err := p.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: SecretName(scope)}, s); err != nil {
		return Credential{}, err
	}
	return fromSecret(s)
}

// Collect gathers the credentials of all scopes that exist. Scopes without
// a secret are left out.
func (p *Provider) Collect(ctx context.Context, namespace string, scopes []string) (Set, error) {
	set := Set{}
	for _, scope := range scopes {
		c, err := p.Get(ctx, namespace, scope)
		if k8s_errors.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		set[scope] = c
	}
	return set, nil
}

// Rotate replaces the password of scope
func (p *Provider) Rotate(ctx context.Context, namespace, scope string) (Credential, error) {
	if _, err := p.GetOrCreate(ctx, namespace, scope); err != nil {
		return Credential{}, err
	}
	s := &corev1.Secret{}
	if err := p.Client.Get(ctx, types.NamespacedName{Namespace: namespace, Name: SecretName(scope)}, s); err != nil {
		return Credential{}, err
	}
	patch := client.MergeFrom(s.DeepCopy())
	s.Data[PasswordKey] = []byte(p.generate())
	if err := p.Client.Patch(ctx, s, patch); err != nil {
		return Credential{}, err
	}
	return fromSecret(s)
}

func fromSecret(s *corev1.Secret) (Credential, error) {
	user, ok := s.Data[UsernameKey]
	if !ok {
		return Credential{}, fmt.Errorf("secret %s has no %s", s.Name, UsernameKey)
	}
	pass, ok := s.Data[PasswordKey]
	if !ok {
		return Credential{}, fmt.Errorf("secret %s has no %s", s.Name, PasswordKey)
	}
	return Credential{Username: string(user), Password: string(pass)}, nil
}

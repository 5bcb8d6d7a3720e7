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

package tasks

import (
	"errors"
	"fmt"
)

// Kind classifies a task failure
type Kind int

const (
	// KindUnknown - not classified, the whole handler is retried by the caller
	KindUnknown Kind = iota
	// KindTemporary - retried by the runner after a backoff
	KindTemporary
	// KindPermanent - never retried until the input changes
	KindPermanent
)

func (k Kind) String() string {
	switch k {
	case KindTemporary:
		return "temporary"
	case KindPermanent:
		return "permanent"
	}
	return "unknown"
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

func (e *kindError) Unwrap() error { return e.err }

// Permanent marks err as not retriable
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindPermanent, err: err}
}

// Permanentf - Permanent(fmt.Errorf(...))
func Permanentf(format string, args ...interface{}) error {
	return Permanent(fmt.Errorf(format, args...))
}

// Temporary marks err as retriable
func Temporary(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: KindTemporary, err: err}
}

// Temporaryf - Temporary(fmt.Errorf(...))
func Temporaryf(format string, args ...interface{}) error {
	return Temporary(fmt.Errorf(format, args...))
}

// KindOf returns the outermost classification found in the error chain
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// IsPermanent -
func IsPermanent(err error) bool {
	return err != nil && KindOf(err) == KindPermanent
}

// IsTemporary -
func IsTemporary(err error) bool {
	return err != nil && KindOf(err) == KindTemporary
}

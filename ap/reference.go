/*
Copyright 2023 - 2025 Dima Krasner

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

package ap

import (
	"encoding/json"
	"errors"
)

// MaybeReference holds either an embedded value of type T or a bare ID
// string referencing it, mirroring the object/target fields used by
// Accept, Undo, Like and Announce activities: a peer is free to embed the
// full object or to send only its ID.
type MaybeReference[T any] struct {
	Actual    *T
	Reference string
}

// NewReference wraps a bare ID.
func NewReference[T any](id string) MaybeReference[T] {
	return MaybeReference[T]{Reference: id}
}

// NewActual wraps an embedded value.
func NewActual[T any](v T) MaybeReference[T] {
	return MaybeReference[T]{Actual: &v}
}

// ID returns the referenced or embedded object's ID, whichever is set.
func (m MaybeReference[T]) ID() string {
	if m.Reference != "" {
		return m.Reference
	}

	if m.Actual == nil {
		return ""
	}

	switch v := any(m.Actual).(type) {
	case *Object:
		return v.ID
	case *Activity:
		return v.ID
	case *Actor:
		return v.ID
	default:
		return ""
	}
}

func (m MaybeReference[T]) IsZero() bool {
	return m.Actual == nil && m.Reference == ""
}

func (m MaybeReference[T]) MarshalJSON() ([]byte, error) {
	if m.Actual != nil {
		return json.Marshal(m.Actual)
	}
	return json.Marshal(m.Reference)
}

func (m *MaybeReference[T]) UnmarshalJSON(b []byte) error {
	var id string
	if err := json.Unmarshal(b, &id); err == nil {
		m.Reference = id
		m.Actual = nil
		return nil
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return errors.New("maybe-reference value is neither an object nor a string")
	}

	m.Actual = &v
	m.Reference = ""
	return nil
}

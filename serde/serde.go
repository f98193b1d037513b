// Copyright 2024-2025 The OpenJProxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serde encodes the opaque blobs of the proxy protocol: statement
// parameter lists, property maps, LOB metadata, and resource-call values.
// The encoding is msgpack, which is self-describing and readable from any
// server implementation language.
package serde

import (
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Parameter is one positional statement parameter.
type Parameter struct {
	Index int    `msgpack:"index"`
	Type  string `msgpack:"type"`
	Value any    `msgpack:"value"`
}

// Marshal encodes any value into the wire blob form.
func Marshal(v any) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "serde: marshal")
	}
	return data, nil
}

// Unmarshal decodes a wire blob into v.
func Unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return errors.Wrap(msgpack.Unmarshal(data, v), "serde: unmarshal")
}

// MarshalParams encodes a parameter list. A nil list encodes as an empty
// one.
func MarshalParams(params []Parameter) ([]byte, error) {
	if params == nil {
		params = []Parameter{}
	}
	return Marshal(params)
}

// MarshalProperties encodes a property map. Nil and empty maps both encode
// to nil, which the server reads as "no properties".
func MarshalProperties(props map[string]any) ([]byte, error) {
	if len(props) == 0 {
		return nil, nil
	}
	return Marshal(props)
}

// MarshalMetadata encodes the slot-keyed metadata map of a LOB write. Nil
// and empty maps both encode to an empty blob.
func MarshalMetadata(metadata map[int]any) ([]byte, error) {
	if len(metadata) == 0 {
		return []byte{}, nil
	}
	return Marshal(metadata)
}

// UnmarshalValue decodes a resource-call return blob into a concrete type.
func UnmarshalValue[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return v, errors.Wrap(err, "serde: unmarshal value")
	}
	return v, nil
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package codec provides [queue.Codec] implementations for common payload encodings.
package codec

import (
	"encoding/json"

	"github.com/z5labs/drain/queue"

	"google.golang.org/protobuf/proto"
)

// JSON encodes payloads with encoding/json.
type JSON[T any] struct{}

// Encode implements the [queue.Codec] interface.
func (JSON[T]) Encode(t T) ([]byte, error) {
	return json.Marshal(t)
}

// Decode implements the [queue.Codec] interface.
func (JSON[T]) Decode(b []byte) (T, error) {
	var t T
	err := json.Unmarshal(b, &t)
	return t, err
}

// ContentType returns the media type of encoded payloads.
func (JSON[T]) ContentType() string {
	return "application/json"
}

var _ queue.Codec[string] = JSON[string]{}

// Proto encodes protobuf message payloads in the binary wire format.
// T must be a generated message pointer type, e.g. *scorepb.Score.
type Proto[T proto.Message] struct{}

// Encode implements the [queue.Codec] interface.
func (Proto[T]) Encode(msg T) ([]byte, error) {
	return proto.Marshal(msg)
}

// Decode implements the [queue.Codec] interface.
func (Proto[T]) Decode(b []byte) (T, error) {
	var zero T
	msg := zero.ProtoReflect().New().Interface().(T)
	err := proto.Unmarshal(b, msg)
	if err != nil {
		return zero, err
	}
	return msg, nil
}

// ContentType returns the media type of encoded payloads.
func (Proto[T]) ContentType() string {
	return "application/x-protobuf"
}

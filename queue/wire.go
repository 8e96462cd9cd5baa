// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type wireEnvelope struct {
	ID       uuid.UUID `json:"id"`
	Attempts int       `json:"attempts"`
	Payload  []byte    `json:"payload"`
}

// MarshalEnvelope encodes env into the wire format shared by every persistent store.
// The Failed flag is not persisted.
func MarshalEnvelope[T any](c Codec[T], env Envelope[T]) ([]byte, error) {
	payload, err := c.Encode(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("queue: failed to encode payload: %w", err)
	}
	return json.Marshal(wireEnvelope{
		ID:       env.ID,
		Attempts: env.Attempts,
		Payload:  payload,
	})
}

// UnmarshalEnvelope decodes an envelope produced by [MarshalEnvelope].
func UnmarshalEnvelope[T any](c Codec[T], b []byte) (Envelope[T], error) {
	var w wireEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return Envelope[T]{}, fmt.Errorf("queue: malformed envelope: %w", err)
	}
	payload, err := c.Decode(w.Payload)
	if err != nil {
		return Envelope[T]{}, fmt.Errorf("queue: failed to decode payload: %w", err)
	}
	return Envelope[T]{
		ID:       w.ID,
		Payload:  payload,
		Attempts: w.Attempts,
	}, nil
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package codec

import (
	"testing"

	"github.com/z5labs/drain/queue"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type score struct {
	Player string `json:"player"`
	Points int    `json:"points"`
}

func TestJSON(t *testing.T) {
	t.Run("will preserve struct payloads through an envelope", func(t *testing.T) {
		c := JSON[score]{}
		env := queue.NewEnvelope(score{Player: "ada", Points: 42}).Retry()

		b, err := queue.MarshalEnvelope[score](c, env)
		require.NoError(t, err)

		got, err := queue.UnmarshalEnvelope[score](c, b)
		require.NoError(t, err)
		require.Equal(t, env.ID, got.ID)
		require.Equal(t, env.Payload, got.Payload)
		require.Equal(t, 1, got.Attempts)
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the bytes are not valid json", func(t *testing.T) {
			_, err := JSON[score]{}.Decode([]byte("{"))
			require.Error(t, err)
		})
	})
}

func TestProto(t *testing.T) {
	t.Run("will preserve protobuf payloads", func(t *testing.T) {
		var c queue.Codec[*wrapperspb.StringValue] = Proto[*wrapperspb.StringValue]{}

		b, err := c.Encode(wrapperspb.String("hello"))
		require.NoError(t, err)

		got, err := c.Decode(b)
		require.NoError(t, err)
		require.True(t, proto.Equal(wrapperspb.String("hello"), got))
	})

	t.Run("will return an error", func(t *testing.T) {
		t.Run("if the bytes are not a valid message", func(t *testing.T) {
			_, err := Proto[*wrapperspb.StringValue]{}.Decode([]byte{0xff, 0xff, 0xff})
			require.Error(t, err)
		})
	})
}

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package redis

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// hashTag returns the part of key Redis Cluster hashes to pick a slot.
func hashTag(key string) string {
	start := strings.IndexByte(key, '{')
	if start < 0 {
		return key
	}
	end := strings.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return key
	}
	return key[start+1 : start+1+end]
}

func TestKeys(t *testing.T) {
	t.Run("will hash to the same cluster slot", func(t *testing.T) {
		t.Run("for the active and live keys of a namespace", func(t *testing.T) {
			ns := "drain:scores"
			require.Equal(t, ns, hashTag(ActiveKey(ns)))
			require.Equal(t, hashTag(ActiveKey(ns)), hashTag(LiveKey(ns)))
		})
	})
}

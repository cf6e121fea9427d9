// SPDX-License-Identifier: MIT

package redisx

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Open(context.Background(), Config{Addr: mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.CheckGet(t, "k", "v")
}

func TestOpenFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), Config{Addr: addr}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOpenRequiresAddr(t *testing.T) {
	_, err := Open(context.Background(), Config{}, zerolog.Nop())
	assert.Error(t, err)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "eventcast", Config{}.Prefix())
	assert.Equal(t, "tenant-a", Config{KeyPrefix: "tenant-a"}.Prefix())
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tris077/Atomera/internal/artifacts"
	"github.com/tris077/Atomera/internal/config"
	"github.com/tris077/Atomera/internal/store"
)

func TestNewBackend_LocalByDefault(t *testing.T) {
	art, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	b := newBackend(&config.Config{}, store.NewMemoryStore(), art, testLogger())
	assert.Equal(t, "local", b.Name())
}

func TestNewBackend_RemoteWhenConfigured(t *testing.T) {
	art, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.RunPod.BaseURL = "https://api.runpod.ai/v2"
	cfg.RunPod.APIKey = "rp_key"
	cfg.RunPod.EndpointID = "ep123"

	b := newBackend(cfg, store.NewMemoryStore(), art, testLogger())
	assert.Equal(t, "runpod", b.Name())
}

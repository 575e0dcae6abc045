package main

import (
	"context"
	"testing"

	"github.com/aescanero/dagoml/internal/config"
	"github.com/aescanero/dagoml/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingScheduler struct {
	graph.Sync
	calls int
}

func (s *countingScheduler) Get(ctx context.Context, g graph.Graph, keys ...string) ([]any, error) {
	s.calls++
	return s.Sync.Get(ctx, g, keys...)
}

func TestRunDemo(t *testing.T) {
	sched := &countingScheduler{}
	cfg := config.DemoConfig{Enabled: true, Seed: 42, C: 1000, ChunkSize: 16}

	require.NoError(t, runDemo(context.Background(), cfg, sched, zap.NewNop()))
	assert.Equal(t, 3, sched.calls)
}

func TestRunDemoRejectsBadChunkSize(t *testing.T) {
	cfg := config.DemoConfig{Seed: 1, C: 1, ChunkSize: 0}
	assert.Error(t, runDemo(context.Background(), cfg, graph.Sync{}, zap.NewNop()))
}

func TestBuildStores(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"CACHE_BACKEND": "none"})
	require.NoError(t, err)
	results, runs := buildStores(cfg, nil, zap.NewNop())
	assert.Nil(t, results)
	assert.NotNil(t, runs)

	cfg, err = config.LoadFrom(map[string]string{})
	require.NoError(t, err)
	results, runs = buildStores(cfg, nil, zap.NewNop())
	assert.NotNil(t, results)
	assert.NotNil(t, runs)
}

func TestRunDemoOnManager(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"DEMO_CHUNK_SIZE": "25", "SCHEDULER_WORKERS": "2"})
	require.NoError(t, err)
	assert.NoError(t, runDemoOnManager(context.Background(), cfg, zap.NewNop()))
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "demo", "version"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aescanero/dagoml/internal/application/workers"
	eventsmemory "github.com/aescanero/dagoml/pkg/adapters/events/memory"
	metrics "github.com/aescanero/dagoml/pkg/adapters/metrics/prometheus"
	storagememory "github.com/aescanero/dagoml/pkg/adapters/storage/memory"
	"github.com/aescanero/dagoml/pkg/array"
	"github.com/aescanero/dagoml/pkg/datasets"
	"github.com/aescanero/dagoml/pkg/domain"
	"github.com/aescanero/dagoml/pkg/graph"
	"github.com/aescanero/dagoml/pkg/lazy"
	"github.com/aescanero/dagoml/pkg/models/logistic"
	"github.com/aescanero/dagoml/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

type fixture struct {
	manager *Manager
	store   *storagememory.Store
	bus     *eventsmemory.EventBus
}

func newFixture(t *testing.T, cache bool, runTimeout time.Duration) *fixture {
	t.Helper()
	logger := zap.NewNop()
	collector := metrics.NewCollector(prometheus.NewRegistry())

	pool := workers.NewPool(4, time.Second, collector, logger, time.Hour)
	require.NoError(t, pool.Start())

	store := storagememory.NewStore()
	bus := eventsmemory.NewEventBus()
	var results ports.ResultStore
	if cache {
		results = store
	}
	m := NewManager(pool, results, store, bus, collector, NewValidator(0), logger, runTimeout)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
		_ = pool.Shutdown(ctx)
	})
	return &fixture{manager: m, store: store, bus: bus}
}

func counting(calls *atomic.Int32, v any) graph.Task {
	return graph.Task{Name: "count", Func: func(context.Context, []any) (any, error) {
		calls.Add(1)
		return v, nil
	}}
}

func sum(deps ...string) graph.Task {
	return graph.Task{
		Name: "sum",
		Func: func(_ context.Context, args []any) (any, error) {
			total := 0.0
			for _, v := range args[0].([]any) {
				total += v.(float64)
			}
			return total, nil
		},
		Args: []any{graph.RefList(deps)},
	}
}

func TestManagerMatchesSync(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	ctx := context.Background()
	X, y := datasets.ThreeClass(5)

	p, err := lazy.From(logistic.New(logistic.WithC(1000)))
	require.NoError(t, err)
	fit := p.Fit(X, y, nil)
	dX, err := array.FromDense(X, 8)
	require.NoError(t, err)

	want, err := fit.Predict(dX).Compute(ctx)
	require.NoError(t, err)
	got, err := fit.Predict(dX).Compute(ctx, graph.WithScheduler(f.manager))
	require.NoError(t, err)
	assert.True(t, mat.Equal(want.(*mat.VecDense), got.(*mat.VecDense)))

	wantScore, err := fit.Score(X, y).Compute(ctx)
	require.NoError(t, err)
	gotScore, err := fit.Score(X, y).Compute(ctx, graph.WithScheduler(f.manager))
	require.NoError(t, err)
	assert.Equal(t, wantScore, gotScore)

	model, err := fit.ToConcrete(ctx, graph.WithScheduler(f.manager))
	require.NoError(t, err)
	assert.True(t, model.(*logistic.LogisticRegression).IsFitted())
}

func TestManagerCacheSkipsExecution(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	ctx := context.Background()

	var calls atomic.Int32
	g := graph.New().
		With("a", counting(&calls, 1.0)).
		With("b", sum("a", "a")).
		With("c", sum("b", "a"))

	vals, err := f.manager.Get(ctx, g, "b")
	require.NoError(t, err)
	assert.Equal(t, []any{2.0}, vals)
	assert.Equal(t, int32(1), calls.Load())

	// b is cached, so only c runs and a comes from the cache too
	vals, err = f.manager.Get(ctx, g, "c")
	require.NoError(t, err)
	assert.Equal(t, []any{3.0}, vals)
	assert.Equal(t, int32(1), calls.Load())

	runs, err := f.manager.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	latest := runs[0]
	assert.Equal(t, domain.RunStatusCompleted, latest.Status)
	assert.Equal(t, 1, latest.Executed)
	assert.Equal(t, 2, latest.CacheHits)
	assert.NotNil(t, latest.CompletedAt)
}

func TestManagerWithoutCacheRecomputes(t *testing.T) {
	f := newFixture(t, false, time.Minute)
	var calls atomic.Int32
	g := graph.Single("a", counting(&calls, 1.0))

	for i := 0; i < 2; i++ {
		_, err := f.manager.Get(context.Background(), g, "a")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
}

var errBoom = errors.New("boom")

func TestManagerReturnsTaskErrorsUnchanged(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	ctx := context.Background()

	g := graph.New().
		With("bad", graph.Task{Name: "fail", Func: func(context.Context, []any) (any, error) { return nil, errBoom }}).
		With("next", sum("bad"))
	_, err := f.manager.Get(ctx, g, "next")
	assert.Same(t, errBoom, err)

	X, y := datasets.ThreeClass(1)
	p, err := lazy.From(logistic.New())
	require.NoError(t, err)
	_, err = p.Score(X, y).Compute(ctx, graph.WithScheduler(f.manager))
	var nf *domain.NotFittedError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Score", nf.Operation)

	runs, err := f.manager.ListRuns(ctx)
	require.NoError(t, err)
	for _, r := range runs {
		assert.Equal(t, domain.RunStatusFailed, r.Status)
		assert.NotEmpty(t, r.Error)
	}
}

func TestManagerRejectsInvalidGraphs(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	_, err := f.manager.Get(context.Background(), graph.Single("b", sum("a")), "b")
	assert.ErrorIs(t, err, graph.ErrMissingKey)

	_, err = f.manager.Get(context.Background(), graph.New())
	assert.Error(t, err)
}

func blocking() graph.Task {
	return graph.Task{Name: "block", Func: func(ctx context.Context, _ []any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

func TestManagerCancelRun(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	ctx := context.Background()

	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.Get(ctx, graph.Single("slow", blocking()), "slow")
		errCh <- err
	}()

	var runID string
	require.Eventually(t, func() bool {
		runs, _ := f.manager.ListRuns(ctx)
		for _, r := range runs {
			if r.Status == domain.RunStatusRunning {
				runID = r.RunID
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, f.manager.ActiveRuns())

	require.NoError(t, f.manager.CancelRun(ctx, runID))
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled")
	}

	run, err := f.manager.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCancelled, run.Status)

	assert.ErrorIs(t, f.manager.CancelRun(ctx, runID), ErrRunNotActive)
}

func TestManagerRunTimeout(t *testing.T) {
	f := newFixture(t, true, 30*time.Millisecond)
	_, err := f.manager.Get(context.Background(), graph.Single("slow", blocking()), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManagerPublishesEvents(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan *domain.Event, 16)
	require.NoError(t, f.bus.Subscribe(ctx, domain.TopicRunEvents, func(_ context.Context, ev *domain.Event) error {
		events <- ev
		return nil
	}))

	var calls atomic.Int32
	_, err := f.manager.Get(ctx, graph.Single("a", counting(&calls, 1.0)), "a")
	require.NoError(t, err)

	seen := map[domain.EventType]bool{}
	timeout := time.After(time.Second)
	for !seen[domain.EventTypeRunCompleted] || !seen[domain.EventTypeRunSubmitted] {
		select {
		case ev := <-events:
			seen[ev.Type] = true
		case <-timeout:
			t.Fatalf("missing run events, saw %v", seen)
		}
	}
}

func TestManagerShutdown(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	require.NoError(t, f.manager.Shutdown(context.Background()))

	_, err := f.manager.Get(context.Background(), graph.Single("a", sum()), "a")
	assert.ErrorIs(t, err, ErrShuttingDown)
}

func TestManagerGetRunNotFound(t *testing.T) {
	f := newFixture(t, true, time.Minute)
	_, err := f.manager.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestValidatorLimit(t *testing.T) {
	v := NewValidator(1)
	g := graph.New().With("a", sum()).With("b", sum("a"))
	assert.Error(t, v.Validate(g, []string{"b"}))
	assert.NoError(t, v.Validate(g, []string{"a"}))
	assert.Error(t, v.Validate(g, nil))
	assert.Error(t, v.Validate(g, []string{""}))
}

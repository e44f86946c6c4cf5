package batch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/assetlift/internal/batch"
)

var errBoom = errors.New("boom")

func TestRunKeepsGoingAfterFailures(t *testing.T) {
	t.Parallel()

	var exported sync.Map
	tasks := make([]batch.Task[int], 10)
	for i := range tasks {
		tasks[i] = batch.Task[int]{
			Name: fmt.Sprintf("task-%d", i),
			Load: func(context.Context) (int, error) {
				if i%3 == 0 {
					return 0, errBoom
				}
				return i * 10, nil
			},
			Export: func(_ context.Context, v int) error {
				if i == 4 {
					return errBoom
				}
				exported.Store(i, v)
				return nil
			},
		}
	}

	results := batch.Run(context.Background(), batch.NewRunner(batch.WithWorkers(3)), tasks)
	require.Len(t, results, 10)
	for i, res := range results {
		assert.Equal(t, fmt.Sprintf("task-%d", i), res.Name)
		switch {
		case i%3 == 0:
			assert.Equal(t, batch.StatusError, res.Status)
			assert.ErrorIs(t, res.Err, errBoom)
			assert.Contains(t, res.Message, "load")
		case i == 4:
			assert.Equal(t, batch.StatusError, res.Status)
			assert.Contains(t, res.Message, "export")
		default:
			assert.Equal(t, batch.StatusExported, res.Status, res.Message)
			v, ok := exported.Load(i)
			require.True(t, ok)
			assert.Equal(t, i*10, v)
		}
	}
}

func TestRunLoadOnly(t *testing.T) {
	t.Parallel()

	tasks := []batch.Task[string]{{
		Name: "only",
		Load: func(context.Context) (string, error) { return "x", nil },
	}}
	results := batch.Run(context.Background(), batch.NewRunner(), tasks)
	require.Len(t, results, 1)
	assert.Equal(t, batch.StatusLoaded, results[0].Status)
	assert.Equal(t, "loaded", results[0].Status.String())
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	t.Parallel()

	var active, peak atomic.Int32
	tasks := make([]batch.Task[struct{}], 20)
	for i := range tasks {
		tasks[i] = batch.Task[struct{}]{
			Name: fmt.Sprint(i),
			Load: func(context.Context) (struct{}, error) {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				active.Add(-1)
				return struct{}{}, nil
			},
		}
	}
	results := batch.Run(context.Background(), batch.NewRunner(batch.WithWorkers(4)), tasks)
	require.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int32(4))
	assert.Positive(t, peak.Load())
}

func TestRunRespectsMemoryBudget(t *testing.T) {
	t.Parallel()

	const budget = 100
	var held, peak atomic.Int64
	tasks := make([]batch.Task[int64], 12)
	for i := range tasks {
		weight := int64(30 + i%3*10)
		if i == 5 {
			weight = 500
		}
		tasks[i] = batch.Task[int64]{
			Name:   fmt.Sprint(i),
			Weight: weight,
			Load: func(context.Context) (int64, error) {
				n := held.Add(min(weight, budget))
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				return weight, nil
			},
			Export: func(_ context.Context, w int64) error {
				held.Add(-min(w, budget))
				return nil
			},
		}
	}
	runner := batch.NewRunner(batch.WithWorkers(8), batch.WithMemoryBudget(budget))
	results := batch.Run(context.Background(), runner, tasks)
	for _, res := range results {
		assert.Equal(t, batch.StatusExported, res.Status, res.Message)
	}
	assert.LessOrEqual(t, peak.Load(), int64(budget))
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	tasks := make([]batch.Task[int], 5)
	for i := range tasks {
		tasks[i] = batch.Task[int]{
			Name: fmt.Sprint(i),
			Load: func(context.Context) (int, error) {
				ran.Add(1)
				return 0, nil
			},
		}
	}
	results := batch.Run(ctx, batch.NewRunner(), tasks)
	for _, res := range results {
		assert.Equal(t, batch.StatusError, res.Status)
		assert.ErrorIs(t, res.Err, context.Canceled)
	}
	assert.Zero(t, ran.Load())
}

func TestNewRunnerDefaults(t *testing.T) {
	t.Parallel()

	assert.Positive(t, batch.NewRunner().Workers())
	assert.Equal(t, 2, batch.NewRunner(batch.WithWorkers(2)).Workers())
	assert.Positive(t, batch.NewRunner(batch.WithWorkers(-1)).Workers())
}

//go:build !integration

package main

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/esg-research/internal/model"
	"github.com/sells-group/esg-research/internal/pipeline"
)

type fakeAnalyzer struct {
	mu       sync.Mutex
	calls    []string
	forced   []bool
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (a *fakeAnalyzer) Analyze(_ context.Context, name string, force bool) (*pipeline.Outcome, error) {
	n := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		p := a.peak.Load()
		if n <= p || a.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	a.mu.Lock()
	a.calls = append(a.calls, name)
	a.forced = append(a.forced, force)
	a.mu.Unlock()

	if name == "Nope" {
		return nil, eris.Wrapf(pipeline.ErrNoSources, "pipeline: analyze %s", name)
	}
	return &pipeline.Outcome{Company: name, Status: model.CacheMiss, Analysis: testAnalysis(1, name, 70)}, nil
}

func TestRunAnalyses_OrderAndDedup(t *testing.T) {
	a := &fakeAnalyzer{}

	results := runAnalyses(context.Background(), a, []string{"Tesla", " ", "Nope", "tesla", "Apple"}, true, 1)
	require.Len(t, results, 3)
	assert.Equal(t, "Tesla", results[0].Company)
	assert.NotNil(t, results[0].Outcome)
	assert.Equal(t, "Nope", results[1].Company)
	assert.True(t, pipeline.IsNoSources(results[1].Err))
	assert.Equal(t, "Apple", results[2].Company)

	assert.Equal(t, []string{"Tesla", "Nope", "Apple"}, a.calls)
	assert.Equal(t, []bool{true, true, true}, a.forced)
	assert.Equal(t, int32(1), a.peak.Load())
}

func TestRunAnalyses_Concurrency(t *testing.T) {
	a := &fakeAnalyzer{}

	results := runAnalyses(context.Background(), a, []string{"A", "B", "C", "D"}, false, 2)
	require.Len(t, results, 4)
	for i, name := range []string{"A", "B", "C", "D"} {
		assert.Equal(t, name, results[i].Company)
		assert.NoError(t, results[i].Err)
	}
	assert.LessOrEqual(t, a.peak.Load(), int32(2))
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, a.calls)
}

func TestRunAnalyses_ZeroConcurrencyRunsSerially(t *testing.T) {
	a := &fakeAnalyzer{}
	results := runAnalyses(context.Background(), a, []string{"A", "B"}, false, 0)
	require.Len(t, results, 2)
	assert.Equal(t, int32(1), a.peak.Load())
}

package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inakat/lifecycle-service/internal/scheduler"
)

type fakeDrainer struct {
	calls   atomic.Int32
	limit   atomic.Int32
	block   chan struct{}
	entered chan struct{}
	err     error
}

func (f *fakeDrainer) DrainRetries(_ context.Context, limit int) (int, error) {
	f.calls.Add(1)
	f.limit.Store(int32(limit))
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return 1, f.err
}

func TestSweep_PassesBatch(t *testing.T) {
	d := &fakeDrainer{}
	s := scheduler.New(d, "@every 1h", 25)
	s.Sweep(context.Background())
	assert.EqualValues(t, 1, d.calls.Load())
	assert.EqualValues(t, 25, d.limit.Load())
}

func TestSweep_DefaultBatch(t *testing.T) {
	d := &fakeDrainer{}
	scheduler.New(d, "@every 1h", 0).Sweep(context.Background())
	assert.EqualValues(t, 100, d.limit.Load())
}

func TestSweep_ErrorIsLoggedNotPanicked(t *testing.T) {
	d := &fakeDrainer{err: errors.New("redis down")}
	assert.NotPanics(t, func() {
		scheduler.New(d, "@every 1h", 10).Sweep(context.Background())
	})
}

func TestSweep_SkipsOverlappingRuns(t *testing.T) {
	d := &fakeDrainer{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := scheduler.New(d, "@every 1h", 10)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Sweep(context.Background())
	}()
	<-d.entered

	s.Sweep(context.Background()) // returns immediately
	close(d.block)
	wg.Wait()

	assert.EqualValues(t, 1, d.calls.Load())
}

func TestStart_InvalidSpec(t *testing.T) {
	s := scheduler.New(&fakeDrainer{}, "not a cron spec", 10)
	assert.Error(t, s.Start(context.Background()))
}

func TestStart_RunsOnSchedule(t *testing.T) {
	d := &fakeDrainer{}
	s := scheduler.New(d, "@every 1s", 10)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.Eventually(t, func() bool { return d.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

package teleop

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tactilekit/manipulator/pkg/robot"
)

type fakeStepper struct {
	steps    atomic.Int64
	err      error
	critical bool
}

func (f *fakeStepper) TeleopStep(ctx context.Context, record bool) (robot.Observation, []float64, error) {
	f.steps.Add(1)
	if f.err != nil {
		return nil, nil, f.err
	}
	if !record {
		return nil, nil, nil
	}
	return robot.Observation{}, []float64{1, 2, 3}, nil
}

func (f *fakeStepper) HasTactileCriticalErrors() bool { return f.critical }

func TestControllerStepsAtRate(t *testing.T) {
	s := &fakeStepper{}
	c := NewController(s, Config{Hz: 200, Record: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	var state State
	select {
	case state = <-c.States():
	case <-time.After(time.Second):
		t.Fatal("no state within a second")
	}
	cancel()

	require.NoError(t, state.Error)
	assert.Equal(t, []float64{1, 2, 3}, state.Action)
	assert.False(t, state.TactileAlert)
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, s.steps.Load(), int64(1))
}

func TestControllerReportsStepErrors(t *testing.T) {
	s := &fakeStepper{err: errors.New("bus gone")}
	c := NewController(s, Config{Hz: 200})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	select {
	case state := <-c.States():
		assert.ErrorContains(t, state.Error, "bus gone")
	case <-time.After(time.Second):
		t.Fatal("no state within a second")
	}
}

func TestControllerFlagsTactileAlert(t *testing.T) {
	s := &fakeStepper{critical: true}
	c := NewController(s, Config{Hz: 200, Record: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	select {
	case state := <-c.States():
		assert.True(t, state.TactileAlert)
	case <-time.After(time.Second):
		t.Fatal("no state within a second")
	}
}

func TestControllerRejectsDoubleStart(t *testing.T) {
	c := NewController(&fakeStepper{}, Config{Hz: 200})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Start(ctx)

	// The startup log message means the running flag is set.
	select {
	case <-c.Logs():
	case <-time.After(time.Second):
		t.Fatal("controller did not start")
	}
	assert.Error(t, c.Start(ctx))
}

func TestDefaultHz(t *testing.T) {
	c := NewController(&fakeStepper{}, Config{})
	assert.Equal(t, 60, c.Hz())
}

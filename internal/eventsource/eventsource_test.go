package eventsource_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/orderwatch/internal/chainevents"
	"github.com/alanyoungcy/orderwatch/internal/eventsource"
)

type fakeFilterer struct {
	head       uint64
	logsByCall [][]types.Log
	callCount  int
	err        error
}

func (f *fakeFilterer) BlockNumber(ctx context.Context) (uint64, error) {
	return f.head, nil
}

func (f *fakeFilterer) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	if f.err != nil {
		return nil, f.err
	}
	idx := f.callCount
	f.callCount++
	if idx >= len(f.logsByCall) {
		return nil, nil
	}
	return f.logsByCall[idx], nil
}

func TestRunDeliversDecodedLogs(t *testing.T) {
	logHash := common.HexToHash("0xfeedface")
	filterer := &fakeFilterer{
		head: 100,
		logsByCall: [][]types.Log{
			{{Topics: []common.Hash{logHash}}},
		},
	}
	src := eventsource.New(filterer, nil, eventsource.WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := make(chan chainevents.Delivery, 8)
	go func() { _ = src.Run(ctx, out) }()

	select {
	case d := <-out:
		require.NoError(t, d.Err)
		unknown, ok := d.Event.(chainevents.Unknown)
		require.True(t, ok)
		assert.Equal(t, logHash, unknown.Topic0)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for a delivery")
	}
}

func TestRunDeliversFilterErrorWithoutStopping(t *testing.T) {
	filterer := &fakeFilterer{head: 100, err: assertErr("filter logs failed")}
	src := eventsource.New(filterer, nil, eventsource.WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	out := make(chan chainevents.Delivery, 8)
	go func() { _ = src.Run(ctx, out) }()

	select {
	case d := <-out:
		assert.Error(t, d.Err)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for an error delivery")
	}
}

func TestRunReturnsContextErrorOnCancellation(t *testing.T) {
	filterer := &fakeFilterer{head: 1}
	src := eventsource.New(filterer, nil, eventsource.WithPollInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan chainevents.Delivery, 8)

	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

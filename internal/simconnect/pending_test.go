package simconnect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingResolvesOnce(t *testing.T) {
	p := newPending[int]()
	assert.NotEmpty(t, p.ID())

	v, err := p.Result()
	assert.Zero(t, v)
	assert.NoError(t, err, "unresolved result is empty")

	assert.True(t, p.resolve(42, nil))
	assert.False(t, p.resolve(7, errors.New("late")))

	v, err = p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = p.Result()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPendingWaitGivesUp(t *testing.T) {
	p := newPending[string]()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-p.Done():
		t.Fatal("waiter timeout resolved the handle")
	default:
	}
}

func TestRequestSlot(t *testing.T) {
	var slot requestSlot[int]

	p, created := slot.acquire(context.Background())
	require.True(t, created)
	assert.True(t, slot.outstanding())

	again, created := slot.acquire(context.Background())
	assert.False(t, created)
	assert.Same(t, p, again)

	assert.True(t, slot.resolve(5, nil))
	assert.False(t, slot.outstanding())
	assert.False(t, slot.resolve(6, nil), "nothing outstanding")

	assert.False(t, slot.fail(p, errors.New("stale")), "resolved handle cannot fail")
	v, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, v)
}

func TestRequestSlotCancellation(t *testing.T) {
	var slot requestSlot[int]
	ctx, cancel := context.WithCancel(context.Background())

	p, _ := slot.acquire(ctx)
	cancel()

	_, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, slot.outstanding())

	next, created := slot.acquire(context.Background())
	assert.True(t, created)
	assert.NotSame(t, p, next)
}

func TestRequestSlotFailOnlyCurrentOccupant(t *testing.T) {
	var slot requestSlot[int]

	old, _ := slot.acquire(context.Background())
	slot.resolve(1, nil)
	current, _ := slot.acquire(context.Background())

	assert.False(t, slot.fail(old, errors.New("stale cancel")))
	assert.True(t, slot.outstanding(), "stale failure must not clear the new request")

	assert.True(t, slot.fail(current, errors.New("boom")))
	_, err := current.Wait(context.Background())
	assert.EqualError(t, err, "boom")
}

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadline_ExtendOnce(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := newDeadline(BaseDeadline, func() time.Time { return now })

	assert.Equal(t, BaseDeadline, d.Remaining())
	assert.False(t, d.Extended())

	require.True(t, d.Extend())
	assert.Equal(t, BaseDeadline+Extension, d.Remaining())
	assert.True(t, d.Extended())

	// Only one extension per run.
	assert.False(t, d.Extend())
	assert.Equal(t, BaseDeadline+Extension, d.Remaining())
}

func TestDeadline_CapHolds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := newDeadline(35*time.Minute, func() time.Time { return now })

	require.True(t, d.Extend())
	assert.Equal(t, MaxDeadline, d.Remaining())
}

func TestDeadline_BaseAboveCapIsClamped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := newDeadline(2*time.Hour, func() time.Time { return now })

	assert.Equal(t, MaxDeadline, d.Remaining())
}

func TestDeadline_RemainingNeverNegative(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := newDeadline(time.Minute, func() time.Time { return now })

	now = now.Add(5 * time.Minute)
	assert.Equal(t, time.Duration(0), d.Remaining())
	assert.True(t, d.InWrapUp())
}

func TestDeadline_ContextCancelsOnExpiry(t *testing.T) {
	d := NewDeadline(30 * time.Millisecond)
	ctx, cancel := d.Context(context.Background())
	defer cancel()

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after budget expiry")
	}
}

func TestDeadline_ContextInheritsParentCancel(t *testing.T) {
	d := NewDeadline(time.Hour)
	parent, parentCancel := context.WithCancel(context.Background())
	ctx, cancel := d.Context(parent)
	defer cancel()

	parentCancel()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context did not inherit parent cancellation")
	}
}

func TestDeadline_InWrapUp(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	d := newDeadline(10*time.Minute, func() time.Time { return now })

	assert.False(t, d.InWrapUp())
	now = now.Add(10*time.Minute - 30*time.Second)
	assert.True(t, d.InWrapUp())
}

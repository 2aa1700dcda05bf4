package main

import (
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-assist/internal/pipeline"
)

func TestLineOperator_StrayEnterDoesNotWedgeReader(t *testing.T) {
	before := runtime.NumGoroutine()

	// Several Enters with no challenge waiting. The reader goroutine must
	// drain them and exit at EOF instead of blocking on a send.
	op, ok := lineOperator(strings.NewReader("\n\n\n"), time.Minute).(*pipeline.ChannelOperator)
	require.True(t, ok)

	assert.Eventually(t, func() bool { return runtime.NumGoroutine() <= before },
		time.Second, 5*time.Millisecond, "reader goroutine still blocked after input drained")

	// One signal stays buffered for the next challenge.
	select {
	case <-op.Done:
	default:
		t.Fatal("expected a buffered resolve signal")
	}
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/apply-assist/internal/classify"
)

// DefaultHumanWait bounds how long a run blocks on an operator.
const DefaultHumanWait = 10 * time.Minute

// maxRecoveryAttempts bounds the recapture/reclassify cycle after operator
// intervention.
const maxRecoveryAttempts = 2

// Operator is asked to clear login walls and captcha challenges in the live
// browser. ResolveChallenge blocks until the operator reports the page is
// usable or the context ends.
type Operator interface {
	ResolveChallenge(ctx context.Context, challenge classify.PageType, url string) error
}

// RecoveryError reports that a human-recovery page could not be cleared.
type RecoveryError struct {
	Challenge classify.PageType
	URL       string
	Cause     error
}

func (e *RecoveryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("could not recover from %s at %s: %v", e.Challenge, e.URL, e.Cause)
	}
	return fmt.Sprintf("could not recover from %s at %s", e.Challenge, e.URL)
}

func (e *RecoveryError) Unwrap() error {
	return e.Cause
}

// ChannelOperator resolves challenges when a signal arrives on its channel,
// typically wired to terminal input or a UI callback.
type ChannelOperator struct {
	Done    <-chan struct{}
	MaxWait time.Duration
	Prompt  func(challenge classify.PageType, url string)
}

// ResolveChallenge waits for the operator signal, bounded by MaxWait.
func (o *ChannelOperator) ResolveChallenge(ctx context.Context, challenge classify.PageType, url string) error {
	if o.Prompt != nil {
		o.Prompt(challenge, url)
	}

	maxWait := o.MaxWait
	if maxWait <= 0 {
		maxWait = DefaultHumanWait
	}
	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-o.Done:
		return nil
	case <-timer.C:
		return fmt.Errorf("operator did not respond within %s", maxWait)
	case <-ctx.Done():
		return ctx.Err()
	}
}

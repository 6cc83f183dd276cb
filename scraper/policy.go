package scraper

import (
	"errors"
	"time"

	"ctrip-reviews/config"
	"ctrip-reviews/models"
)

// outcomeKind classifies the result of one page attempt.
type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeEmptyPage
	outcomeHTTPError
	outcomeTimeout
	outcomeConnection
	outcomeGenericError
	outcomeMalformed
	outcomeDecodeError
)

// actionKind tells the loop what to do after an attempt.
type actionKind int

const (
	// actionAdvance appends the page, resets the failure counter, and moves
	// to the next page after the randomized inter-page delay.
	actionAdvance actionKind = iota
	// actionRetry sleeps and re-fetches the same page.
	actionRetry
	// actionStop terminates the run, keeping everything accumulated so far.
	actionStop
)

// action is the policy verdict for one page attempt.
type action struct {
	kind   actionKind
	sleep  time.Duration
	reason models.StopReason
}

// classifyOutcome places a page-attempt error into the policy taxonomy.
func classifyOutcome(result *PageResult, err error) outcomeKind {
	if err == nil {
		if len(result.Items) == 0 {
			return outcomeEmptyPage
		}
		return outcomeSuccess
	}

	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return outcomeTimeout
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return outcomeConnection
	}
	var status ErrHTTPStatus
	if errors.As(err, &status) {
		return outcomeHTTPError
	}
	var decode ErrDecode
	if errors.As(err, &decode) {
		return outcomeDecodeError
	}
	if errors.Is(err, ErrMalformedResponse) {
		return outcomeMalformed
	}
	return outcomeGenericError
}

// decide is the pure transition function of the retrieval state machine.
// It maps an attempt outcome and the current consecutive-failure count to
// the next action and the updated count. HTTP and generic failures count
// toward the ceiling; timeouts and connection errors retry unconditionally
// because they are presumed self-healing and the per-attempt sleep already
// throttles them. Malformed envelopes and decode failures are contract
// violations: retrying them would loop without progress.
func decide(kind outcomeKind, failures int, cfg *config.Config) (action, int) {
	switch kind {
	case outcomeSuccess:
		return action{kind: actionAdvance}, 0
	case outcomeEmptyPage:
		return action{kind: actionStop, reason: models.StopCompleted}, failures
	case outcomeHTTPError:
		failures++
		if failures >= cfg.MaxConsecutiveFailures {
			return action{kind: actionStop, reason: models.StopFailures}, failures
		}
		return action{kind: actionRetry, sleep: cfg.HTTPRetryDelay}, failures
	case outcomeTimeout:
		return action{kind: actionRetry, sleep: cfg.TimeoutRetryDelay}, failures
	case outcomeConnection:
		return action{kind: actionRetry, sleep: cfg.ConnRetryDelay}, failures
	case outcomeGenericError:
		failures++
		if failures >= cfg.MaxConsecutiveFailures {
			return action{kind: actionStop, reason: models.StopFailures}, failures
		}
		return action{kind: actionRetry, sleep: cfg.GenericRetryDelay}, failures
	case outcomeMalformed:
		return action{kind: actionStop, reason: models.StopMalformed}, failures
	case outcomeDecodeError:
		return action{kind: actionStop, reason: models.StopDecode}, failures
	}
	return action{kind: actionStop, reason: models.StopCompleted}, failures
}

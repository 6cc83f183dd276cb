package scraper

import (
	"errors"
	"testing"
	"time"

	"ctrip-reviews/config"
	"ctrip-reviews/models"
)

func policyConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.MaxConsecutiveFailures = 3
	cfg.HTTPRetryDelay = 3 * time.Second
	cfg.TimeoutRetryDelay = 5 * time.Second
	cfg.ConnRetryDelay = 10 * time.Second
	cfg.GenericRetryDelay = 5 * time.Second
	return cfg
}

func TestDecideTransitions(t *testing.T) {
	cfg := policyConfig()

	tests := []struct {
		name         string
		kind         outcomeKind
		failures     int
		wantKind     actionKind
		wantSleep    time.Duration
		wantReason   models.StopReason
		wantFailures int
	}{
		{
			name:         "success resets counter",
			kind:         outcomeSuccess,
			failures:     2,
			wantKind:     actionAdvance,
			wantFailures: 0,
		},
		{
			name:         "empty page stops",
			kind:         outcomeEmptyPage,
			failures:     1,
			wantKind:     actionStop,
			wantReason:   models.StopCompleted,
			wantFailures: 1,
		},
		{
			name:         "http error retries same page",
			kind:         outcomeHTTPError,
			failures:     0,
			wantKind:     actionRetry,
			wantSleep:    cfg.HTTPRetryDelay,
			wantFailures: 1,
		},
		{
			name:         "http error at ceiling stops",
			kind:         outcomeHTTPError,
			failures:     2,
			wantKind:     actionStop,
			wantReason:   models.StopFailures,
			wantFailures: 3,
		},
		{
			name:         "timeout never counts",
			kind:         outcomeTimeout,
			failures:     2,
			wantKind:     actionRetry,
			wantSleep:    cfg.TimeoutRetryDelay,
			wantFailures: 2,
		},
		{
			name:         "connection error never counts",
			kind:         outcomeConnection,
			failures:     2,
			wantKind:     actionRetry,
			wantSleep:    cfg.ConnRetryDelay,
			wantFailures: 2,
		},
		{
			name:         "generic error counts",
			kind:         outcomeGenericError,
			failures:     0,
			wantKind:     actionRetry,
			wantSleep:    cfg.GenericRetryDelay,
			wantFailures: 1,
		},
		{
			name:         "generic error at ceiling stops",
			kind:         outcomeGenericError,
			failures:     2,
			wantKind:     actionStop,
			wantReason:   models.StopFailures,
			wantFailures: 3,
		},
		{
			name:         "malformed envelope stops immediately",
			kind:         outcomeMalformed,
			failures:     0,
			wantKind:     actionStop,
			wantReason:   models.StopMalformed,
			wantFailures: 0,
		},
		{
			name:         "decode failure stops immediately",
			kind:         outcomeDecodeError,
			failures:     0,
			wantKind:     actionStop,
			wantReason:   models.StopDecode,
			wantFailures: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act, failures := decide(tt.kind, tt.failures, cfg)
			if act.kind != tt.wantKind {
				t.Fatalf("action kind = %d, want %d", act.kind, tt.wantKind)
			}
			if act.kind == actionRetry && act.sleep != tt.wantSleep {
				t.Fatalf("sleep = %v, want %v", act.sleep, tt.wantSleep)
			}
			if act.kind == actionStop && act.reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", act.reason, tt.wantReason)
			}
			if failures != tt.wantFailures {
				t.Fatalf("failures = %d, want %d", failures, tt.wantFailures)
			}
		})
	}
}

func TestClassifyOutcome(t *testing.T) {
	tests := []struct {
		name     string
		result   *PageResult
		err      error
		expected outcomeKind
	}{
		{name: "non-empty page", result: &PageResult{Items: []any{map[string]any{}}}, expected: outcomeSuccess},
		{name: "empty page", result: &PageResult{}, expected: outcomeEmptyPage},
		{name: "http status", err: ErrHTTPStatus{Code: 502}, expected: outcomeHTTPError},
		{name: "timeout", err: ErrTimeout{Err: errors.New("deadline")}, expected: outcomeTimeout},
		{name: "connection", err: ErrConnection{Err: errors.New("refused")}, expected: outcomeConnection},
		{name: "malformed", err: ErrMalformedResponse, expected: outcomeMalformed},
		{name: "decode", err: ErrDecode{Err: errors.New("bad json")}, expected: outcomeDecodeError},
		{name: "generic", err: errors.New("boom"), expected: outcomeGenericError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyOutcome(tt.result, tt.err); got != tt.expected {
				t.Fatalf("classifyOutcome = %d, want %d", got, tt.expected)
			}
		})
	}
}

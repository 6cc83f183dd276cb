package resolver

import (
	"errors"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const sightURL = "https://you.ctrip.com/sight/shanghai2/25506.html"

const sightHTML = `<!DOCTYPE html>
<html><head><title>sight</title></head>
<body>
<script>window.__INITIAL_STATE__ = {"detail":{"poiId": 49958175,"name":"test sight"}};</script>
</body></html>`

func newTestResolver(t *testing.T) (*Resolver, *httpmock.MockTransport) {
	t.Helper()
	r, err := New("test-agent", 5*time.Second, 8)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	transport := httpmock.NewMockTransport()
	r.WithTransport(transport)
	return r, transport
}

func TestResolveExtractsPoiID(t *testing.T) {
	r, transport := newTestResolver(t)
	transport.RegisterResponder("GET", sightURL,
		httpmock.NewStringResponder(200, sightHTML))

	poiID, err := r.Resolve(sightURL)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if poiID != "49958175" {
		t.Fatalf("poiId = %q, want %q", poiID, "49958175")
	}
}

func TestResolveCachesResult(t *testing.T) {
	r, transport := newTestResolver(t)
	transport.RegisterResponder("GET", sightURL,
		httpmock.NewStringResponder(200, sightHTML))

	if _, err := r.Resolve(sightURL); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if _, err := r.Resolve(sightURL); err != nil {
		t.Fatalf("second resolve: %v", err)
	}

	info := transport.GetCallCountInfo()
	if got := info["GET "+sightURL]; got != 1 {
		t.Fatalf("upstream requests = %d, want 1 (second lookup must hit the cache)", got)
	}
}

func TestResolvePoiIDAbsent(t *testing.T) {
	r, transport := newTestResolver(t)
	transport.RegisterResponder("GET", sightURL,
		httpmock.NewStringResponder(200, "<html><body>nothing here</body></html>"))

	_, err := r.Resolve(sightURL)
	var resErr ErrResolution
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
	if resErr.URL != sightURL {
		t.Fatalf("error URL = %q, want %q", resErr.URL, sightURL)
	}
}

func TestResolveNetworkFailure(t *testing.T) {
	r, transport := newTestResolver(t)
	transport.RegisterResponder("GET", sightURL,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := r.Resolve(sightURL)
	var resErr ErrResolution
	if !errors.As(err, &resErr) {
		t.Fatalf("expected ErrResolution, got %v", err)
	}
}

func TestExtractPageID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{name: "standard sight url", url: sightURL, wantID: "25506", wantOK: true},
		{name: "no numeric segment", url: "https://you.ctrip.com/sight/", wantOK: false},
		{name: "deep path", url: "https://you.ctrip.com/sight/beijing1/229.html?from=home", wantID: "229", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractPageID(tt.url)
			if ok != tt.wantOK || id != tt.wantID {
				t.Fatalf("ExtractPageID(%q) = %q, %v; want %q, %v", tt.url, id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/bus"
	"github.com/matheus3301/hanger/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hostRequest is what the fake host saw for one call.
type hostRequest struct {
	Type   string
	Title  string
	Image  string
	File   []byte
	Auth   string
	Closed bool
}

type fakeHost struct {
	mu       sync.Mutex
	requests []hostRequest
	handle   func(n int, req hostRequest, w http.ResponseWriter) bool
}

func (h *fakeHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := hostRequest{Auth: r.Header.Get("Authorization")}
	if err := r.ParseMultipartForm(1 << 20); err == nil {
		req.Type = r.FormValue("type")
		req.Title = r.FormValue("title")
		req.Image = r.FormValue("image")
		if f, _, err := r.FormFile("image"); err == nil {
			req.File, _ = io.ReadAll(f)
			f.Close()
		}
	}

	h.mu.Lock()
	n := len(h.requests)
	h.requests = append(h.requests, req)
	h.mu.Unlock()

	if !h.handle(n, req, w) {
		// Drop the connection without a response.
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}
}

func (h *fakeHost) seen() []hostRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]hostRequest(nil), h.requests...)
}

func respond(w http.ResponseWriter, status int, body string) bool {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
	return true
}

const okBody = `{"data":{"link":"https://i.example/abc.png"},"success":true,"status":200}`

type harness struct {
	p      *Pipeline
	host   *fakeHost
	bus    *bus.Bus
	m      *metrics.Metrics
	mu     sync.Mutex
	delays []time.Duration
}

func newHarness(t *testing.T, handle func(n int, req hostRequest, w http.ResponseWriter) bool) *harness {
	t.Helper()
	host := &fakeHost{handle: handle}
	srv := httptest.NewServer(host)
	t.Cleanup(srv.Close)

	h := &harness{host: host, bus: bus.New(), m: metrics.New()}
	h.p = NewPipeline(Config{
		Endpoint: srv.URL + "/3/image",
		ClientID: "test-client",
	}, h.bus, h.m, nil)
	h.p.jitter = func(time.Duration) time.Duration { return 0 }
	h.p.sleep = func(ctx context.Context, d time.Duration) error {
		h.mu.Lock()
		h.delays = append(h.delays, d)
		h.mu.Unlock()
		return ctx.Err()
	}
	return h
}

func (h *harness) slept() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.delays...)
}

var pic = Asset{Name: "shirt.png", Data: []byte("\x89PNG fake image bytes")}

func TestUploadPrimarySuccess(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		return respond(w, http.StatusOK, okBody)
	})

	url, err := h.p.Upload(context.Background(), pic)
	require.NoError(t, err)
	assert.Equal(t, "https://i.example/abc.png", url)

	reqs := h.host.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Client-ID test-client", reqs[0].Auth)
	assert.Equal(t, "file", reqs[0].Type)
	assert.Equal(t, pic.Data, reqs[0].File)
	assert.Empty(t, h.slept())
}

func TestUploadRetriesTransportErrors(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if n < 3 {
			return false
		}
		return respond(w, http.StatusOK, okBody)
	})

	url, err := h.p.Upload(context.Background(), pic)
	require.NoError(t, err)
	assert.Equal(t, "https://i.example/abc.png", url)

	reqs := h.host.seen()
	require.Len(t, reqs, 4)
	for _, r := range reqs {
		assert.Equal(t, "file", r.Type, "all attempts stay in the primary phase")
	}
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, h.slept())
}

func TestUploadFallsBackAfterRejection(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if req.Type == "file" {
			return respond(w, http.StatusBadRequest, `{"data":{"error":"bad multipart"}}`)
		}
		return respond(w, http.StatusOK, okBody)
	})

	url, err := h.p.Upload(context.Background(), pic)
	require.NoError(t, err)
	assert.Equal(t, "https://i.example/abc.png", url)

	reqs := h.host.seen()
	require.Len(t, reqs, 2, "a rejection is not retried within the phase")
	assert.Equal(t, "file", reqs[0].Type)
	assert.Equal(t, "base64", reqs[1].Type)
	assert.Equal(t, "shirt.png", reqs[1].Title)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pic.Data), reqs[1].Image)
	assert.Empty(t, h.slept())
}

func TestUploadFallsBackWhenLinkMissing(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if req.Type == "file" {
			return respond(w, http.StatusOK, `{"data":{}}`)
		}
		return respond(w, http.StatusOK, `{"data":{"link":"https://i.example/fallback.png"}}`)
	})

	url, err := h.p.Upload(context.Background(), pic)
	require.NoError(t, err)
	assert.Equal(t, "https://i.example/fallback.png", url)
	assert.Len(t, h.host.seen(), 2)
}

func TestUploadBothPhasesFailSurfacesServerMessage(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if req.Type == "file" {
			return respond(w, http.StatusBadRequest, `not json`)
		}
		return respond(w, http.StatusBadRequest, `{"data":{"error":{"code":1003,"message":"File type invalid"}}}`)
	})

	_, err := h.p.Upload(context.Background(), pic)
	require.Error(t, err)
	assert.Equal(t, "File type invalid", err.Error())

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	var rej *RejectionError
	require.ErrorAs(t, failed.Fallback, &rej)
	assert.Equal(t, http.StatusBadRequest, rej.Status)
	assert.True(t, rej.FromServer)
	assert.Len(t, h.host.seen(), 2)
}

func TestUploadPrefersPrimaryServerMessage(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if req.Type == "file" {
			return respond(w, http.StatusBadRequest, `{"data":{"error":"Image is too large"}}`)
		}
		return respond(w, http.StatusInternalServerError, ``)
	})

	_, err := h.p.Upload(context.Background(), pic)
	require.Error(t, err)
	assert.Equal(t, "Image is too large", err.Error())
}

func TestUploadGenericFailureMessage(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		return respond(w, http.StatusForbidden, ``)
	})

	_, err := h.p.Upload(context.Background(), pic)
	require.Error(t, err)
	assert.Equal(t, "upload failed (403)", err.Error())
}

func TestUploadHonoursRetryAfter(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if n < 2 {
			w.Header().Set("Retry-After", "7")
			return respond(w, http.StatusTooManyRequests, `{}`)
		}
		return respond(w, http.StatusOK, okBody)
	})

	_, err := h.p.Upload(context.Background(), pic)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{7 * time.Second, 7 * time.Second}, h.slept())
}

func TestUploadRateLimitExhaustionFallsBack(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if req.Type == "file" {
			return respond(w, http.StatusTooManyRequests, `{}`)
		}
		return respond(w, http.StatusOK, okBody)
	})

	_, err := h.p.Upload(context.Background(), pic)
	require.NoError(t, err)

	reqs := h.host.seen()
	require.Len(t, reqs, DefaultMaxAttempts+1)
	assert.Equal(t, "base64", reqs[DefaultMaxAttempts].Type)
	// No wait after the final primary attempt.
	assert.Len(t, h.slept(), DefaultMaxAttempts-1)
}

func TestUploadBothPhasesExhausted(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		return false
	})

	_, err := h.p.Upload(context.Background(), pic)
	require.Error(t, err)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	var te *TransportError
	assert.ErrorAs(t, err, &te)
	assert.Len(t, h.host.seen(), 2*DefaultMaxAttempts)
	assert.Len(t, h.slept(), 2*(DefaultMaxAttempts-1))
}

func TestUploadCancelledDuringBackoff(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		return false
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.p.sleep = func(context.Context, time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := h.p.Upload(ctx, pic)
	require.ErrorIs(t, err, context.Canceled)

	reqs := h.host.seen()
	require.Len(t, reqs, 1)
	assert.Equal(t, "file", reqs[0].Type, "cancellation must not start the fallback")
}

func TestUploadRequiresClientID(t *testing.T) {
	p := NewPipeline(Config{}, nil, nil, nil)
	_, err := p.Upload(context.Background(), pic)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUploadRejectsEmptyAsset(t *testing.T) {
	p := NewPipeline(Config{ClientID: "x"}, nil, nil, nil)
	_, err := p.Upload(context.Background(), Asset{Name: "empty.png"})
	assert.True(t, apperr.IsValidation(err))
}

func TestUploadPublishesPhaseEvents(t *testing.T) {
	h := newHarness(t, func(n int, req hostRequest, w http.ResponseWriter) bool {
		if req.Type == "file" {
			return false
		}
		return respond(w, http.StatusOK, okBody)
	})
	events, unsub := h.bus.Subscribe("upload.", 64)
	defer unsub()

	_, err := h.p.Upload(context.Background(), pic)
	require.NoError(t, err)

	var changes []PhaseChange
	retries := 0
	for len(events) > 0 {
		evt := <-events
		switch evt.Kind {
		case bus.UploadPhaseChanged:
			changes = append(changes, evt.Payload.(PhaseChange))
		case bus.UploadRetryScheduled:
			a := evt.Payload.(Attempt)
			assert.Equal(t, Primary, a.Phase)
			retries++
		}
	}
	require.Len(t, changes, 2)
	assert.Equal(t, Primary, changes[0].From)
	assert.Equal(t, Fallback, changes[0].To)
	assert.Equal(t, Fallback, changes[1].From)
	assert.Equal(t, Succeeded, changes[1].To)
	assert.Equal(t, changes[0].UploadID, changes[1].UploadID)
	assert.Equal(t, DefaultMaxAttempts-1, retries)

	expected := `
# HELP hanger_uploads_total Completed uploads, by final phase.
# TYPE hanger_uploads_total counter
hanger_uploads_total{phase="fallback"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(h.m.Registry(), strings.NewReader(expected), "hanger_uploads_total"))
}

func TestBackoff(t *testing.T) {
	p := NewPipeline(Config{BaseDelay: time.Second, MaxDelay: 5 * time.Second, MaxJitter: 100 * time.Millisecond}, nil, nil, nil)
	p.jitter = func(max time.Duration) time.Duration { return max / 2 }

	assert.Equal(t, 1050*time.Millisecond, p.backoff(0, 0))
	assert.Equal(t, 2050*time.Millisecond, p.backoff(1, 0))
	assert.Equal(t, 4050*time.Millisecond, p.backoff(2, 0))
	assert.Equal(t, 5050*time.Millisecond, p.backoff(3, 0), "capped at max delay")
	assert.Equal(t, 5050*time.Millisecond, p.backoff(40, 0))
	assert.Equal(t, 3*time.Second, p.backoff(1, 3*time.Second), "server hint wins, no jitter")
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 5*time.Second, parseRetryAfter("5", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3", now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Equal(t, time.Duration(0), parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
}

func TestSleepContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := sleepContext(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}

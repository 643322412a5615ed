// Package upload pushes user images to the third-party asset host.
//
// Each request runs as a small state machine: a primary phase sending the raw
// bytes as a file field, then, if that phase ends without a link for any
// reason, a fallback phase sending a base64 text field. Each phase retries
// transport failures and rate limiting with capped exponential backoff, and
// gives up immediately on any other rejection.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/matheus3301/hanger/internal/apperr"
	"github.com/matheus3301/hanger/internal/bus"
	"github.com/matheus3301/hanger/internal/metrics"
	"go.uber.org/zap"
)

// Config controls the asset host endpoint and the retry policy of each phase.
type Config struct {
	Endpoint    string
	ClientID    string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxJitter   time.Duration
	Timeout     time.Duration
}

const (
	DefaultEndpoint    = "https://api.imgur.com/3/image"
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = 15 * time.Second
	DefaultMaxJitter   = 250 * time.Millisecond
	DefaultTimeout     = 30 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.MaxJitter < 0 {
		c.MaxJitter = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Asset is one file to upload.
type Asset struct {
	Name string
	Data []byte
}

func (a Asset) name() string {
	if a.Name == "" {
		return "upload"
	}
	return a.Name
}

// Pipeline uploads assets. It is safe for concurrent use; every Upload call
// runs its own state machine.
type Pipeline struct {
	cfg     Config
	http    *resty.Client
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger

	sleep  func(context.Context, time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// NewPipeline creates an upload pipeline.
func NewPipeline(cfg Config, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "hanger/1.0")

	return &Pipeline{
		cfg:     cfg,
		http:    client,
		bus:     b,
		metrics: m,
		logger:  logger,
		sleep:   sleepContext,
		jitter:  randomJitter,
	}
}

// Upload sends asset to the host and returns its public URL.
func (p *Pipeline) Upload(ctx context.Context, asset Asset) (string, error) {
	if len(asset.Data) == 0 {
		return "", apperr.Invalid("asset", "must not be empty")
	}
	if p.cfg.ClientID == "" {
		return "", ErrNotConfigured
	}

	id := uuid.NewString()
	m := newMachine(id, p.bus)
	log := p.logger.With(zap.String("upload_id", id), zap.String("name", asset.name()), zap.Int("bytes", len(asset.Data)))

	link, primaryErr := p.runPhase(ctx, id, Primary, asset)
	if primaryErr == nil {
		return p.succeed(m, link, log)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	log.Warn("primary upload failed, falling back to base64", zap.Error(primaryErr))
	if err := m.transition(Fallback); err != nil {
		return "", err
	}
	link, fallbackErr := p.runPhase(ctx, id, Fallback, asset)
	if fallbackErr == nil {
		return p.succeed(m, link, log)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := m.transition(Failed); err != nil {
		return "", err
	}
	failed := &FailedError{Primary: primaryErr, Fallback: fallbackErr}
	log.Error("upload failed", zap.Error(failed))
	return "", failed
}

func (p *Pipeline) succeed(m *machine, link string, log *zap.Logger) (string, error) {
	phase := m.current
	if err := m.transition(Succeeded); err != nil {
		return "", err
	}
	p.metrics.UploadFinished(phase.label())
	log.Info("upload complete", zap.String("phase", phase.label()), zap.String("url", link))
	return link, nil
}

// runPhase performs up to MaxAttempts sends with one transport. Retriable
// failures wait and try again; anything else ends the phase at once.
func (p *Pipeline) runPhase(ctx context.Context, id string, phase Phase, asset Asset) (string, error) {
	var (
		lastErr error
		waited  time.Duration
	)
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		link, err := p.send(ctx, phase, asset)
		if err == nil {
			p.metrics.UploadAttempt(phase.label(), "success")
			return link, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var te *TransportError
		if !errors.As(err, &te) {
			p.metrics.UploadAttempt(phase.label(), "rejected")
			return "", err
		}
		if te.Status == http.StatusTooManyRequests {
			p.metrics.UploadAttempt(phase.label(), "rate_limited")
		} else {
			p.metrics.UploadAttempt(phase.label(), "transport_error")
		}
		lastErr = err

		// No point waiting after the last attempt.
		if attempt == p.cfg.MaxAttempts-1 {
			break
		}
		delay := p.backoff(attempt, te.RetryAfter)
		if p.bus != nil {
			p.bus.Publish(bus.Event{
				Kind:      bus.UploadRetryScheduled,
				Timestamp: time.Now(),
				Payload: Attempt{
					UploadID: id,
					Phase:    phase,
					Number:   attempt + 1,
					Delay:    delay,
					Waited:   waited,
					Err:      err,
				},
			})
		}
		p.logger.Debug("upload retry scheduled",
			zap.String("upload_id", id),
			zap.String("phase", phase.label()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		if err := p.sleep(ctx, delay); err != nil {
			return "", err
		}
		waited += delay
	}
	return "", fmt.Errorf("%s phase gave up after %d attempts: %w", phase.label(), p.cfg.MaxAttempts, lastErr)
}

// backoff returns the wait before the retry following attempt (0-based).
// A server-supplied Retry-After wins; otherwise the delay doubles per attempt
// up to MaxDelay, plus random jitter.
func (p *Pipeline) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	d := p.cfg.MaxDelay
	if attempt < 32 {
		if exp := p.cfg.BaseDelay << attempt; exp > 0 && exp < p.cfg.MaxDelay {
			d = exp
		}
	}
	if p.cfg.MaxJitter > 0 {
		d += p.jitter(p.cfg.MaxJitter)
	}
	return d
}

type hostResponse struct {
	Data struct {
		Link  string          `json:"link"`
		Error json.RawMessage `json:"error"`
	} `json:"data"`
	Error json.RawMessage `json:"error"`
}

func (p *Pipeline) send(ctx context.Context, phase Phase, asset Asset) (string, error) {
	req := p.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Client-ID "+p.cfg.ClientID)

	switch phase {
	case Primary:
		req.SetFileReader("image", asset.name(), bytes.NewReader(asset.Data)).
			SetFormData(map[string]string{"type": "file"})
	case Fallback:
		req.SetMultipartFormData(map[string]string{
			"image": base64.StdEncoding.EncodeToString(asset.Data),
			"type":  "base64",
			"title": asset.name(),
		})
	default:
		return "", fmt.Errorf("no transport for phase %s", phase)
	}

	resp, err := req.Post(p.cfg.Endpoint)
	if err != nil {
		return "", &TransportError{Err: err}
	}

	status := resp.StatusCode()
	if status == http.StatusTooManyRequests {
		return "", &TransportError{Status: status, RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After"), time.Now())}
	}

	var body hostResponse
	decodeErr := json.Unmarshal(resp.Body(), &body)
	if resp.IsSuccess() {
		if decodeErr != nil || body.Data.Link == "" {
			return "", &RejectionError{Status: status, Message: "response missing link"}
		}
		return body.Data.Link, nil
	}

	if decodeErr == nil {
		if msg := errorMessage(body.Data.Error); msg != "" {
			return "", &RejectionError{Status: status, Message: msg, FromServer: true}
		}
		if msg := errorMessage(body.Error); msg != "" {
			return "", &RejectionError{Status: status, Message: msg, FromServer: true}
		}
	}
	return "", &RejectionError{Status: status}
}

// errorMessage extracts a message from an error field that is either a plain
// string or an object carrying a message.
func errorMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// sleepContext waits on a timer, returning early if ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func randomJitter(max time.Duration) time.Duration {
	return time.Duration(rand.Int63n(int64(max)))
}

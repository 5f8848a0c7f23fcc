// Package model owns the cached confidence-model weights and the
// fetch/backoff discipline around refreshing them.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"SPXEngine/internal/domain/models"
	"SPXEngine/internal/domain/repository"
	"SPXEngine/internal/domain/service"
	"SPXEngine/pkg/logger"
)

const (
	DefaultObjectPath      = "confidence-model/latest.json"
	DefaultRefreshInterval = 24 * time.Hour
	DefaultBackoffBase     = 10 * time.Minute
	DefaultBackoffCeiling  = 6 * time.Hour
)

// FetchResult is the raw outcome of one weights download.
type FetchResult struct {
	Body       []byte
	StatusCode int
}

// FetchFunc downloads the weights object. Implementations carry their
// own timeout; the loader imposes none.
type FetchFunc func(ctx context.Context, url string) (*FetchResult, error)

// WeightsCache persists the last good payload across restarts. Optional.
type WeightsCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte) error
}

type Config struct {
	StorageBaseURL  string        `yaml:"storage_base_url"`
	Bucket          string        `yaml:"bucket" default:"models"`
	ObjectPath      string        `yaml:"object_path" default:"confidence-model/latest.json"`
	RefreshInterval time.Duration `yaml:"refresh_interval" default:"24h"`
	BackoffBase     time.Duration `yaml:"backoff_base" default:"10m"`
	BackoffCeiling  time.Duration `yaml:"backoff_ceiling" default:"6h"`
	Autoload        bool          `yaml:"autoload"`
}

func (c *Config) applyDefaults() {
	if c.ObjectPath == "" {
		c.ObjectPath = DefaultObjectPath
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCeiling <= 0 {
		c.BackoffCeiling = DefaultBackoffCeiling
	}
}

// URL resolves the public storage object URL for the weights file.
func (c *Config) URL() string {
	base := strings.TrimRight(c.StorageBaseURL, "/")
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", base, c.Bucket, c.ObjectPath)
}

type inflightFetch struct {
	done  chan struct{}
	model *models.ConfidenceModelWeights
}

// Loader caches fetched weights with single-flight refresh semantics:
// concurrent callers during a fetch all receive the same result, and a
// failed fetch opens an exponential backoff window during which no new
// network call is issued.
type Loader struct {
	cfg     Config
	fetch   FetchFunc
	cache   WeightsCache
	log     *logger.Logger
	metrics repository.Metrics
	now     func() time.Time

	mu                  sync.Mutex
	cached              *models.ConfidenceModelWeights
	cachedAt            time.Time
	inflight            *inflightFetch
	consecutiveFailures int
	backoffUntil        time.Time
}

type Option func(*Loader)

// WithClock overrides the loader's time source.
func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

// WithCache attaches a byte cache used to warm-start the loader and to
// persist the last good payload.
func WithCache(c WeightsCache) Option {
	return func(l *Loader) { l.cache = c }
}

// WithMetrics attaches an operational metrics recorder.
func WithMetrics(m repository.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

func NewLoader(cfg Config, fetch FetchFunc, log *logger.Logger, opts ...Option) *Loader {
	cfg.applyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	l := &Loader{
		cfg:   cfg,
		fetch: fetch,
		log:   log,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var _ service.ModelSource = (*Loader)(nil)

// Status is a point-in-time view of the loader for diagnostics.
type Status struct {
	Version             string    `json:"version,omitempty"`
	LoadedAt            time.Time `json:"loadedAt,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	BackoffUntil        time.Time `json:"backoffUntil,omitempty"`
	FetchInFlight       bool      `json:"fetchInFlight"`
}

// Status reports the loader state without triggering a fetch.
func (l *Loader) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	st := Status{
		ConsecutiveFailures: l.consecutiveFailures,
		BackoffUntil:        l.backoffUntil,
		FetchInFlight:       l.inflight != nil,
	}
	if l.cached != nil {
		st.Version = l.cached.Version
		st.LoadedAt = l.cachedAt
	}
	return st
}

// Current implements the scoring-side model source. It never forces a
// network fetch beyond the normal refresh policy.
func (l *Loader) Current(ctx context.Context) *models.ConfidenceModelWeights {
	return l.Load(ctx, false)
}

// Load returns the confidence model, fetching when the cache is stale.
// It never returns an error: any failure yields the last good cached
// value, possibly nil.
func (l *Loader) Load(ctx context.Context, force bool) *models.ConfidenceModelWeights {
	l.mu.Lock()
	now := l.now()

	if !force {
		if now.Before(l.backoffUntil) {
			m := l.cached
			l.mu.Unlock()
			return m
		}
		if l.cached != nil && now.Sub(l.cachedAt) < l.cfg.RefreshInterval {
			m := l.cached
			l.mu.Unlock()
			return m
		}
	}

	if in := l.inflight; in != nil {
		l.mu.Unlock()
		select {
		case <-in.done:
			return in.model
		case <-ctx.Done():
			l.mu.Lock()
			m := l.cached
			l.mu.Unlock()
			return m
		}
	}

	in := &inflightFetch{done: make(chan struct{})}
	l.inflight = in
	l.mu.Unlock()

	// The fetch always runs to completion and settles cache/backoff
	// state even if the initiating caller goes away.
	weights, status, err := l.doFetch(context.WithoutCancel(ctx))

	l.mu.Lock()
	if err == nil {
		l.cached = weights
		l.cachedAt = l.now()
		l.consecutiveFailures = 0
		l.backoffUntil = time.Time{}
		if l.metrics != nil {
			l.metrics.RecordModelFetch("ok")
		}
	} else {
		l.consecutiveFailures++
		l.backoffUntil = l.now().Add(l.backoffDelay(status))
		l.log.Warn("confidence model fetch failed",
			logger.Error(err),
			logger.Int("status", status),
			logger.Int("consecutive_failures", l.consecutiveFailures),
		)
		if l.metrics != nil {
			l.metrics.RecordModelFetch("error")
		}
	}
	in.model = l.cached
	l.inflight = nil
	close(in.done)
	l.mu.Unlock()

	return in.model
}

// WarmStart loads persisted weights from the byte cache, if attached.
// Failures are silent; a live fetch will replace the cache anyway.
func (l *Loader) WarmStart(ctx context.Context) {
	if l.cache == nil {
		return
	}
	raw, ok := l.cache.Get(ctx, l.cacheKey())
	if !ok {
		return
	}
	weights, err := decodeWeights(raw)
	if err != nil {
		return
	}
	l.mu.Lock()
	if l.cached == nil {
		l.cached = weights
		l.cachedAt = l.now()
	}
	l.mu.Unlock()
	l.log.Info("confidence model warm-started from cache", logger.String("version", weights.Version))
}

// StartAutoRefresh runs background refresh ticks until ctx is done.
// No-op unless autoload is enabled in config.
func (l *Loader) StartAutoRefresh(ctx context.Context) {
	if !l.cfg.Autoload {
		return
	}
	go func() {
		ticker := time.NewTicker(l.cfg.RefreshInterval)
		defer ticker.Stop()

		l.Load(ctx, false)
		for {
			select {
			case <-ticker.C:
				l.Load(ctx, false)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (l *Loader) doFetch(ctx context.Context) (*models.ConfidenceModelWeights, int, error) {
	start := l.now()
	res, err := l.fetch(ctx, l.cfg.URL())
	if err != nil {
		return nil, 0, fmt.Errorf("fetch model weights: %w", err)
	}
	if res.StatusCode != 200 {
		return nil, res.StatusCode, fmt.Errorf("fetch model weights: unexpected status %d", res.StatusCode)
	}

	weights, err := decodeWeights(res.Body)
	if err != nil {
		return nil, res.StatusCode, err
	}

	if l.cache != nil {
		if cerr := l.cache.Set(ctx, l.cacheKey(), res.Body); cerr != nil {
			l.log.Warn("persist model weights", logger.Error(cerr))
		}
	}
	if l.metrics != nil {
		l.metrics.RecordLatency("model_fetch", l.now().Sub(start).Seconds())
	}
	l.log.Info("confidence model loaded",
		logger.String("version", weights.Version),
		logger.Int("features", len(weights.Features)),
	)
	return weights, res.StatusCode, nil
}

// backoffDelay doubles per consecutive failure from the base up to the
// ceiling. 4xx responses extend the delay to at least the refresh
// interval since the object will not change soon.
func (l *Loader) backoffDelay(status int) time.Duration {
	delay := l.cfg.BackoffBase
	for i := 1; i < l.consecutiveFailures; i++ {
		delay *= 2
		if delay >= l.cfg.BackoffCeiling {
			delay = l.cfg.BackoffCeiling
			break
		}
	}
	if delay > l.cfg.BackoffCeiling {
		delay = l.cfg.BackoffCeiling
	}
	if status >= 400 && status < 500 && delay < l.cfg.RefreshInterval {
		delay = l.cfg.RefreshInterval
	}
	return delay
}

func (l *Loader) cacheKey() string {
	return "confidence-model:" + l.cfg.Bucket + ":" + l.cfg.ObjectPath
}

func decodeWeights(raw []byte) (*models.ConfidenceModelWeights, error) {
	var weights models.ConfidenceModelWeights
	if err := json.Unmarshal(raw, &weights); err != nil {
		return nil, fmt.Errorf("decode model weights: %w", err)
	}
	if !weights.Valid() {
		return nil, fmt.Errorf("decode model weights: invalid payload shape")
	}
	return &weights, nil
}

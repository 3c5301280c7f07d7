package metadata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Tags is the sink's successful-lookup payload (spec.md §4.2: "given
// (artist, title) it returns {sources: {name -> [raw_tag]}, recording_id?}
// or a miss").
type Tags struct {
	Sources     map[string][]string
	RecordingID string
}

// Sink is the pluggable genre/tag enrichment contract the resolver calls
// after (artist, title) are known. The resolver has no transport logic of
// its own (spec.md §4.2); Sink implementations own that.
type Sink interface {
	Lookup(ctx context.Context, artist, title string) (Tags, bool, error)
}

// RestySink is the default HTTP-based Sink implementation, calling a
// generic JSON tag-lookup endpoint. It is a concrete default so callers
// can run the resolver without writing their own transport (SPEC_FULL.md
// §4's ambient-stack rationale).
type RestySink struct {
	client  *resty.Client
	baseURL string

	mu      sync.Mutex
	buckets map[string]*tokenBucket
	rate    int
	per     time.Duration
}

// NewRestySink builds a sink against baseURL, rate-limited to `rate`
// lookups per `per` duration; every Lookup draws from one shared bucket.
func NewRestySink(baseURL string, rate int, per time.Duration) *RestySink {
	return &RestySink{
		client:  resty.New().SetTimeout(10 * time.Second),
		baseURL: baseURL,
		buckets: make(map[string]*tokenBucket),
		rate:    rate,
		per:     per,
	}
}

type tagResponse struct {
	Sources     map[string][]string `json:"sources"`
	RecordingID string              `json:"recording_id"`
	Miss        bool                `json:"miss"`
}

func (s *RestySink) Lookup(ctx context.Context, artist, title string) (Tags, bool, error) {
	if !s.allow("default") {
		return Tags{}, false, fmt.Errorf("metadata: rate limit exceeded")
	}

	var result tagResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"artist": artist, "title": title}).
		SetResult(&result).
		Get(s.baseURL + "/lookup")
	if err != nil {
		return Tags{}, false, fmt.Errorf("metadata: sink request failed: %w", err)
	}
	if resp.IsError() {
		return Tags{}, false, fmt.Errorf("metadata: sink returned status %d", resp.StatusCode())
	}
	if result.Miss {
		return Tags{}, false, nil
	}
	return Tags{Sources: result.Sources, RecordingID: result.RecordingID}, true, nil
}

// allow implements a simple per-source token bucket (no
// golang.org/x/time/rate appears anywhere in the example pack, so this is
// hand-rolled over a mutex-guarded counter rather than adopted from an
// unseen library).
func (s *RestySink) allow(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[source]
	if !ok {
		b = &tokenBucket{tokens: float64(s.rate), capacity: float64(s.rate), refillPerSec: float64(s.rate) / s.per.Seconds(), last: time.Now()}
		s.buckets[source] = b
	}
	return b.take()
}

type tokenBucket struct {
	tokens       float64
	capacity     float64
	refillPerSec float64
	last         time.Time
}

func (b *tokenBucket) take() bool {
	now := time.Now()
	elapsed := now.Sub(b.last).Seconds()
	b.last = now
	b.tokens += elapsed * b.refillPerSec
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

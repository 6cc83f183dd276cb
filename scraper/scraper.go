// Package scraper drives the paginated retrieval of reviews for one poi.
//
// The Fetcher issues single page requests; the Scraper owns the pagination
// loop, failure policy, pacing, and accumulation. Pages are fetched strictly
// sequentially with randomized inter-page delays to keep a human browsing
// cadence toward the remote service.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"ctrip-reviews/config"
	"ctrip-reviews/models"
	"ctrip-reviews/parser"
	"ctrip-reviews/pipeline"
)

// Scraper runs one retrieval session. It is not safe for concurrent use;
// run independent sessions for independent targets.
type Scraper struct {
	cfg     *config.Config
	poiID   int
	fetcher PageFetcher
	logger  *slog.Logger
	rng     *rand.Rand

	Metrics *Metrics
}

// NewScraper builds a retrieval session for one poi.
func NewScraper(cfg *config.Config, poiID int, fetcher PageFetcher) (*Scraper, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if poiID <= 0 {
		return nil, fmt.Errorf("poi id must be positive, got %d", poiID)
	}

	return &Scraper{
		cfg:     cfg,
		poiID:   poiID,
		fetcher: fetcher,
		logger:  slog.Default(),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		Metrics: NewMetrics(),
	}, nil
}

// SetLogger replaces the observability handle used by the session.
func (s *Scraper) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Run fetches pages until a terminal condition is reached. Page-level
// failures never escape the loop: the result always carries whatever was
// accumulated plus the reason the run ended. Parsed records are streamed
// into p page by page so partial data survives an early stop; p may be nil.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) *models.RunResult {
	if ctx == nil {
		ctx = context.Background()
	}

	result := &models.RunResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}

	page := 1
	failures := 0
	sawFirstPage := false

	s.logger.Info("starting review retrieval",
		slog.Int("poi_id", s.poiID),
		slog.Int("page_size", s.cfg.PageSize),
	)

loop:
	for {
		if ctx.Err() != nil {
			result.StopReason = models.StopCancelled
			break
		}
		if s.cfg.MaxPages > 0 && page > s.cfg.MaxPages {
			s.logger.Info("page ceiling reached", slog.Int("max_pages", s.cfg.MaxPages))
			result.StopReason = models.StopMaxPages
			break
		}

		s.logger.Debug("fetching page", slog.Int("page", page))
		start := time.Now()
		res, err := s.fetcher.FetchPage(ctx, PageRequest{
			PoiID:    s.poiID,
			Page:     page,
			PageSize: s.cfg.PageSize,
		})
		s.Metrics.IncRequest("comment_page")
		s.Metrics.ObserveDuration(time.Since(start))
		result.RequestCount++

		if err == nil && !sawFirstPage {
			// Captured once, for reporting only. Completion is detected
			// structurally from an empty items list, never from this count.
			sawFirstPage = true
			result.ServerTotal = res.TotalCount
			s.logger.Info("server reported total", slog.Int("total", res.TotalCount))
		}

		if err != nil {
			label := errorTypeLabel(err)
			result.ErrorCount++
			result.ErrorsByType[label]++
			s.Metrics.IncError(label)
			s.logger.Error("page fetch failed",
				slog.Int("page", page),
				slog.String("category", label),
				slog.Any("error", err),
			)
		}

		act, newFailures := decide(classifyOutcome(res, err), failures, s.cfg)
		failures = newFailures

		switch act.kind {
		case actionAdvance:
			records := s.parseItems(res.Items)
			result.Reviews = append(result.Reviews, records...)
			result.PagesFetched++
			s.Metrics.AddReviews(len(records))
			s.Metrics.IncPages()
			if p != nil {
				if err := p.Process(records); err != nil && err != pipeline.ErrPipelineClosed {
					s.logger.Error("pipeline process error", slog.Any("error", err))
				}
			}
			s.logger.Info("page processed",
				slog.Int("page", page),
				slog.Int("records", len(records)),
				slog.Int("accumulated", len(result.Reviews)),
			)

			page++
			delay := s.interPageDelay()
			s.logger.Debug("inter-page delay", slog.Duration("delay", delay))
			if !s.sleepCtx(ctx, delay) {
				result.StopReason = models.StopCancelled
				break loop
			}

		case actionRetry:
			result.RetryCount++
			s.Metrics.IncRetries()
			s.logger.Warn("retrying page",
				slog.Int("page", page),
				slog.Duration("after", act.sleep),
				slog.Int("consecutive_failures", failures),
			)
			if !s.sleepCtx(ctx, act.sleep) {
				result.StopReason = models.StopCancelled
				break loop
			}

		case actionStop:
			reason := act.reason
			if reason == models.StopCompleted && sawFirstPage && result.ServerTotal == 0 && result.PagesFetched == 0 {
				reason = models.StopNoReviews
				s.logger.Warn("poi has no reviews")
			} else {
				s.logger.Info("retrieval stopped",
					slog.String("reason", string(reason)),
					slog.Int("page", page),
					slog.Int("accumulated", len(result.Reviews)),
				)
			}
			result.StopReason = reason
			break loop
		}
	}

	result.EndTime = time.Now()
	s.logger.Info("retrieval finished",
		slog.String("reason", string(result.StopReason)),
		slog.Int("reviews", len(result.Reviews)),
		slog.Int("requests", result.RequestCount),
		slog.Int("server_total", result.ServerTotal),
	)
	return result
}

// parseItems maps raw page items independently. A non-object item is the
// only thing that drops a record; it indicates isolated bad data, so it is
// logged below page-level severity.
func (s *Scraper) parseItems(items []any) []*models.Review {
	records := make([]*models.Review, 0, len(items))
	for _, raw := range items {
		obj, ok := raw.(map[string]any)
		if !ok {
			s.logger.Debug("skipping non-object item", slog.String("type", fmt.Sprintf("%T", raw)))
			continue
		}
		records = append(records, parser.Parse(obj))
	}
	return records
}

func (s *Scraper) interPageDelay() time.Duration {
	lo, hi := s.cfg.MinDelay, s.cfg.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int63n(int64(hi-lo)))
}

// sleepCtx blocks for d or until the context is cancelled. Returns false
// on cancellation so the loop can stop before issuing another request.
func (s *Scraper) sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

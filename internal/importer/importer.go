package importer

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"furnace-scheduler/config"
	"furnace-scheduler/internal/engine"
	"furnace-scheduler/internal/scheduler"
)

// Scheduler is the part of the scheduling service the importer feeds.
type Scheduler interface {
	ResolveFurnace(label string) (engine.FurnaceSpec, error)
	Import(ctx context.Context, bookings []*engine.Booking) (scheduler.ImportResult, error)
}

// Service loads the legacy calendar export into the scheduler.
type Service struct {
	cfg    config.ImporterConfig
	svc    Scheduler
	client *http.Client
	now    func() time.Time
}

// NewService creates an importer. HTTP sources go through cfg.HTTPProxy when it is set.
func NewService(cfg config.ImporterConfig, svc Scheduler) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Importer will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	return &Service{
		cfg: cfg,
		svc: svc,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		now: time.Now,
	}
}

// Run imports once and then on every interval until ctx is done. Without an
// interval it returns after the first run.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		log.Println("Importer is disabled. Not starting.")
		return
	}
	log.Printf("Starting importer for %s...", s.cfg.Source)

	s.runOnce(ctx)
	if s.cfg.Interval <= 0 {
		return
	}

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Importer shutting down.")
			return
		case <-timer.C:
			s.runOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) runOnce(ctx context.Context) {
	result, err := s.ImportOnce(ctx)
	if err != nil {
		log.Printf("Import failed: %v", err)
		return
	}
	log.Printf("Import finished: %d created, %d skipped, %d failed", result.Created, result.Skipped, len(result.Failures))
}

// ImportOnce fetches the export and imports every event it can convert.
// Events that cannot be converted are reported as failures alongside the
// scheduler's own.
func (s *Service) ImportOnce(ctx context.Context) (scheduler.ImportResult, error) {
	raw, err := s.fetch(ctx)
	if err != nil {
		return scheduler.ImportResult{}, err
	}
	events, err := decodeExport(raw, s.cfg.ScheduleKey)
	if err != nil {
		return scheduler.ImportResult{}, err
	}

	at := s.now()
	var bookings []*engine.Booking
	var failures []engine.BookingFailure
	for _, evt := range events {
		b, err := s.convert(evt, at)
		if err != nil {
			failures = append(failures, engine.BookingFailure{BookingID: evt.ID, Err: err})
			continue
		}
		bookings = append(bookings, b)
	}
	for _, f := range failures {
		log.Printf("import: skipping event: %v", f)
	}

	result, err := s.svc.Import(ctx, bookings)
	result.Failures = append(failures, result.Failures...)
	return result, err
}

func (s *Service) convert(evt legacyEvent, at time.Time) (*engine.Booking, error) {
	f, err := s.svc.ResolveFurnace(evt.furnaceLabel())
	if err != nil {
		return nil, err
	}
	return evt.toBooking(f.ID, at)
}

func (s *Service) fetch(ctx context.Context) ([]byte, error) {
	if !strings.HasPrefix(s.cfg.Source, "http://") && !strings.HasPrefix(s.cfg.Source, "https://") {
		raw, err := os.ReadFile(s.cfg.Source)
		if err != nil {
			return nil, fmt.Errorf("failed to read export: %w", err)
		}
		return raw, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.Source, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

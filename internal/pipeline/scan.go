package pipeline

import (
	"context"
	"fmt"
	"time"

	"go-report-pipeline/internal/model"

	"go.uber.org/zap"
)

const (
	DefaultScanMaxWindows   = 30
	DefaultScanTargetCount  = 500
	DefaultScanWindowDelay  = 10 * time.Second
	DefaultScanWindowMonths = 1
)

// WindowLister returns every entity in a time window, following pagination
type WindowLister interface {
	ListWindow(ctx context.Context, w model.Window) ([]model.Entity, error)
}

// SeenStore remembers identities already collected
type SeenStore interface {
	Has(id string) bool
	Add(id string)
	Len() int
}

// SeenSet is an in-memory SeenStore
type SeenSet map[string]struct{}

// NewSeenSet returns a set seeded with ids
func NewSeenSet(ids ...string) SeenSet {
	s := make(SeenSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s SeenSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s SeenSet) Add(id string) { s[id] = struct{}{} }

func (s SeenSet) Len() int { return len(s) }

// ScanOptions bound a backward window scan
type ScanOptions struct {
	InitialWindow    model.Window
	WindowStepMonths int
	MaxWindows       int
	TargetCount      int
	InterWindowDelay time.Duration
}

// MonthWindowEndingAt is the one-month window [end-1 month, end).
func MonthWindowEndingAt(end time.Time) model.Window {
	return model.Window{Start: end.AddDate(0, -1, 0), End: end}
}

// Scanner slides a window backward over a listing and keeps only entities it
// has not seen. An entity seen in an earlier window keeps that window's record.
type Scanner struct {
	lister  WindowLister
	sleeper Sleeper
	logger  *zap.Logger
}

func NewScanner(lister WindowLister, sleeper Sleeper, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{lister: lister, sleeper: sleeperOrDefault(sleeper), logger: logger}
}

// Scan stops after MaxWindows windows, once TargetCount entities are
// collected, or at the first window with nothing new. A listing failure
// returns a WindowError and the entities gathered so far.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions, seen SeenStore) ([]model.Entity, error) {
	if opts.MaxWindows <= 0 {
		opts.MaxWindows = DefaultScanMaxWindows
	}
	if opts.TargetCount <= 0 {
		opts.TargetCount = DefaultScanTargetCount
	}
	if opts.WindowStepMonths <= 0 {
		opts.WindowStepMonths = DefaultScanWindowMonths
	}
	if seen == nil {
		seen = NewSeenSet()
	}

	var out []model.Entity
	window := opts.InitialWindow
	for index := 0; index < opts.MaxWindows; index++ {
		if index > 0 {
			if err := s.sleeper.Sleep(ctx, opts.InterWindowDelay); err != nil {
				return out, fmt.Errorf("scan interrupted before window %d: %w", index, err)
			}
		}

		listed, err := s.lister.ListWindow(ctx, window)
		if err != nil {
			scanWindows.WithLabelValues("failed").Inc()
			return out, &WindowError{Index: index, Window: window, Err: err}
		}
		scanWindows.WithLabelValues("ok").Inc()

		unseen := 0
		for _, entity := range listed {
			if entity.ID == "" || seen.Has(entity.ID) {
				continue
			}
			seen.Add(entity.ID)
			out = append(out, entity)
			unseen++
		}

		s.logger.Info("window scanned",
			zap.Int("window", index),
			zap.Time("start", window.Start),
			zap.Time("end", window.End),
			zap.Int("listed", len(listed)),
			zap.Int("new", unseen),
			zap.Int("total", len(out)))

		if unseen == 0 || len(out) >= opts.TargetCount {
			break
		}
		window = window.Shift(opts.WindowStepMonths)
	}
	return out, nil
}

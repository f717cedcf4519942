// Package retention removes generated documents once they pass a maximum age.
package retention

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"docgen-backend/internal/shared/metrics"
	"docgen-backend/internal/shared/telemetry"
)

// Ledger is the part of the generation ledger the sweeper updates.
type Ledger interface {
	MarkDeletedBefore(ctx context.Context, cutoff, at time.Time) (int64, error)
}

// Sweeper deletes .docx and .pdf files in Dir older than MaxAge.
type Sweeper struct {
	Dir      string
	MaxAge   time.Duration
	Interval time.Duration
	Ledger   Ledger
	Now      func() time.Time
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Enabled reports whether a positive max age was configured.
func (s *Sweeper) Enabled() bool {
	return s != nil && s.MaxAge > 0
}

// SweepOnce removes expired files and returns how many were deleted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if !s.Enabled() {
		return 0, nil
	}
	now := s.now()
	cutoff := now.Add(-s.MaxAge)

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read generated dir: %w", err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !entry.Type().IsRegular() || !isGenerated(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.Dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	metrics.AddRetentionRemoved(removed)

	if s.Ledger != nil {
		marked, err := s.Ledger.MarkDeletedBefore(ctx, cutoff, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("mark ledger: %w", err))
		} else if marked > 0 {
			telemetry.Debug("retention.ledger.marked", map[string]any{"count": marked})
		}
	}

	if removed > 0 {
		telemetry.Info("retention.swept", map[string]any{
			"dir":     s.Dir,
			"removed": removed,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		})
	}
	return removed, errors.Join(errs...)
}

// Run sweeps immediately and then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	interval := s.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	telemetry.Info("retention.started", map[string]any{
		"dir":      s.Dir,
		"max_age":  s.MaxAge.String(),
		"interval": interval.String(),
	})

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			telemetry.Warn("retention.sweep.failed", map[string]any{"error": err})
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func isGenerated(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".docx" || ext == ".pdf"
}

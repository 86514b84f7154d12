// Package diagnostics produces redacted state dumps and stores them on a
// schedule.
package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshp123/omhome/internal/blob"
	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/resource"
)

const (
	// LatestName is the blob name that always holds the newest report.
	LatestName = "latest"

	stampPrefix = "diagnostics-"
	stampLayout = "20060102T150405Z"
)

// Source is the coordinator state a report captures.
type Source interface {
	Data() *resource.Snapshot
	LastUpdateSuccess() bool
	LastError() error
	LastUpdated() time.Time
}

// Report is the diagnostics document. Info never carries credentials.
type Report struct {
	Info              *config.Config        `json:"info"`
	Installation      resource.Installation `json:"installation"`
	Data              *resource.Snapshot    `json:"data"`
	LastUpdateSuccess bool                  `json:"last_update_success"`
	LastError         string                `json:"last_error,omitempty"`
	LastUpdated       time.Time             `json:"last_updated"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

func Collect(cfg *config.Config, inst resource.Installation, src Source, now time.Time) Report {
	report := Report{
		Installation:      inst,
		Data:              src.Data(),
		LastUpdateSuccess: src.LastUpdateSuccess(),
		LastUpdated:       src.LastUpdated(),
		GeneratedAt:       now.UTC(),
	}
	if cfg != nil {
		report.Info = cfg.Redacted()
	}
	if err := src.LastError(); err != nil {
		report.LastError = err.Error()
	}
	return report
}

// Writer saves reports to one or more stores.
type Writer struct {
	cfg    *config.Config
	inst   resource.Installation
	source Source
	stores []blob.Store
	log    *logrus.Entry
	now    func() time.Time
}

func NewWriter(cfg *config.Config, inst resource.Installation, source Source, log *logrus.Entry, stores ...blob.Store) *Writer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Writer{cfg: cfg, inst: inst, source: source, stores: stores, log: log, now: time.Now}
}

func (w *Writer) Report() Report {
	return Collect(w.cfg, w.inst, w.source, w.now())
}

// Write stores the current report under LatestName and a timestamped name.
// Every store is attempted; failures are joined.
func (w *Writer) Write(ctx context.Context) (Report, error) {
	report := w.Report()
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return report, fmt.Errorf("encode diagnostics: %w", err)
	}

	stamped := stampPrefix + report.GeneratedAt.Format(stampLayout)
	var errs []error
	for _, store := range w.stores {
		saved := true
		for _, name := range []string{stamped, LatestName} {
			if err := store.Save(ctx, name, data); err != nil {
				errs = append(errs, fmt.Errorf("save %s: %w", name, err))
				saved = false
			}
		}
		if saved {
			if err := w.prune(ctx, store); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return report, err
	}
	w.log.WithField("name", stamped).Debug("diagnostics written")
	return report, nil
}

// prune drops the oldest timestamped reports beyond the configured count.
// Stamps sort chronologically as strings.
func (w *Writer) prune(ctx context.Context, store blob.Store) error {
	if w.cfg == nil || w.cfg.Diagnostics.Keep <= 0 {
		return nil
	}
	names, err := store.List(ctx, stampPrefix)
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}
	excess := len(names) - w.cfg.Diagnostics.Keep
	var errs []error
	for _, name := range names[:max(excess, 0)] {
		if err := store.Delete(ctx, name); err != nil && !errors.Is(err, blob.ErrNotFound) {
			errs = append(errs, fmt.Errorf("delete %s: %w", name, err))
			continue
		}
		w.log.WithField("name", name).Debug("diagnostics pruned")
	}
	return errors.Join(errs...)
}

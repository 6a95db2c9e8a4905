// Package reconcile pushes stored association intent to the operating system
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/conflict"
	"github.com/deadcoast/vince/internal/domain"
	"github.com/deadcoast/vince/internal/platform"
)

// Options controls a single sync pass
type Options struct {
	// DryRun computes outcomes without calling the OS or saving
	DryRun bool
	// Force re-applies active entries that are already marked synced
	Force bool
}

// EntryError is one per-entry failure collected during a pass
type EntryError struct {
	EntryID   string `json:"entry_id"`
	Extension string `json:"extension"`
	Message   string `json:"message"`
}

// Report summarizes a sync pass. The slices hold entry ids.
type Report struct {
	DryRun      bool         `json:"dry_run"`
	Skipped     []string     `json:"skipped"`
	Succeeded   []string     `json:"succeeded"`
	Failed      []string     `json:"failed"`
	Removed     []string     `json:"removed"`
	WouldSync   []string     `json:"would_sync,omitempty"`
	WouldRemove []string     `json:"would_remove,omitempty"`
	Errors      []EntryError `json:"errors"`

	// Document is the updated copy that was (or, in a dry run, would be) saved
	Document *domain.DefaultsDocument `json:"-"`
}

// HasFailures reports whether any entry failed
func (r *Report) HasFailures() bool {
	return len(r.Errors) > 0
}

func newReport(dryRun bool) *Report {
	return &Report{
		DryRun:    dryRun,
		Skipped:   []string{},
		Succeeded: []string{},
		Failed:    []string{},
		Removed:   []string{},
		Errors:    []EntryError{},
	}
}

// Engine runs sync passes against one platform handler
type Engine struct {
	handler platform.Handler
	saver   domain.DefaultsRepository
	now     func() time.Time
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithClock overrides the time source used for os_synced_at
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine that saves through repo
func NewEngine(handler platform.Handler, repo domain.DefaultsRepository, opts ...EngineOption) *Engine {
	e := &Engine{handler: handler, saver: repo, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync reconciles every entry of doc against the OS. doc itself is never
// modified; the updated copy is saved once at the end unless opts.DryRun.
// A failing entry is recorded and the pass continues. A save failure is
// returned together with the report.
func (e *Engine) Sync(ctx context.Context, doc *domain.DefaultsDocument, opts Options) (*Report, error) {
	work := doc.Clone()
	report := newReport(opts.DryRun)

	logger := log.With().Str("handler", e.handler.Name()).Bool("dry_run", opts.DryRun).Logger()

	claimed := make(map[string]bool)
	for _, entry := range work.Defaults {
		if entry.IsActive() {
			claimed[entry.Extension] = true
		}
	}
	duplicates := make(map[string][]string)
	for _, dup := range conflict.NewDetector().DetectDuplicateActive(work.Defaults) {
		duplicates[dup.Extension] = dup.EntryIDs
	}

	kept := make([]domain.DefaultEntry, 0, len(work.Defaults))
	for i := range work.Defaults {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry := &work.Defaults[i]
		switch entry.State {
		case domain.StateActive:
			if ids, dup := duplicates[entry.Extension]; dup {
				e.rejectDuplicate(entry, ids, opts, report)
			} else {
				e.syncActive(ctx, entry, opts, report)
			}
			kept = append(kept, *entry)
		case domain.StateRemoved:
			if e.syncRemoved(ctx, entry, claimed[entry.Extension], opts, report) {
				continue
			}
			kept = append(kept, *entry)
		default:
			kept = append(kept, *entry)
		}
	}
	work.Defaults = kept
	report.Document = work

	logger.Info().
		Int("succeeded", len(report.Succeeded)).
		Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failed)).
		Int("removed", len(report.Removed)).
		Msg("Sync pass completed")

	if opts.DryRun {
		return report, nil
	}

	if err := e.saver.SaveDefaults(ctx, work); err != nil {
		logger.Error().Err(err).Msg("Failed to save defaults after sync")
		return report, err
	}
	return report, nil
}

func (e *Engine) syncActive(ctx context.Context, entry *domain.DefaultEntry, opts Options, report *Report) {
	logger := log.With().Str("entry_id", entry.ID).Str("extension", entry.Extension).Logger()

	if entry.OSSynced && !opts.Force {
		report.Skipped = append(report.Skipped, entry.ID)
		return
	}
	if opts.DryRun {
		report.WouldSync = append(report.WouldSync, entry.ID)
		return
	}

	if !entry.OSSynced && entry.OSSyncedAt == nil && entry.PreviousOSDefault == "" {
		current := e.handler.GetCurrentDefault(ctx, entry.Extension)
		if current.Success && current.Found && e.handler.NormalizePath(current.Path) != e.handler.NormalizePath(entry.ApplicationPath) {
			entry.PreviousOSDefault = current.Path
		}
	}

	now := e.now().UTC()
	result := e.handler.SetDefault(ctx, entry.Extension, entry.ApplicationPath)
	if !result.Success {
		logger.Warn().Str("message", result.Message).Msg("Failed to set OS default")
		entry.LastError = result.Message
		entry.Touch(now)
		report.Failed = append(report.Failed, entry.ID)
		report.Errors = append(report.Errors, EntryError{EntryID: entry.ID, Extension: entry.Extension, Message: result.Message})
		return
	}

	entry.OSSynced = true
	entry.OSSyncedAt = &now
	entry.LastError = ""
	entry.Touch(now)
	report.Succeeded = append(report.Succeeded, entry.ID)
	logger.Debug().Msg("OS default set")
}

// rejectDuplicate records an active entry whose extension is claimed by
// other active entries too. The OS is left alone until the document names a
// single owner.
func (e *Engine) rejectDuplicate(entry *domain.DefaultEntry, ids []string, opts Options, report *Report) {
	msg := fmt.Sprintf("extension %s has %d active entries (%s); remove all but one before syncing",
		entry.Extension, len(ids), strings.Join(ids, ", "))
	log.Warn().Str("entry_id", entry.ID).Str("extension", entry.Extension).Msg("Skipping duplicate active entry")

	if !opts.DryRun {
		entry.LastError = msg
		entry.Touch(e.now().UTC())
	}
	report.Failed = append(report.Failed, entry.ID)
	report.Errors = append(report.Errors, EntryError{EntryID: entry.ID, Extension: entry.Extension, Message: msg})
}

// syncRemoved reports whether the entry should be purged from the document.
// claimed is set when an active entry owns the same extension; the OS binding
// then belongs to that entry and is left alone.
func (e *Engine) syncRemoved(ctx context.Context, entry *domain.DefaultEntry, claimed bool, opts Options, report *Report) bool {
	logger := log.With().Str("entry_id", entry.ID).Str("extension", entry.Extension).Logger()

	if opts.DryRun {
		report.WouldRemove = append(report.WouldRemove, entry.ID)
		return false
	}

	if !entry.OSSynced {
		report.Removed = append(report.Removed, entry.ID)
		logger.Debug().Msg("Purged never-synced entry")
		return true
	}

	if claimed {
		report.Removed = append(report.Removed, entry.ID)
		logger.Debug().Msg("Extension owned by an active entry, purged without touching the OS")
		return true
	}

	result := e.release(ctx, entry)
	if !result.Success {
		logger.Warn().Str("message", result.Message).Msg("Failed to remove OS default")
		entry.LastError = result.Message
		entry.Touch(e.now().UTC())
		report.Failed = append(report.Failed, entry.ID)
		report.Errors = append(report.Errors, EntryError{EntryID: entry.ID, Extension: entry.Extension, Message: result.Message})
		return false
	}

	report.Removed = append(report.Removed, entry.ID)
	logger.Debug().Str("message", result.Message).Msg("OS default removed, entry purged")
	return true
}

// release undoes a synced entry's OS binding. Handlers that cannot unbind get
// the previous owner restored, provided the OS still points at this entry.
func (e *Engine) release(ctx context.Context, entry *domain.DefaultEntry) platform.OperationResult {
	restorer, ok := e.handler.(platform.Restorer)
	if !ok || entry.PreviousOSDefault == "" {
		return e.handler.RemoveDefault(ctx, entry.Extension)
	}

	current := e.handler.GetCurrentDefault(ctx, entry.Extension)
	if !current.Success {
		return platform.Failed("cannot confirm owner of %s before restoring: %s", entry.Extension, current.Message)
	}
	if !current.Found || e.handler.NormalizePath(current.Path) != e.handler.NormalizePath(entry.ApplicationPath) {
		return platform.Succeeded("%s no longer opens with %s; left as is", entry.Extension, entry.ApplicationPath)
	}
	return restorer.RestoreDefault(ctx, entry.Extension, entry.PreviousOSDefault)
}

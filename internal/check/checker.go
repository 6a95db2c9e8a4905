// Package check compares stored intent with the live OS defaults without
// changing either
package check

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/domain"
	"github.com/deadcoast/vince/internal/platform"
)

// Status classifies one active entry
type Status string

const (
	StatusConsistent Status = "consistent"
	StatusMismatch   Status = "mismatch"
	// StatusUnknown means the OS query failed
	StatusUnknown Status = "unknown"
)

// Result is the outcome for one active entry
type Result struct {
	EntryID         string `json:"entry_id"`
	Extension       string `json:"extension"`
	ApplicationPath string `json:"application_path"`
	OSDefault       string `json:"os_default,omitempty"`
	Status          Status `json:"status"`
	Message         string `json:"message,omitempty"`
}

// Summary counts results by status
type Summary struct {
	Total      int `json:"total"`
	Consistent int `json:"consistent"`
	Mismatch   int `json:"mismatch"`
	Unknown    int `json:"unknown"`
}

// Summarize counts results by status
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusConsistent:
			s.Consistent++
		case StatusMismatch:
			s.Mismatch++
		case StatusUnknown:
			s.Unknown++
		}
	}
	return s
}

// Checker runs consistency checks against one handler
type Checker struct {
	handler platform.Handler
}

func NewChecker(handler platform.Handler) *Checker {
	return &Checker{handler: handler}
}

// Check queries the OS for every active entry, in document order
func (c *Checker) Check(ctx context.Context, entries []domain.DefaultEntry) []Result {
	results := make([]Result, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsActive() {
			continue
		}
		results = append(results, c.checkEntry(ctx, entry))
	}
	return results
}

func (c *Checker) checkEntry(ctx context.Context, entry domain.DefaultEntry) Result {
	result := Result{
		EntryID:         entry.ID,
		Extension:       entry.Extension,
		ApplicationPath: entry.ApplicationPath,
	}

	current := c.handler.GetCurrentDefault(ctx, entry.Extension)
	switch {
	case !current.Success:
		result.Status = StatusUnknown
		result.Message = current.Message
		log.Debug().Str("extension", entry.Extension).Str("message", current.Message).Msg("OS query failed during check")
	case !current.Found:
		result.Status = StatusMismatch
		result.Message = "OS reports no default"
	case c.handler.NormalizePath(current.Path) == c.handler.NormalizePath(entry.ApplicationPath):
		result.Status = StatusConsistent
		result.OSDefault = current.Path
	default:
		result.Status = StatusMismatch
		result.OSDefault = current.Path
		result.Message = "OS default differs from stored application"
	}
	return result
}

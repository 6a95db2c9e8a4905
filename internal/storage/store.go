package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/domain"
)

// StoreConfig holds configuration for the Store
type StoreConfig struct {
	DataDir          string
	SchemaValidation bool
	BackupOnSave     bool
	LockTimeout      time.Duration
}

// DefaultStoreConfig returns a default configuration
func DefaultStoreConfig(dataDir string) StoreConfig {
	return StoreConfig{
		DataDir:          dataDir,
		SchemaValidation: true,
		LockTimeout:      10 * time.Second,
	}
}

// Store persists the defaults and offers documents as JSON files in DataDir
type Store struct {
	config  StoreConfig
	schemas *SchemaValidator
	entries *domain.EntryValidator
}

// NewStore creates a new Store instance
func NewStore(dataDir string) *Store {
	return NewStoreWithConfig(DefaultStoreConfig(dataDir))
}

// NewStoreWithConfig creates a new Store with full configuration. When the
// embedded schemas cannot be compiled the store runs without structural
// validation instead of failing.
func NewStoreWithConfig(config StoreConfig) *Store {
	s := &Store{
		config:  config,
		entries: domain.NewEntryValidator(),
	}

	if config.SchemaValidation {
		schemas, err := NewSchemaValidator()
		if err != nil {
			log.Warn().Err(err).Msg("Structural validation unavailable, continuing without it")
		} else {
			s.schemas = schemas
		}
	}

	return s
}

// StructuralValidation reports whether loads are checked against the JSON schemas
func (s *Store) StructuralValidation() bool {
	return s.schemas != nil
}

// DefaultsPath returns the location of defaults.json
func (s *Store) DefaultsPath() string {
	return filepath.Join(s.config.DataDir, kindDefaults.fileName())
}

// OffersPath returns the location of offers.json
func (s *Store) OffersPath() string {
	return filepath.Join(s.config.DataDir, kindOffers.fileName())
}

func (s *Store) pathFor(kind documentKind) string {
	return filepath.Join(s.config.DataDir, kind.fileName())
}

// LoadDefaults reads, migrates and validates defaults.json. A missing file
// yields an empty document at the current schema version.
func (s *Store) LoadDefaults(ctx context.Context) (*domain.DefaultsDocument, error) {
	raw, found, err := s.readDocument(ctx, kindDefaults)
	if err != nil {
		return nil, err
	}
	if !found {
		return domain.NewDefaultsDocument(), nil
	}

	doc := &domain.DefaultsDocument{}
	if err := decode(raw, doc, kindDefaults); err != nil {
		return nil, err
	}
	if doc.Defaults == nil {
		doc.Defaults = []domain.DefaultEntry{}
	}

	if err := s.entries.ValidateDefaults(doc); err != nil {
		return nil, corrupted(kindDefaults, err)
	}
	return doc, nil
}

// LoadOffers reads, migrates and validates offers.json. A missing file yields
// an empty document at the current schema version.
func (s *Store) LoadOffers(ctx context.Context) (*domain.OffersDocument, error) {
	raw, found, err := s.readDocument(ctx, kindOffers)
	if err != nil {
		return nil, err
	}
	if !found {
		return domain.NewOffersDocument(), nil
	}

	doc := &domain.OffersDocument{}
	if err := decode(raw, doc, kindOffers); err != nil {
		return nil, err
	}
	if doc.Offers == nil {
		doc.Offers = []domain.OfferEntry{}
	}

	if err := s.entries.ValidateOffers(doc); err != nil {
		return nil, corrupted(kindOffers, err)
	}
	return doc, nil
}

// SaveDefaults atomically replaces defaults.json with doc
func (s *Store) SaveDefaults(ctx context.Context, doc *domain.DefaultsDocument) error {
	if err := s.entries.ValidateDefaults(doc); err != nil {
		return err
	}
	return s.writeDocument(ctx, kindDefaults, doc)
}

// SaveOffers atomically replaces offers.json with doc
func (s *Store) SaveOffers(ctx context.Context, doc *domain.OffersDocument) error {
	if err := s.entries.ValidateOffers(doc); err != nil {
		return err
	}
	return s.writeDocument(ctx, kindOffers, doc)
}

// readDocument returns the migrated, structurally valid JSON tree of a document
func (s *Store) readDocument(ctx context.Context, kind documentKind) (map[string]any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, domain.NewAppErrorWithCause(domain.ErrInternal, "Load cancelled", err,
			map[string]any{"file": kind.fileName()}).WithOperation(ctx, "load")
	}

	path := s.pathFor(kind)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to read document", err,
			map[string]any{"path": path}).WithOperation(ctx, "load")
	}

	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, false, domain.NewAppErrorWithCause(
			domain.ErrDataCorrupted,
			fmt.Sprintf("%s is not valid JSON", kind.fileName()),
			err,
			map[string]any{"path": path},
		).WithOperation(ctx, "load")
	}
	raw, ok := tree.(map[string]any)
	if !ok {
		return nil, false, domain.NewAppError(
			domain.ErrDataCorrupted,
			fmt.Sprintf("%s must contain a JSON object", kind.fileName()),
			map[string]any{"path": path},
		).WithOperation(ctx, "load")
	}

	migrated, steps, err := Migrate(raw)
	if err != nil {
		return nil, false, err
	}
	if len(steps) > 0 {
		log.Info().Str("file", kind.fileName()).Strs("steps", steps).Msg("Migrated document to current schema")
	}

	if s.schemas != nil {
		if err := s.schemas.Validate(kind, migrated); err != nil {
			return nil, false, err
		}
	}

	return migrated, true, nil
}

func (s *Store) writeDocument(ctx context.Context, kind documentKind, doc any) error {
	if err := os.MkdirAll(s.config.DataDir, 0o755); err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to create data directory", err,
			map[string]any{"dir": s.config.DataDir}).WithOperation(ctx, "save")
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to encode document", err,
			map[string]any{"file": kind.fileName()}).WithOperation(ctx, "save")
	}
	data = append(data, '\n')

	path := s.pathFor(kind)
	if s.config.BackupOnSave {
		if err := backupFile(path); err != nil {
			return domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to back up document", err,
				map[string]any{"path": path}).WithOperation(ctx, "save")
		}
	}

	if err := atomicWrite(path, data); err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to write document", err,
			map[string]any{"path": path}).WithOperation(ctx, "save")
	}

	log.Debug().Str("path", path).Int("bytes", len(data)).Msg("Saved document")
	return nil
}

// decode converts a validated JSON tree into its typed document
func decode(raw map[string]any, into any, kind documentKind) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return domain.NewAppErrorWithCause(domain.ErrInternal, "Failed to re-encode document", err, nil)
	}

	if err := json.Unmarshal(data, into); err != nil {
		return domain.NewAppErrorWithCause(
			domain.ErrDataCorrupted,
			fmt.Sprintf("%s has a field of the wrong type: %v", kind.fileName(), err),
			err,
			map[string]any{"file": kind.fileName()},
		)
	}
	return nil
}

func corrupted(kind documentKind, err error) error {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return domain.NewAppErrorWithCause(
			domain.ErrDataCorrupted,
			fmt.Sprintf("%s: %s", kind.fileName(), appErr.Message),
			err,
			appErr.Details,
		)
	}
	return domain.NewAppErrorWithCause(domain.ErrDataCorrupted, kind.fileName()+" is invalid", err, nil)
}

// HealthCheck performs a health check on the storage system
func (s *Store) HealthCheck(ctx context.Context) domain.HealthStatus {
	now := time.Now()
	details := map[string]any{
		"data_dir":              s.config.DataDir,
		"structural_validation": s.StructuralValidation(),
	}

	if _, err := os.Stat(s.config.DataDir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.HealthStatus{
				Status:    domain.HealthStatusHealthy,
				Message:   "Data directory not created yet",
				Details:   details,
				Timestamp: now,
			}
		}
		details["error"] = err.Error()
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Data directory is not accessible",
			Details:   details,
			Timestamp: now,
		}
	}

	defaults, err := s.LoadDefaults(ctx)
	if err != nil {
		details["error"] = err.Error()
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "defaults.json cannot be loaded",
			Details:   details,
			Timestamp: now,
		}
	}
	details["default_count"] = len(defaults.Defaults)

	offers, err := s.LoadOffers(ctx)
	if err != nil {
		details["error"] = err.Error()
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "offers.json cannot be loaded",
			Details:   details,
			Timestamp: now,
		}
	}
	details["offer_count"] = len(offers.Offers)

	status := domain.HealthStatusHealthy
	message := "Storage is operating normally"
	if !s.StructuralValidation() {
		status = domain.HealthStatusDegraded
		message = "Structural validation is disabled"
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: now,
	}
}

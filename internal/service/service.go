// Package service implements the user-facing mutations of stored intent. Every
// mutation holds the store lock across load, change, validate and save.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deadcoast/vince/internal/conflict"
	"github.com/deadcoast/vince/internal/domain"
)

const maxOfferIDLength = 32

var offerSlugInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// AddRequest describes a new default entry
type AddRequest struct {
	Extension       string `json:"extension"`
	ApplicationPath string `json:"application_path"`
	ApplicationName string `json:"application_name,omitempty"`
	// Activate creates the entry active instead of pending
	Activate bool `json:"activate"`
	// Replace retires an existing active entry for the extension
	Replace bool `json:"replace"`
}

// AddResult is what AddDefault created or changed
type AddResult struct {
	Entry    domain.DefaultEntry  `json:"entry"`
	Offer    *domain.OfferEntry   `json:"offer,omitempty"`
	Replaced *domain.DefaultEntry `json:"replaced,omitempty"`
}

// Listing is a snapshot of both documents
type Listing struct {
	Defaults *domain.DefaultsDocument `json:"defaults"`
	Offers   *domain.OffersDocument   `json:"offers"`
}

// Service mutates the stored documents
type Service struct {
	store     domain.DocumentStore
	validator *domain.EntryValidator
	detector  *conflict.Detector
	now       func() time.Time
	newID     func() string
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides entry id generation
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// New creates a service over store
func New(store domain.DocumentStore, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: domain.NewEntryValidator(),
		detector:  conflict.NewDetector(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withLock runs fn with both documents loaded under the store lock
func (s *Service) withLock(ctx context.Context, op string, fn func(*domain.DefaultsDocument, *domain.OffersDocument) error) error {
	unlock, err := s.store.Lock(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn().Err(err).Str("operation", op).Msg("Failed to release store lock")
		}
	}()

	defaults, err := s.store.LoadDefaults(ctx)
	if err != nil {
		return err
	}
	offers, err := s.store.LoadOffers(ctx)
	if err != nil {
		return err
	}
	return fn(defaults, offers)
}

func (s *Service) saveDefaults(ctx context.Context, doc *domain.DefaultsDocument) error {
	if err := s.validator.ValidateDefaults(doc); err != nil {
		return err
	}
	return s.store.SaveDefaults(ctx, doc)
}

func (s *Service) saveOffers(ctx context.Context, doc *domain.OffersDocument) error {
	if err := s.validator.ValidateOffers(doc); err != nil {
		return err
	}
	return s.store.SaveOffers(ctx, doc)
}

// AddDefault records a new association. An active entry for the same
// extension is a conflict unless req.Replace, which retires it.
func (s *Service) AddDefault(ctx context.Context, req AddRequest) (*AddResult, error) {
	ext := domain.NormalizeExtension(req.Extension)
	if !domain.ValidExtension(ext) {
		return nil, domain.NewAppError(domain.ErrValidationFailed, fmt.Sprintf("invalid extension %q", req.Extension), map[string]any{"field": "extension"})
	}
	appPath := strings.TrimSpace(req.ApplicationPath)
	if appPath == "" {
		return nil, domain.NewAppError(domain.ErrValidationFailed, "application path is required", map[string]any{"field": "application_path"})
	}
	if abs, err := filepath.Abs(appPath); err == nil {
		appPath = abs
	}

	name := strings.TrimSpace(req.ApplicationName)
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(appPath), filepath.Ext(appPath))
	}

	var result *AddResult
	err := s.withLock(ctx, "add_default", func(defaults *domain.DefaultsDocument, offers *domain.OffersDocument) error {
		now := s.now().UTC()
		result = &AddResult{}

		state := domain.StatePending
		if req.Activate {
			state = domain.StateActive
			if existing := s.detector.ActiveConflict(defaults.Defaults, ext, ""); existing != nil {
				if !req.Replace {
					return domain.NewAppError(domain.ErrConflict,
						fmt.Sprintf("%s already has an active default (%s)", ext, existing.ApplicationPath),
						map[string]any{"entry_id": existing.ID, "extension": ext})
				}
				existing.State = domain.StateRemoved
				existing.Touch(now)
				replaced := *existing
				result.Replaced = &replaced
			}
		}

		entry := domain.DefaultEntry{
			ID:              s.newID(),
			Extension:       ext,
			ApplicationPath: appPath,
			ApplicationName: name,
			State:           state,
			CreatedAt:       now,
		}
		defaults.Defaults = append(defaults.Defaults, entry)
		result.Entry = entry

		if offerID := s.freeOfferID(offers, name); offerID != "" {
			offer := domain.OfferEntry{
				OfferID:     offerID,
				DefaultID:   entry.ID,
				State:       domain.OfferCreated,
				AutoCreated: true,
				Description: fmt.Sprintf("Open %s files with %s", ext, name),
				CreatedAt:   now,
			}
			offers.Offers = append(offers.Offers, offer)
			result.Offer = &offer
		}

		if err := s.saveDefaults(ctx, defaults); err != nil {
			return err
		}
		if result.Offer != nil {
			if err := s.saveOffers(ctx, offers); err != nil {
				return err
			}
		}

		log.Info().Str("entry_id", entry.ID).Str("extension", ext).Str("state", string(state)).Msg("Default added")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// freeOfferID derives an offer id from name, suffixing a counter when taken.
// It returns "" when name yields no usable id.
func (s *Service) freeOfferID(offers *domain.OffersDocument, name string) string {
	base := offerSlugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	base = strings.Trim(base, "-_")
	base = strings.TrimLeft(base, "0123456789-_")
	if len(base) > maxOfferIDLength {
		base = strings.TrimRight(base[:maxOfferIDLength], "-_")
	}
	if !domain.ValidOfferID(base) {
		return ""
	}

	candidate := base
	for n := 2; offers.FindByID(candidate) != nil; n++ {
		suffix := fmt.Sprintf("-%d", n)
		trimmed := base
		if len(trimmed)+len(suffix) > maxOfferIDLength {
			trimmed = trimmed[:maxOfferIDLength-len(suffix)]
		}
		candidate = trimmed + suffix
	}
	return candidate
}

// Activate moves a pending entry to active. Removed entries cannot come back.
func (s *Service) Activate(ctx context.Context, id string) (*domain.DefaultEntry, error) {
	var activated domain.DefaultEntry
	err := s.withLock(ctx, "activate", func(defaults *domain.DefaultsDocument, _ *domain.OffersDocument) error {
		entry := defaults.FindByID(id)
		if entry == nil {
			return domain.NewAppError(domain.ErrNotFound, fmt.Sprintf("no default with id %s", id), nil)
		}

		switch entry.State {
		case domain.StateActive:
			activated = *entry
			return nil
		case domain.StateRemoved:
			return domain.NewAppError(domain.ErrConflict, fmt.Sprintf("default %s was removed and cannot be activated", id), nil)
		}

		if existing := s.detector.ActiveConflict(defaults.Defaults, entry.Extension, entry.ID); existing != nil {
			return domain.NewAppError(domain.ErrConflict,
				fmt.Sprintf("%s already has an active default (%s)", entry.Extension, existing.ID),
				map[string]any{"entry_id": existing.ID, "extension": entry.Extension})
		}

		entry.State = domain.StateActive
		entry.Touch(s.now())
		activated = *entry

		if err := s.saveDefaults(ctx, defaults); err != nil {
			return err
		}
		log.Info().Str("entry_id", id).Str("extension", entry.Extension).Msg("Default activated")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &activated, nil
}

// Remove marks every pending or active entry for extension as removed. The
// next sync unregisters and purges them.
func (s *Service) Remove(ctx context.Context, extension string) ([]domain.DefaultEntry, error) {
	ext := domain.NormalizeExtension(extension)

	var removed []domain.DefaultEntry
	err := s.withLock(ctx, "remove", func(defaults *domain.DefaultsDocument, _ *domain.OffersDocument) error {
		now := s.now()
		for i := range defaults.Defaults {
			entry := &defaults.Defaults[i]
			if entry.Extension != ext || entry.State == domain.StateRemoved {
				continue
			}
			entry.State = domain.StateRemoved
			entry.Touch(now)
			removed = append(removed, *entry)
		}
		if len(removed) == 0 {
			return domain.NewAppError(domain.ErrNotFound, fmt.Sprintf("no default recorded for %s", ext), nil)
		}

		if err := s.saveDefaults(ctx, defaults); err != nil {
			return err
		}
		log.Info().Str("extension", ext).Int("count", len(removed)).Msg("Defaults marked removed")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// CreateOffer adds a named alias for an existing, non-removed entry
func (s *Service) CreateOffer(ctx context.Context, offerID, defaultID, description string) (*domain.OfferEntry, error) {
	if !domain.ValidOfferID(offerID) {
		return nil, domain.NewAppError(domain.ErrValidationFailed, fmt.Sprintf("invalid offer id %q", offerID), map[string]any{"field": "offer_id"})
	}

	var created domain.OfferEntry
	err := s.withLock(ctx, "create_offer", func(defaults *domain.DefaultsDocument, offers *domain.OffersDocument) error {
		target := defaults.FindByID(defaultID)
		if target == nil || target.State == domain.StateRemoved {
			return domain.NewAppError(domain.ErrNotFound, fmt.Sprintf("no default with id %s", defaultID), nil)
		}
		if offers.FindByID(offerID) != nil {
			return domain.NewAppError(domain.ErrConflict, fmt.Sprintf("offer %s already exists", offerID), nil)
		}

		created = domain.OfferEntry{
			OfferID:     offerID,
			DefaultID:   defaultID,
			State:       domain.OfferCreated,
			Description: description,
			CreatedAt:   s.now().UTC(),
		}
		offers.Offers = append(offers.Offers, created)
		return s.saveOffers(ctx, offers)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// RejectOffer marks an offer rejected
func (s *Service) RejectOffer(ctx context.Context, offerID string) (*domain.OfferEntry, error) {
	var rejected domain.OfferEntry
	err := s.withLock(ctx, "reject_offer", func(_ *domain.DefaultsDocument, offers *domain.OffersDocument) error {
		offer := offers.FindByID(offerID)
		if offer == nil {
			return domain.NewAppError(domain.ErrNotFound, fmt.Sprintf("no offer %s", offerID), nil)
		}
		offer.State = domain.OfferRejected
		rejected = *offer
		return s.saveOffers(ctx, offers)
	})
	if err != nil {
		return nil, err
	}
	return &rejected, nil
}

// UseOffer records a use of the offer and returns it with the entry it names
func (s *Service) UseOffer(ctx context.Context, offerID string) (*domain.OfferEntry, *domain.DefaultEntry, error) {
	var (
		used  domain.OfferEntry
		entry domain.DefaultEntry
	)
	err := s.withLock(ctx, "use_offer", func(defaults *domain.DefaultsDocument, offers *domain.OffersDocument) error {
		offer := offers.FindByID(offerID)
		if offer == nil {
			return domain.NewAppError(domain.ErrNotFound, fmt.Sprintf("no offer %s", offerID), nil)
		}
		if offer.State == domain.OfferRejected {
			return domain.NewAppError(domain.ErrConflict, fmt.Sprintf("offer %s was rejected", offerID), nil)
		}
		target := defaults.FindByID(offer.DefaultID)
		if target == nil {
			return domain.NewAppError(domain.ErrNotFound, fmt.Sprintf("offer %s points at unknown default %s", offerID, offer.DefaultID), nil)
		}

		now := s.now().UTC()
		offer.UsedAt = &now
		offer.State = domain.OfferActive
		used = *offer
		entry = *target
		return s.saveOffers(ctx, offers)
	})
	if err != nil {
		return nil, nil, err
	}
	return &used, &entry, nil
}

// List returns both documents as currently stored
func (s *Service) List(ctx context.Context) (*Listing, error) {
	defaults, err := s.store.LoadDefaults(ctx)
	if err != nil {
		return nil, err
	}
	offers, err := s.store.LoadOffers(ctx)
	if err != nil {
		return nil, err
	}
	return &Listing{Defaults: defaults, Offers: offers}, nil
}

// Conflicts reports invariant violations in the stored documents
func (s *Service) Conflicts(ctx context.Context) (conflict.Report, error) {
	listing, err := s.List(ctx)
	if err != nil {
		return conflict.Report{}, err
	}
	return s.detector.Detect(listing.Defaults, listing.Offers), nil
}

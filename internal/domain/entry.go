package domain

import (
	"strings"
	"time"
)

// CurrentSchemaVersion is the document version written by this build
const CurrentSchemaVersion = "1.1.0"

// DefaultState is the lifecycle state of a DefaultEntry
type DefaultState string

const (
	// StatePending marks an entry created locally and never pushed to the OS
	StatePending DefaultState = "pending"
	// StateActive marks the entry intended to be the live OS default
	StateActive DefaultState = "active"
	// StateRemoved is terminal; the next sync pass unregisters and purges it
	StateRemoved DefaultState = "removed"
)

// OfferState is the lifecycle state of an OfferEntry
type OfferState string

const (
	OfferCreated  OfferState = "created"
	OfferActive   OfferState = "active"
	OfferRejected OfferState = "rejected"
)

// DefaultEntry is one intended extension to application association
type DefaultEntry struct {
	ID                string       `json:"id" validate:"required"`
	Extension         string       `json:"extension" validate:"required,extension"`
	ApplicationPath   string       `json:"application_path" validate:"required"`
	ApplicationName   string       `json:"application_name,omitempty"`
	State             DefaultState `json:"state" validate:"required,oneof=pending active removed"`
	OSSynced          bool         `json:"os_synced"`
	OSSyncedAt        *time.Time   `json:"os_synced_at,omitempty" validate:"required_if=OSSynced true"`
	PreviousOSDefault string       `json:"previous_os_default,omitempty"`
	LastError         string       `json:"last_error,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         *time.Time   `json:"updated_at,omitempty"`
}

// IsActive reports whether the entry is the intended live default
func (e *DefaultEntry) IsActive() bool {
	return e.State == StateActive
}

// Touch sets UpdatedAt to now
func (e *DefaultEntry) Touch(now time.Time) {
	t := now.UTC()
	e.UpdatedAt = &t
}

// OfferEntry is a named alias referencing a DefaultEntry by id
type OfferEntry struct {
	OfferID     string     `json:"offer_id" validate:"required,offer_id"`
	DefaultID   string     `json:"default_id" validate:"required"`
	State       OfferState `json:"state" validate:"required,oneof=created active rejected"`
	AutoCreated bool       `json:"auto_created"`
	Description string     `json:"description,omitempty" validate:"max=256"`
	CreatedAt   time.Time  `json:"created_at"`
	UsedAt      *time.Time `json:"used_at,omitempty"`
}

// DefaultsDocument is the persisted content of defaults.json
type DefaultsDocument struct {
	Version  string         `json:"version" validate:"required,semver"`
	Defaults []DefaultEntry `json:"defaults" validate:"dive"`
}

// OffersDocument is the persisted content of offers.json
type OffersDocument struct {
	Version string       `json:"version" validate:"required,semver"`
	Offers  []OfferEntry `json:"offers" validate:"dive"`
}

// NewDefaultsDocument returns an empty document at the current schema version
func NewDefaultsDocument() *DefaultsDocument {
	return &DefaultsDocument{Version: CurrentSchemaVersion, Defaults: []DefaultEntry{}}
}

// NewOffersDocument returns an empty document at the current schema version
func NewOffersDocument() *OffersDocument {
	return &OffersDocument{Version: CurrentSchemaVersion, Offers: []OfferEntry{}}
}

// Clone returns a deep copy of the document
func (d *DefaultsDocument) Clone() *DefaultsDocument {
	out := &DefaultsDocument{Version: d.Version, Defaults: make([]DefaultEntry, len(d.Defaults))}
	for i, entry := range d.Defaults {
		entry.OSSyncedAt = cloneTime(entry.OSSyncedAt)
		entry.UpdatedAt = cloneTime(entry.UpdatedAt)
		out.Defaults[i] = entry
	}
	return out
}

// FindByID returns the entry with the given id, or nil
func (d *DefaultsDocument) FindByID(id string) *DefaultEntry {
	for i := range d.Defaults {
		if d.Defaults[i].ID == id {
			return &d.Defaults[i]
		}
	}
	return nil
}

// ActiveFor returns the active entry for an extension, or nil
func (d *DefaultsDocument) ActiveFor(extension string) *DefaultEntry {
	for i := range d.Defaults {
		if d.Defaults[i].Extension == extension && d.Defaults[i].IsActive() {
			return &d.Defaults[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the document
func (d *OffersDocument) Clone() *OffersDocument {
	out := &OffersDocument{Version: d.Version, Offers: make([]OfferEntry, len(d.Offers))}
	for i, offer := range d.Offers {
		offer.UsedAt = cloneTime(offer.UsedAt)
		out.Offers[i] = offer
	}
	return out
}

// FindByID returns the offer with the given offer id, or nil
func (d *OffersDocument) FindByID(offerID string) *OfferEntry {
	for i := range d.Offers {
		if d.Offers[i].OfferID == offerID {
			return &d.Offers[i]
		}
	}
	return nil
}

// NormalizeExtension lowercases ext and ensures a single leading dot
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	ext = strings.TrimLeft(ext, ".")
	return "." + ext
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

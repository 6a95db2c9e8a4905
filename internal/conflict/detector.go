// Package conflict finds documents that break the cross-entry invariants:
// more than one active entry per extension, and offers pointing at entries
// that do not exist.
package conflict

import (
	"sort"

	"github.com/deadcoast/vince/internal/domain"
)

// DuplicateActive describes an extension claimed by several active entries
type DuplicateActive struct {
	Extension string   `json:"extension"`
	EntryIDs  []string `json:"entry_ids"`
}

// DanglingOffer describes an offer whose default_id matches no entry
type DanglingOffer struct {
	OfferID   string `json:"offer_id"`
	DefaultID string `json:"default_id"`
}

// Report collects every conflict found in a pair of documents
type Report struct {
	DuplicateActive []DuplicateActive `json:"duplicate_active"`
	DanglingOffers  []DanglingOffer   `json:"dangling_offers"`
}

// Empty reports whether no conflict was found
func (r Report) Empty() bool {
	return len(r.DuplicateActive) == 0 && len(r.DanglingOffers) == 0
}

// Detector identifies invariant violations across entries
type Detector struct{}

// NewDetector creates a new conflict detector
func NewDetector() *Detector {
	return &Detector{}
}

// Detect runs every check
func (d *Detector) Detect(defaults *domain.DefaultsDocument, offers *domain.OffersDocument) Report {
	return Report{
		DuplicateActive: d.DetectDuplicateActive(defaults.Defaults),
		DanglingOffers:  d.DetectDanglingOffers(offers.Offers, defaults.Defaults),
	}
}

// DetectDuplicateActive returns every extension with more than one active
// entry, sorted by extension
func (d *Detector) DetectDuplicateActive(entries []domain.DefaultEntry) []DuplicateActive {
	byExtension := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsActive() {
			byExtension[entry.Extension] = append(byExtension[entry.Extension], entry.ID)
		}
	}

	duplicates := make([]DuplicateActive, 0)
	for ext, ids := range byExtension {
		if len(ids) > 1 {
			duplicates = append(duplicates, DuplicateActive{Extension: ext, EntryIDs: ids})
		}
	}
	sort.Slice(duplicates, func(i, j int) bool { return duplicates[i].Extension < duplicates[j].Extension })
	return duplicates
}

// DetectDanglingOffers returns offers whose default_id is unknown, in offer order
func (d *Detector) DetectDanglingOffers(offers []domain.OfferEntry, entries []domain.DefaultEntry) []DanglingOffer {
	known := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		known[entry.ID] = struct{}{}
	}

	dangling := make([]DanglingOffer, 0)
	for _, offer := range offers {
		if _, ok := known[offer.DefaultID]; !ok {
			dangling = append(dangling, DanglingOffer{OfferID: offer.OfferID, DefaultID: offer.DefaultID})
		}
	}
	return dangling
}

// ActiveConflict returns the active entry for extension other than exceptID,
// or nil. Activating exceptID would duplicate it.
func (d *Detector) ActiveConflict(entries []domain.DefaultEntry, extension, exceptID string) *domain.DefaultEntry {
	for i := range entries {
		if entries[i].ID != exceptID && entries[i].Extension == extension && entries[i].IsActive() {
			return &entries[i]
		}
	}
	return nil
}

package domain

import "context"

// DefaultsRepository defines the contract for defaults document storage
type DefaultsRepository interface {
	LoadDefaults(ctx context.Context) (*DefaultsDocument, error)
	SaveDefaults(ctx context.Context, doc *DefaultsDocument) error
}

// OffersRepository defines the contract for offers document storage
type OffersRepository interface {
	LoadOffers(ctx context.Context) (*OffersDocument, error)
	SaveOffers(ctx context.Context, doc *OffersDocument) error
}

// Locker serializes load-modify-save cycles across processes
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// DocumentStore combines both repositories with the advisory lock
type DocumentStore interface {
	DefaultsRepository
	OffersRepository
	Locker

	HealthCheck(ctx context.Context) HealthStatus
}

// HealthChecker defines the interface for system health monitoring
type HealthChecker interface {
	CheckHealth(ctx context.Context) SystemHealth
}

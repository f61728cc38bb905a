// Package models holds the typed domain records of the consent system.
// Adapters traffic in generic rows; these types are the application-facing
// shape, decoded at the entity-adapter boundary.
package models

import (
	"time"
)

// User is the identity anchor. Anonymous visitors get a user row too;
// IsIdentified distinguishes them from users linked to an external identity
// system. Users are never hard-deleted.
type User struct {
	ID               string
	IsIdentified     bool
	ExternalID       string
	IdentityProvider string
	LastIPAddress    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Domain is a site or property consent applies to. Name may be a wildcard
// pattern; ParentDomainID supports hierarchies.
type Domain struct {
	ID             string
	Name           string
	Description    string
	AllowedOrigins []string
	IsVerified     bool
	IsActive       bool
	ParentDomainID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Purpose is a named reason for data processing. Once referenced by a
// consent it is immutable except for metadata fields.
type Purpose struct {
	ID           string
	Code         string
	Name         string
	Description  string
	IsEssential  bool
	DataCategory string
	LegalBasis   string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Policy is a versioned legal text. Append-only: new versions never
// overwrite old ones.
type Policy struct {
	ID             string
	Version        string
	Name           string
	EffectiveDate  time.Time
	ExpirationDate *time.Time
	Content        string
	ContentHash    string
	IsActive       bool
	CreatedAt      time.Time
}

// Consent is the central record: user × domain × preference map × policy
// version. At most one row per (user, domain) is active at a time.
type Consent struct {
	ID          string
	UserID      string
	DomainID    string
	PolicyID    string
	Status      string
	Preferences map[string]any
	Metadata    map[string]any
	IPAddress   string
	UserAgent   string
	IsActive    bool
	GivenAt     time.Time
	ValidUntil  *time.Time
	WithdrawnAt *time.Time
}

// PurposeJunction links a consent to a purpose with the per-purpose
// acceptance flag, so acceptance can be queried without parsing the
// preference blob.
type PurposeJunction struct {
	ID         string
	ConsentID  string
	PurposeID  string
	IsAccepted bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Record is an immutable evidence row attached to a consent: what happened,
// how, from where.
type Record struct {
	ID         string
	UserID     string
	ConsentID  string
	ActionType string
	Details    map[string]any
	CreatedAt  time.Time
}

// Withdrawal captures the revocation event of a consent.
type Withdrawal struct {
	ID               string
	ConsentID        string
	UserID           string
	WithdrawalReason string
	WithdrawalMethod string
	IPAddress        string
	UserAgent        string
	Metadata         map[string]any
	CreatedAt        time.Time
}

// AuditLog is the system-wide before/after change ledger, keyed by resource
// type and id, independent of the consent-specific evidence trail.
type AuditLog struct {
	ID         string
	EntityType string
	EntityID   string
	ActionType string
	UserID     string
	Changes    map[string]any
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
}

// GeoLocation is a country/region with its applicable regulatory zones.
type GeoLocation struct {
	ID              string
	CountryCode     string
	CountryName     string
	RegionCode      string
	RegionName      string
	RegulatoryZones []string
	CreatedAt       time.Time
}

// ConsentWithUser is the joined read shape for receipt and lookup paths.
type ConsentWithUser struct {
	Consent Consent
	User    User
}

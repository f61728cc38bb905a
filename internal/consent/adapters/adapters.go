// Package adapters provides one thin, typed façade per entity over the hook
// pipeline. No entity adapter talks to a database directly; everything goes
// through the generic contract, so the set works unchanged against the
// in-memory backend and every SQL dialect.
package adapters

import (
	"fmt"

	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
	"koroflow/internal/schema"
	dErrors "koroflow/pkg/domain-errors"
	"koroflow/pkg/platform/sentinel"
)

// errNoActivePolicy is a NotFound with a usable message for the common
// misconfiguration of consenting before any policy exists.
var errNoActivePolicy = fmt.Errorf("no active consent policy: %w", sentinel.ErrNotFound)

// Set bundles the entity adapters over one pipeline.
type Set struct {
	pipeline *hooks.Pipeline

	Users        *Users
	Domains      *Domains
	Purposes     *Purposes
	Policies     *Policies
	Consents     *Consents
	Junctions    *Junctions
	Records      *Records
	Withdrawals  *Withdrawals
	AuditLogs    *AuditLogs
	GeoLocations *GeoLocations
}

func New(pipeline *hooks.Pipeline) *Set {
	s := &Set{pipeline: pipeline}
	s.Users = &Users{p: pipeline}
	s.Domains = &Domains{p: pipeline}
	s.Purposes = &Purposes{p: pipeline}
	s.Policies = &Policies{p: pipeline}
	s.Consents = &Consents{p: pipeline}
	s.Junctions = &Junctions{p: pipeline}
	s.Records = &Records{p: pipeline}
	s.Withdrawals = &Withdrawals{p: pipeline}
	s.AuditLogs = &AuditLogs{p: pipeline}
	s.GeoLocations = &GeoLocations{p: pipeline}
	return s
}

// Pipeline exposes the underlying pipeline for workflow-level hook
// registration.
func (s *Set) Pipeline() *hooks.Pipeline { return s.pipeline }

// errVetoed converts a hook rejection (nil result, nil error) into the typed
// error callers can branch on.
func errVetoed(entity string) error {
	return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("%s mutation rejected by hook", entity))
}

// putIf adds a key only when the value is non-zero, letting schema defaults
// and NULLs do their work.
func putIf(row database.Row, key string, value any) {
	switch v := value.(type) {
	case string:
		if v != "" {
			row[key] = v
		}
	case []string:
		if len(v) > 0 {
			row[key] = v
		}
	case map[string]any:
		if len(v) > 0 {
			row[key] = v
		}
	default:
		if value != nil {
			row[key] = value
		}
	}
}

// reads returns the raw adapter used for hook-free read paths.
func reads(p *hooks.Pipeline) database.Adapter { return p.Adapter() }

// entity name aliases keep call sites short.
const (
	modelUser       = schema.EntityUser
	modelDomain     = schema.EntityDomain
	modelPurpose    = schema.EntityPurpose
	modelPolicy     = schema.EntityPolicy
	modelConsent    = schema.EntityConsent
	modelJunction   = schema.EntityPurposeJunction
	modelRecord     = schema.EntityRecord
	modelWithdrawal = schema.EntityWithdrawal
	modelAuditLog   = schema.EntityAuditLog
	modelGeo        = schema.EntityGeoLocation
	modelConsentGeo = schema.EntityConsentGeo
)

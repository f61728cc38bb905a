// Package service implements the consent workflow: the multi-entity
// operations (grant, withdraw, receipt, verification) that keep the
// one-active-consent invariant and the evidence trail consistent. All
// storage goes through the entity adapters; each mutating operation runs
// inside one unit of work.
package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"koroflow/internal/audit"
	"koroflow/internal/consent/adapters"
	"koroflow/internal/consent/metrics"
	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	dErrors "koroflow/pkg/domain-errors"
	"koroflow/pkg/platform/sentinel"
)

// Service orchestrates consent state transitions.
type Service struct {
	set     *adapters.Set
	runner  database.Runner
	secret  []byte
	metrics *metrics.Metrics
	fanout  *audit.Worker
	log     *log.Logger
}

// New wires the workflow. The fanout worker may be nil when no broker is
// configured; metrics may be nil in tests.
func New(set *adapters.Set, runner database.Runner, secret []byte, m *metrics.Metrics, fanout *audit.Worker, logger *log.Logger) *Service {
	return &Service{
		set:     set,
		runner:  runner,
		secret:  secret,
		metrics: m,
		fanout:  fanout,
		log:     logger,
	}
}

// txSet rebinds the entity adapters to a transaction-scoped raw adapter,
// keeping the registered hook chains.
func (s *Service) txSet(a database.Adapter) *adapters.Set {
	return adapters.New(s.set.Pipeline().WithAdapter(a))
}

// SetConsentRequest carries one grant. Exactly one of SubjectID and
// ExternalID identifies a returning user; both empty means an anonymous
// visitor and a fresh user row.
type SetConsentRequest struct {
	SubjectID   string
	ExternalID  string
	Domain      string
	Preferences map[string]bool
	PolicyID    string
	Metadata    map[string]any
	IPAddress   string
	UserAgent   string
	CountryCode string
	RegionCode  string
}

// SetConsentResult reports the new consent and whether it replaced a prior
// active one for the same user and domain.
type SetConsentResult struct {
	Consent  models.Consent
	Replaced bool
}

// SetConsent grants or replaces the consent of one user on one domain.
// Preference keys are purpose codes; unknown codes are registered on first
// use. At most one consent per (user, domain) pair stays active: any prior
// active row is superseded in the same unit of work that inserts the new
// one.
func (s *Service) SetConsent(ctx context.Context, req SetConsentRequest) (SetConsentResult, error) {
	start := time.Now()
	defer s.observe(func(m *metrics.Metrics) { m.ObserveSetConsent(start) })

	if req.Domain == "" {
		return SetConsentResult{}, dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	if len(req.Preferences) == 0 {
		return SetConsentResult{}, dErrors.New(dErrors.CodeValidation, "at least one preference is required")
	}
	for code := range req.Preferences {
		if code == "" {
			return SetConsentResult{}, dErrors.New(dErrors.CodeValidation, "preference keys must be non-empty purpose codes")
		}
	}
	if req.SubjectID != "" && req.ExternalID != "" {
		return SetConsentResult{}, dErrors.New(dErrors.CodeValidation, "subjectId and externalId are mutually exclusive")
	}

	policy, err := s.resolvePolicy(ctx, req.PolicyID)
	if err != nil {
		return SetConsentResult{}, coded(err)
	}

	// Purpose registration happens outside the unit of work: purposes are
	// shared reference data, not part of the per-user consent state.
	purposeIDs, err := s.resolvePurposes(ctx, req.Preferences)
	if err != nil {
		return SetConsentResult{}, coded(err)
	}

	ctx = database.WithTxKey(ctx, s.lockKey(req.SubjectID, req.ExternalID))

	var result SetConsentResult
	err = s.runner.RunInTx(ctx, func(ctx context.Context, a database.Adapter) error {
		set := s.txSet(a)

		user, err := s.resolveUser(ctx, set, req)
		if err != nil {
			return err
		}
		domain, err := set.Domains.FindOrCreate(ctx, req.Domain)
		if err != nil {
			return err
		}

		prior, err := set.Consents.FindActive(ctx, user.ID, domain.ID)
		replaced := err == nil
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if replaced {
			if _, err := set.Consents.Deactivate(ctx, user.ID, domain.ID); err != nil {
				return err
			}
		}

		preferences := make(map[string]any, len(req.Preferences))
		for code, accepted := range req.Preferences {
			preferences[code] = accepted
		}
		consent, err := set.Consents.Create(ctx, models.Consent{
			UserID:      user.ID,
			DomainID:    domain.ID,
			PolicyID:    policy.ID,
			Status:      "active",
			Preferences: preferences,
			Metadata:    req.Metadata,
			IPAddress:   req.IPAddress,
			UserAgent:   req.UserAgent,
		})
		if err != nil {
			return err
		}

		for _, code := range sortedKeys(req.Preferences) {
			if _, err := set.Junctions.Link(ctx, consent.ID, purposeIDs[code], req.Preferences[code]); err != nil {
				return err
			}
		}

		action := "consent_given"
		if replaced {
			action = "consent_updated"
		}
		details := deviceDetails(req.UserAgent)
		details["replaced"] = replaced
		if _, err := set.Records.Create(ctx, models.Record{
			UserID:     user.ID,
			ConsentID:  consent.ID,
			ActionType: action,
			Details:    details,
		}); err != nil {
			return err
		}

		changes := map[string]any{"new": consentSummary(consent)}
		auditAction := "create"
		if replaced {
			auditAction = "update"
			changes["old"] = consentSummary(prior)
		}
		if _, err := set.AuditLogs.Create(ctx, models.AuditLog{
			EntityType: "consent",
			EntityID:   consent.ID,
			ActionType: auditAction,
			UserID:     user.ID,
			Changes:    changes,
			IPAddress:  req.IPAddress,
			UserAgent:  req.UserAgent,
		}); err != nil {
			return err
		}

		if req.CountryCode != "" {
			geo, err := set.GeoLocations.UpsertByCountry(ctx, models.GeoLocation{
				CountryCode: req.CountryCode,
				RegionCode:  req.RegionCode,
			})
			if err != nil {
				return err
			}
			if err := set.GeoLocations.LinkConsent(ctx, consent.ID, geo.ID); err != nil {
				return err
			}
		}

		result = SetConsentResult{Consent: consent, Replaced: replaced}
		return nil
	})
	if err != nil {
		s.countVeto(err)
		return SetConsentResult{}, coded(err)
	}

	s.observe(func(m *metrics.Metrics) { m.IncrementGranted() })
	s.broadcast(audit.Event{
		EntityType: "consent",
		EntityID:   result.Consent.ID,
		ActionType: grantAction(result.Replaced),
		UserID:     result.Consent.UserID,
		Changes:    map[string]any{"new": consentSummary(result.Consent)},
		OccurredAt: time.Now().UTC(),
	})
	return result, nil
}

// WithdrawConsentRequest revokes a consent, addressed either directly by id
// or by the subject and domain of the active consent.
type WithdrawConsentRequest struct {
	ConsentID  string
	SubjectID  string
	ExternalID string
	Domain     string
	Reason     string
	Method     string
	Metadata   map[string]any
	IPAddress  string
	UserAgent  string
}

// WithdrawConsent revokes a consent and records the withdrawal event and
// its evidence. Withdrawing an already inactive consent is a conflict, not
// an idempotent no-op: the caller is operating on stale state and should
// re-read.
func (s *Service) WithdrawConsent(ctx context.Context, req WithdrawConsentRequest) (models.Withdrawal, error) {
	start := time.Now()
	defer s.observe(func(m *metrics.Metrics) { m.ObserveWithdraw(start) })

	consent, err := s.resolveConsent(ctx, req)
	if err != nil {
		return models.Withdrawal{}, coded(err)
	}
	if !consent.IsActive {
		return models.Withdrawal{}, dErrors.New(dErrors.CodeConflict, "consent is already inactive")
	}

	ctx = database.WithTxKey(ctx, consent.UserID)

	var withdrawal models.Withdrawal
	err = s.runner.RunInTx(ctx, func(ctx context.Context, a database.Adapter) error {
		set := s.txSet(a)

		// Re-read inside the lock so two racing withdrawals cannot both
		// pass the active check.
		current, err := set.Consents.FindByID(ctx, consent.ID)
		if err != nil {
			return err
		}
		if !current.IsActive {
			return dErrors.New(dErrors.CodeConflict, "consent is already inactive")
		}

		now := time.Now().UTC()
		revoked, err := set.Consents.Revoke(ctx, current.ID, now)
		if err != nil {
			return err
		}

		withdrawal, err = set.Withdrawals.Create(ctx, models.Withdrawal{
			ConsentID:        revoked.ID,
			UserID:           revoked.UserID,
			WithdrawalReason: req.Reason,
			WithdrawalMethod: req.Method,
			IPAddress:        req.IPAddress,
			UserAgent:        req.UserAgent,
			Metadata:         req.Metadata,
		})
		if err != nil {
			return err
		}

		details := deviceDetails(req.UserAgent)
		if req.Reason != "" {
			details["reason"] = req.Reason
		}
		if _, err := set.Records.Create(ctx, models.Record{
			UserID:     revoked.UserID,
			ConsentID:  revoked.ID,
			ActionType: "consent_withdrawn",
			Details:    details,
		}); err != nil {
			return err
		}

		_, err = set.AuditLogs.Create(ctx, models.AuditLog{
			EntityType: "consent",
			EntityID:   revoked.ID,
			ActionType: "update",
			UserID:     revoked.UserID,
			Changes: map[string]any{
				"old": consentSummary(current),
				"new": consentSummary(revoked),
			},
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		})
		return err
	})
	if err != nil {
		s.countVeto(err)
		return models.Withdrawal{}, coded(err)
	}

	s.observe(func(m *metrics.Metrics) { m.IncrementWithdrawn() })
	s.broadcast(audit.Event{
		EntityType: "consent",
		EntityID:   consent.ID,
		ActionType: "withdraw",
		UserID:     consent.UserID,
		OccurredAt: time.Now().UTC(),
	})
	return withdrawal, nil
}

// VerifyConsent reports whether the subject holds an active consent on the
// domain that accepts the given purpose code. Each check leaves an evidence
// record; a failure to write it never fails the check itself.
func (s *Service) VerifyConsent(ctx context.Context, subjectID, externalID, domainName, purposeCode string) (bool, error) {
	user, err := s.lookupUser(ctx, subjectID, externalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, coded(err)
	}

	verified, err := s.checkConsent(ctx, user.ID, domainName, purposeCode)
	if err != nil {
		return false, coded(err)
	}

	if _, err := s.set.Records.Create(ctx, models.Record{
		UserID:     user.ID,
		ActionType: "consent_verified",
		Details:    map[string]any{"domain": domainName, "purpose": purposeCode, "verified": verified},
	}); err != nil && s.log != nil {
		s.log.Printf("record consent verification for %s: %v", user.ID, err)
	}
	return verified, nil
}

// checkConsent answers the verification question; a missing domain or
// consent is a plain "no", not an error.
func (s *Service) checkConsent(ctx context.Context, userID, domainName, purposeCode string) (bool, error) {
	domain, err := s.set.Domains.FindByName(ctx, domainName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	consent, err := s.set.Consents.FindActive(ctx, userID, domain.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if consent.ValidUntil != nil && consent.ValidUntil.Before(time.Now().UTC()) {
		return false, nil
	}
	accepted, ok := consent.Preferences[purposeCode].(bool)
	return ok && accepted, nil
}

// ListUserConsents returns a user's consent history, newest first.
func (s *Service) ListUserConsents(ctx context.Context, subjectID, externalID string, limit, offset int) ([]models.Consent, error) {
	user, err := s.lookupUser(ctx, subjectID, externalID)
	if err != nil {
		return nil, coded(err)
	}
	consents, err := s.set.Consents.FindUserConsents(ctx, user.ID, limit, offset)
	return consents, coded(err)
}

func (s *Service) resolvePolicy(ctx context.Context, policyID string) (models.Policy, error) {
	if policyID != "" {
		return s.set.Policies.FindByID(ctx, policyID)
	}
	return s.set.Policies.FindActive(ctx)
}

func (s *Service) resolvePurposes(ctx context.Context, preferences map[string]bool) (map[string]string, error) {
	ids := make(map[string]string, len(preferences))
	for _, code := range sortedKeys(preferences) {
		purpose, err := s.set.Purposes.FindOrCreateByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		ids[code] = purpose.ID
	}
	return ids, nil
}

func (s *Service) resolveUser(ctx context.Context, set *adapters.Set, req SetConsentRequest) (models.User, error) {
	switch {
	case req.SubjectID != "":
		user, err := set.Users.FindByID(ctx, req.SubjectID)
		if err != nil {
			return models.User{}, err
		}
		if req.IPAddress != "" && req.IPAddress != user.LastIPAddress {
			return set.Users.Touch(ctx, user.ID, req.IPAddress)
		}
		return user, nil
	case req.ExternalID != "":
		user, err := set.Users.FindByExternalID(ctx, req.ExternalID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return models.User{}, err
		}
		return set.Users.Create(ctx, models.User{
			IsIdentified:  true,
			ExternalID:    req.ExternalID,
			LastIPAddress: req.IPAddress,
		})
	default:
		return set.Users.Create(ctx, models.User{LastIPAddress: req.IPAddress})
	}
}

func (s *Service) resolveConsent(ctx context.Context, req WithdrawConsentRequest) (models.Consent, error) {
	if req.ConsentID != "" {
		return s.set.Consents.FindByID(ctx, req.ConsentID)
	}
	if req.Domain == "" {
		return models.Consent{}, dErrors.New(dErrors.CodeValidation, "consentId or subject and domain required")
	}
	user, err := s.lookupUser(ctx, req.SubjectID, req.ExternalID)
	if err != nil {
		return models.Consent{}, err
	}
	domain, err := s.set.Domains.FindByName(ctx, req.Domain)
	if err != nil {
		return models.Consent{}, err
	}
	return s.set.Consents.FindActive(ctx, user.ID, domain.ID)
}

func (s *Service) lookupUser(ctx context.Context, subjectID, externalID string) (models.User, error) {
	switch {
	case subjectID != "":
		return s.set.Users.FindByID(ctx, subjectID)
	case externalID != "":
		return s.set.Users.FindByExternalID(ctx, externalID)
	default:
		return models.User{}, dErrors.New(dErrors.CodeValidation, "subjectId or externalId required")
	}
}

func (s *Service) lockKey(subjectID, externalID string) string {
	if subjectID != "" {
		return subjectID
	}
	return externalID
}

func (s *Service) observe(fn func(m *metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}

func (s *Service) countVeto(err error) {
	if s.metrics != nil && dErrors.HasCode(err, dErrors.CodeInvalidState) {
		s.metrics.IncrementHookVeto()
	}
}

func (s *Service) broadcast(event audit.Event) {
	if s.fanout != nil {
		s.fanout.Enqueue(event)
	}
}

// coded translates infrastructure sentinels into coded errors at the
// workflow boundary. Already-coded errors pass through untouched.
func coded(err error) error {
	if err == nil {
		return nil
	}
	var e *dErrors.Error
	if errors.As(err, &e) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "resource not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "resource conflict")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "invalid state")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "storage failure")
	}
}

func grantAction(replaced bool) string {
	if replaced {
		return "update"
	}
	return "create"
}

// consentSummary is the compact form stored in audit change sets.
func consentSummary(c models.Consent) map[string]any {
	return map[string]any{
		"id":          c.ID,
		"status":      c.Status,
		"policyId":    c.PolicyID,
		"preferences": c.Preferences,
		"isActive":    c.IsActive,
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

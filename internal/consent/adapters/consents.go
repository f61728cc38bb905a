package adapters

import (
	"context"
	"time"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
)

// Consents persists the central user × domain consent records and enforces
// the read/write surface the workflow builds on. The one-active-per-pair
// invariant is coordinated by the workflow; this adapter supplies the
// primitives (FindActive, Deactivate, Revoke) it needs.
type Consents struct {
	p *hooks.Pipeline
}

func (a *Consents) Create(ctx context.Context, c models.Consent) (models.Consent, error) {
	payload := database.Row{
		"userId":   c.UserID,
		"domainId": c.DomainID,
		"policyId": c.PolicyID,
		"status":   c.Status,
		"isActive": true,
	}
	putIf(payload, "preferences", c.Preferences)
	putIf(payload, "metadata", c.Metadata)
	putIf(payload, "ipAddress", c.IPAddress)
	putIf(payload, "userAgent", c.UserAgent)
	if !c.GivenAt.IsZero() {
		payload["givenAt"] = c.GivenAt
	}
	if c.ValidUntil != nil {
		payload["validUntil"] = *c.ValidUntil
	}

	row, err := a.p.CreateWithHooks(ctx, modelConsent, payload, nil)
	if err != nil {
		return models.Consent{}, err
	}
	if row == nil {
		return models.Consent{}, errVetoed(modelConsent)
	}
	return models.ConsentFromRow(row), nil
}

func (a *Consents) FindByID(ctx context.Context, id string) (models.Consent, error) {
	row, err := reads(a.p).FindOne(ctx, modelConsent, database.Eq("id", id), nil)
	if err != nil {
		return models.Consent{}, err
	}
	return models.ConsentFromRow(row), nil
}

// FindActive returns the single active consent for a user on a domain, or a
// not-found error when none is in force.
func (a *Consents) FindActive(ctx context.Context, userID, domainID string) (models.Consent, error) {
	where := database.Where{
		{Field: "userId", Value: userID, Operator: database.OpEq},
		{Field: "domainId", Value: domainID, Operator: database.OpEq},
		{Field: "isActive", Value: true, Operator: database.OpEq},
	}
	row, err := reads(a.p).FindOne(ctx, modelConsent, where, nil)
	if err != nil {
		return models.Consent{}, err
	}
	return models.ConsentFromRow(row), nil
}

// FindUserConsents lists a user's consents newest first, active and
// withdrawn alike.
func (a *Consents) FindUserConsents(ctx context.Context, userID string, limit, offset int) ([]models.Consent, error) {
	rows, err := reads(a.p).FindMany(ctx, modelConsent, database.FindManyOptions{
		Where:  database.Eq("userId", userID),
		Limit:  limit,
		Offset: offset,
		SortBy: &database.Sort{Field: "givenAt", Direction: database.Desc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Consent, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ConsentFromRow(row))
	}
	return out, nil
}

// FindWithUser loads a consent together with its user, the joined shape the
// receipt path needs.
func (a *Consents) FindWithUser(ctx context.Context, id string) (models.ConsentWithUser, error) {
	consent, err := a.FindByID(ctx, id)
	if err != nil {
		return models.ConsentWithUser{}, err
	}
	userRow, err := reads(a.p).FindOne(ctx, modelUser, database.Eq("id", consent.UserID), nil)
	if err != nil {
		return models.ConsentWithUser{}, err
	}
	return models.ConsentWithUser{
		Consent: consent,
		User:    models.UserFromRow(userRow),
	}, nil
}

// Revoke marks one consent withdrawn as of the given instant.
func (a *Consents) Revoke(ctx context.Context, id string, at time.Time) (models.Consent, error) {
	change := database.Row{
		"status":      "withdrawn",
		"isActive":    false,
		"withdrawnAt": at,
	}
	row, err := a.p.UpdateWithHooks(ctx, modelConsent, database.Eq("id", id), change)
	if err != nil {
		return models.Consent{}, err
	}
	if row == nil {
		return models.Consent{}, errVetoed(modelConsent)
	}
	return models.ConsentFromRow(row), nil
}

// Deactivate supersedes every active consent of the pair, returning the rows
// it turned off. Used before inserting a replacement so the one-active
// invariant holds across the swap.
func (a *Consents) Deactivate(ctx context.Context, userID, domainID string) ([]models.Consent, error) {
	where := database.Where{
		{Field: "userId", Value: userID, Operator: database.OpEq},
		{Field: "domainId", Value: domainID, Operator: database.OpEq},
		{Field: "isActive", Value: true, Operator: database.OpEq},
	}
	change := database.Row{"status": "superseded", "isActive": false}
	rows, ok, err := a.p.UpdateManyWithHooks(ctx, modelConsent, where, change)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errVetoed(modelConsent)
	}
	out := make([]models.Consent, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.ConsentFromRow(row))
	}
	return out, nil
}

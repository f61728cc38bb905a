package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
)

// Policies persists versioned legal texts. The table is append-only: a new
// version is a new row, old versions are never rewritten.
type Policies struct {
	p *hooks.Pipeline
}

func (a *Policies) Create(ctx context.Context, p models.Policy) (models.Policy, error) {
	hash := p.ContentHash
	if hash == "" {
		sum := sha256.Sum256([]byte(p.Content))
		hash = hex.EncodeToString(sum[:])
	}
	payload := database.Row{
		"version":     p.Version,
		"name":        p.Name,
		"content":     p.Content,
		"contentHash": hash,
	}
	if !p.EffectiveDate.IsZero() {
		payload["effectiveDate"] = p.EffectiveDate
	}
	if p.ExpirationDate != nil {
		payload["expirationDate"] = *p.ExpirationDate
	}

	row, err := a.p.CreateWithHooks(ctx, modelPolicy, payload, nil)
	if err != nil {
		return models.Policy{}, err
	}
	if row == nil {
		return models.Policy{}, errVetoed(modelPolicy)
	}
	return models.PolicyFromRow(row), nil
}

func (a *Policies) FindByID(ctx context.Context, id string) (models.Policy, error) {
	row, err := reads(a.p).FindOne(ctx, modelPolicy, database.Eq("id", id), nil)
	if err != nil {
		return models.Policy{}, err
	}
	return models.PolicyFromRow(row), nil
}

// FindActive returns the policy version currently in force: the active row
// with the latest effective date.
func (a *Policies) FindActive(ctx context.Context) (models.Policy, error) {
	rows, err := reads(a.p).FindMany(ctx, modelPolicy, database.FindManyOptions{
		Where:  database.Eq("isActive", true),
		Limit:  1,
		SortBy: &database.Sort{Field: "effectiveDate", Direction: database.Desc},
	})
	if err != nil {
		return models.Policy{}, err
	}
	if len(rows) == 0 {
		return models.Policy{}, errNoActivePolicy
	}
	return models.PolicyFromRow(rows[0]), nil
}

// ListVersions returns the full policy history, newest first.
func (a *Policies) ListVersions(ctx context.Context) ([]models.Policy, error) {
	rows, err := reads(a.p).FindMany(ctx, modelPolicy, database.FindManyOptions{
		SortBy: &database.Sort{Field: "effectiveDate", Direction: database.Desc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Policy, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.PolicyFromRow(row))
	}
	return out, nil
}

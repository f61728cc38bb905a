package adapters

import (
	"context"
	"errors"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
	"koroflow/pkg/platform/sentinel"
)

// Purposes persists the named data-processing reasons subject to consent.
type Purposes struct {
	p *hooks.Pipeline
}

func (a *Purposes) Create(ctx context.Context, p models.Purpose) (models.Purpose, error) {
	payload := database.Row{
		"code":        p.Code,
		"name":        p.Name,
		"description": p.Description,
		"isEssential": p.IsEssential,
	}
	putIf(payload, "dataCategory", p.DataCategory)
	putIf(payload, "legalBasis", p.LegalBasis)

	row, err := a.p.CreateWithHooks(ctx, modelPurpose, payload, nil)
	if err != nil {
		return models.Purpose{}, err
	}
	if row == nil {
		return models.Purpose{}, errVetoed(modelPurpose)
	}
	return models.PurposeFromRow(row), nil
}

func (a *Purposes) FindByID(ctx context.Context, id string) (models.Purpose, error) {
	row, err := reads(a.p).FindOne(ctx, modelPurpose, database.Eq("id", id), nil)
	if err != nil {
		return models.Purpose{}, err
	}
	return models.PurposeFromRow(row), nil
}

func (a *Purposes) FindByCode(ctx context.Context, code string) (models.Purpose, error) {
	row, err := reads(a.p).FindOne(ctx, modelPurpose, database.Eq("code", code), nil)
	if err != nil {
		return models.Purpose{}, err
	}
	return models.PurposeFromRow(row), nil
}

// FindOrCreateByCode returns the purpose for a preference key, registering a
// minimal definition on first use.
func (a *Purposes) FindOrCreateByCode(ctx context.Context, code string) (models.Purpose, error) {
	found, err := a.FindByCode(ctx, code)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Purpose{}, err
	}
	return a.Create(ctx, models.Purpose{
		Code:        code,
		Name:        code,
		Description: "Auto-registered purpose: " + code,
	})
}

// ListActive returns all purposes currently accepting consents.
func (a *Purposes) ListActive(ctx context.Context) ([]models.Purpose, error) {
	rows, err := reads(a.p).FindMany(ctx, modelPurpose, database.FindManyOptions{
		Where:  database.Eq("isActive", true),
		SortBy: &database.Sort{Field: "code", Direction: database.Asc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Purpose, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.PurposeFromRow(row))
	}
	return out, nil
}

// UpdateMetadata rewrites the mutable metadata of a purpose. Code,
// isEssential, and legalBasis stay immutable once the purpose is referenced
// by a consent; the workflow enforces that rule.
func (a *Purposes) UpdateMetadata(ctx context.Context, id string, name, description, dataCategory string) (models.Purpose, error) {
	change := database.Row{}
	putIf(change, "name", name)
	putIf(change, "description", description)
	putIf(change, "dataCategory", dataCategory)
	row, err := a.p.UpdateWithHooks(ctx, modelPurpose, database.Eq("id", id), change)
	if err != nil {
		return models.Purpose{}, err
	}
	if row == nil {
		return models.Purpose{}, errVetoed(modelPurpose)
	}
	return models.PurposeFromRow(row), nil
}

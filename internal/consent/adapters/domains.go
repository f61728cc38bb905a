package adapters

import (
	"context"
	"errors"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
	"koroflow/pkg/platform/sentinel"
	pstrings "koroflow/pkg/platform/strings"
)

// Domains persists the sites and properties consent applies to.
type Domains struct {
	p *hooks.Pipeline
}

func (a *Domains) Create(ctx context.Context, d models.Domain) (models.Domain, error) {
	payload := database.Row{"name": d.Name}
	putIf(payload, "description", d.Description)
	putIf(payload, "allowedOrigins", pstrings.DedupeAndTrim(d.AllowedOrigins))
	putIf(payload, "parentDomainId", d.ParentDomainID)
	payload["isVerified"] = d.IsVerified
	payload["isActive"] = true

	row, err := a.p.CreateWithHooks(ctx, modelDomain, payload, nil)
	if err != nil {
		return models.Domain{}, err
	}
	if row == nil {
		return models.Domain{}, errVetoed(modelDomain)
	}
	return models.DomainFromRow(row), nil
}

func (a *Domains) FindByID(ctx context.Context, id string) (models.Domain, error) {
	row, err := reads(a.p).FindOne(ctx, modelDomain, database.Eq("id", id), nil)
	if err != nil {
		return models.Domain{}, err
	}
	return models.DomainFromRow(row), nil
}

func (a *Domains) FindByName(ctx context.Context, name string) (models.Domain, error) {
	row, err := reads(a.p).FindOne(ctx, modelDomain, database.Eq("name", name), nil)
	if err != nil {
		return models.Domain{}, err
	}
	return models.DomainFromRow(row), nil
}

// FindOrCreate returns the domain by name, creating it on first use.
func (a *Domains) FindOrCreate(ctx context.Context, name string) (models.Domain, error) {
	found, err := a.FindByName(ctx, name)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.Domain{}, err
	}
	return a.Create(ctx, models.Domain{Name: name})
}

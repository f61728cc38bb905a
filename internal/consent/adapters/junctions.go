package adapters

import (
	"context"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
)

// Junctions links consents to purposes with the per-purpose acceptance flag.
type Junctions struct {
	p *hooks.Pipeline
}

// Link records one purpose's acceptance under a consent.
func (a *Junctions) Link(ctx context.Context, consentID, purposeID string, accepted bool) (models.PurposeJunction, error) {
	payload := database.Row{
		"consentId":  consentID,
		"purposeId":  purposeID,
		"isAccepted": accepted,
	}
	row, err := a.p.CreateWithHooks(ctx, modelJunction, payload, nil)
	if err != nil {
		return models.PurposeJunction{}, err
	}
	if row == nil {
		return models.PurposeJunction{}, errVetoed(modelJunction)
	}
	return models.PurposeJunctionFromRow(row), nil
}

// ListByConsent returns the purpose links of one consent in purpose order.
func (a *Junctions) ListByConsent(ctx context.Context, consentID string) ([]models.PurposeJunction, error) {
	rows, err := reads(a.p).FindMany(ctx, modelJunction, database.FindManyOptions{
		Where:  database.Eq("consentId", consentID),
		SortBy: &database.Sort{Field: "purposeId", Direction: database.Asc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.PurposeJunction, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.PurposeJunctionFromRow(row))
	}
	return out, nil
}

package adapters

import (
	"context"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
)

// Records persists the immutable evidence rows attached to consents. There
// is no update path; evidence is write-once.
type Records struct {
	p *hooks.Pipeline
}

func (a *Records) Create(ctx context.Context, r models.Record) (models.Record, error) {
	payload := database.Row{
		"userId":     r.UserID,
		"actionType": r.ActionType,
	}
	putIf(payload, "consentId", r.ConsentID)
	putIf(payload, "details", r.Details)

	row, err := a.p.CreateWithHooks(ctx, modelRecord, payload, nil)
	if err != nil {
		return models.Record{}, err
	}
	if row == nil {
		return models.Record{}, errVetoed(modelRecord)
	}
	return models.RecordFromRow(row), nil
}

// ListByUser returns a user's evidence trail, newest first.
func (a *Records) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Record, error) {
	rows, err := reads(a.p).FindMany(ctx, modelRecord, database.FindManyOptions{
		Where:  database.Eq("userId", userID),
		Limit:  limit,
		Offset: offset,
		SortBy: &database.Sort{Field: "createdAt", Direction: database.Desc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.RecordFromRow(row))
	}
	return out, nil
}

// ListByConsent returns the evidence attached to one consent in event order.
func (a *Records) ListByConsent(ctx context.Context, consentID string) ([]models.Record, error) {
	rows, err := reads(a.p).FindMany(ctx, modelRecord, database.FindManyOptions{
		Where:  database.Eq("consentId", consentID),
		SortBy: &database.Sort{Field: "createdAt", Direction: database.Asc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.RecordFromRow(row))
	}
	return out, nil
}

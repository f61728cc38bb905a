package adapters

import (
	"context"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
)

// AuditLogs persists the system-wide change ledger: one row per state
// transition, keyed by resource type and id.
type AuditLogs struct {
	p *hooks.Pipeline
}

func (a *AuditLogs) Create(ctx context.Context, l models.AuditLog) (models.AuditLog, error) {
	payload := database.Row{
		"entityType": l.EntityType,
		"entityId":   l.EntityID,
		"actionType": l.ActionType,
	}
	putIf(payload, "userId", l.UserID)
	putIf(payload, "changes", l.Changes)
	putIf(payload, "metadata", l.Metadata)
	putIf(payload, "ipAddress", l.IPAddress)
	putIf(payload, "userAgent", l.UserAgent)

	row, err := a.p.CreateWithHooks(ctx, modelAuditLog, payload, nil)
	if err != nil {
		return models.AuditLog{}, err
	}
	if row == nil {
		return models.AuditLog{}, errVetoed(modelAuditLog)
	}
	return models.AuditLogFromRow(row), nil
}

// ListByEntity returns the change history of one resource in event order.
func (a *AuditLogs) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	where := database.Where{
		{Field: "entityType", Value: entityType, Operator: database.OpEq},
		{Field: "entityId", Value: entityID, Operator: database.OpEq},
	}
	rows, err := reads(a.p).FindMany(ctx, modelAuditLog, database.FindManyOptions{
		Where:  where,
		SortBy: &database.Sort{Field: "createdAt", Direction: database.Asc},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditLog, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.AuditLogFromRow(row))
	}
	return out, nil
}

// CountByEntity reports how many ledger rows a resource has accumulated.
func (a *AuditLogs) CountByEntity(ctx context.Context, entityType, entityID string) (int64, error) {
	where := database.Where{
		{Field: "entityType", Value: entityType, Operator: database.OpEq},
		{Field: "entityId", Value: entityID, Operator: database.OpEq},
	}
	return reads(a.p).Count(ctx, modelAuditLog, where)
}

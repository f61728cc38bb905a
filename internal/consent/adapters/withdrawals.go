package adapters

import (
	"context"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
)

// Withdrawals persists revocation events. One consent carries at most one
// withdrawal; the workflow rejects a second attempt before it gets here.
type Withdrawals struct {
	p *hooks.Pipeline
}

func (a *Withdrawals) Create(ctx context.Context, w models.Withdrawal) (models.Withdrawal, error) {
	payload := database.Row{
		"consentId": w.ConsentID,
		"userId":    w.UserID,
	}
	putIf(payload, "withdrawalReason", w.WithdrawalReason)
	putIf(payload, "withdrawalMethod", w.WithdrawalMethod)
	putIf(payload, "ipAddress", w.IPAddress)
	putIf(payload, "userAgent", w.UserAgent)
	putIf(payload, "metadata", w.Metadata)

	row, err := a.p.CreateWithHooks(ctx, modelWithdrawal, payload, nil)
	if err != nil {
		return models.Withdrawal{}, err
	}
	if row == nil {
		return models.Withdrawal{}, errVetoed(modelWithdrawal)
	}
	return models.WithdrawalFromRow(row), nil
}

// FindByConsent returns the withdrawal event of a consent, if any.
func (a *Withdrawals) FindByConsent(ctx context.Context, consentID string) (models.Withdrawal, error) {
	row, err := reads(a.p).FindOne(ctx, modelWithdrawal, database.Eq("consentId", consentID), nil)
	if err != nil {
		return models.Withdrawal{}, err
	}
	return models.WithdrawalFromRow(row), nil
}

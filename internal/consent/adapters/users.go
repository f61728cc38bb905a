package adapters

import (
	"context"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
)

// Users persists the identity anchors.
type Users struct {
	p *hooks.Pipeline
}

func (a *Users) Create(ctx context.Context, u models.User) (models.User, error) {
	payload := database.Row{"isIdentified": u.IsIdentified}
	putIf(payload, "externalId", u.ExternalID)
	putIf(payload, "identityProvider", u.IdentityProvider)
	putIf(payload, "lastIpAddress", u.LastIPAddress)
	if u.ID != "" {
		payload["id"] = u.ID
	}

	row, err := a.p.CreateWithHooks(ctx, modelUser, payload, nil)
	if err != nil {
		return models.User{}, err
	}
	if row == nil {
		return models.User{}, errVetoed(modelUser)
	}
	return models.UserFromRow(row), nil
}

func (a *Users) FindByID(ctx context.Context, id string) (models.User, error) {
	row, err := reads(a.p).FindOne(ctx, modelUser, database.Eq("id", id), nil)
	if err != nil {
		return models.User{}, err
	}
	return models.UserFromRow(row), nil
}

// FindByExternalID resolves the user linked to a third-party identity.
func (a *Users) FindByExternalID(ctx context.Context, externalID string) (models.User, error) {
	row, err := reads(a.p).FindOne(ctx, modelUser, database.Eq("externalId", externalID), nil)
	if err != nil {
		return models.User{}, err
	}
	return models.UserFromRow(row), nil
}

// Touch updates the last-seen address of a user.
func (a *Users) Touch(ctx context.Context, id, ipAddress string) (models.User, error) {
	change := database.Row{}
	putIf(change, "lastIpAddress", ipAddress)
	row, err := a.p.UpdateWithHooks(ctx, modelUser, database.Eq("id", id), change)
	if err != nil {
		return models.User{}, err
	}
	if row == nil {
		return models.User{}, errVetoed(modelUser)
	}
	return models.UserFromRow(row), nil
}

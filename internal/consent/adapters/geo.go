package adapters

import (
	"context"
	"errors"

	"koroflow/internal/consent/models"
	"koroflow/internal/database"
	"koroflow/internal/database/hooks"
	"koroflow/pkg/platform/sentinel"
)

// GeoLocations persists the country/region reference rows and their links to
// consents, used to mark which regulatory zones applied at grant time.
type GeoLocations struct {
	p *hooks.Pipeline
}

func (a *GeoLocations) FindByCountry(ctx context.Context, countryCode string) (models.GeoLocation, error) {
	row, err := reads(a.p).FindOne(ctx, modelGeo, database.Eq("countryCode", countryCode), nil)
	if err != nil {
		return models.GeoLocation{}, err
	}
	return models.GeoLocationFromRow(row), nil
}

// UpsertByCountry returns the location row for a country code, creating it
// on first sight.
func (a *GeoLocations) UpsertByCountry(ctx context.Context, g models.GeoLocation) (models.GeoLocation, error) {
	found, err := a.FindByCountry(ctx, g.CountryCode)
	if err == nil {
		return found, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return models.GeoLocation{}, err
	}

	payload := database.Row{"countryCode": g.CountryCode}
	putIf(payload, "countryName", g.CountryName)
	putIf(payload, "regionCode", g.RegionCode)
	putIf(payload, "regionName", g.RegionName)
	putIf(payload, "regulatoryZones", g.RegulatoryZones)

	row, err := a.p.CreateWithHooks(ctx, modelGeo, payload, nil)
	if err != nil {
		return models.GeoLocation{}, err
	}
	if row == nil {
		return models.GeoLocation{}, errVetoed(modelGeo)
	}
	return models.GeoLocationFromRow(row), nil
}

// LinkConsent records which location a consent was granted from.
func (a *GeoLocations) LinkConsent(ctx context.Context, consentID, geoLocationID string) error {
	payload := database.Row{
		"consentId":     consentID,
		"geoLocationId": geoLocationID,
	}
	row, err := a.p.CreateWithHooks(ctx, modelConsentGeo, payload, nil)
	if err != nil {
		return err
	}
	if row == nil {
		return errVetoed(modelConsentGeo)
	}
	return nil
}

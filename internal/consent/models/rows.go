package models

import (
	"time"

	"koroflow/internal/database"
)

// Row decoding. Adapter output is already in application form (booleans,
// time.Time, []string); these helpers only deal with presence and nil.

func str(row database.Row, key string) string {
	if v, ok := row[key].(string); ok {
		return v
	}
	return ""
}

func boolean(row database.Row, key string) bool {
	if v, ok := row[key].(bool); ok {
		return v
	}
	return false
}

func when(row database.Row, key string) time.Time {
	if v, ok := row[key].(time.Time); ok {
		return v
	}
	return time.Time{}
}

func whenPtr(row database.Row, key string) *time.Time {
	if v, ok := row[key].(time.Time); ok {
		return &v
	}
	return nil
}

func strSlice(row database.Row, key string) []string {
	if v, ok := row[key].([]string); ok {
		return v
	}
	return nil
}

func anyMap(row database.Row, key string) map[string]any {
	if v, ok := row[key].(map[string]any); ok {
		return v
	}
	return nil
}

func UserFromRow(row database.Row) User {
	return User{
		ID:               str(row, "id"),
		IsIdentified:     boolean(row, "isIdentified"),
		ExternalID:       str(row, "externalId"),
		IdentityProvider: str(row, "identityProvider"),
		LastIPAddress:    str(row, "lastIpAddress"),
		CreatedAt:        when(row, "createdAt"),
		UpdatedAt:        when(row, "updatedAt"),
	}
}

func DomainFromRow(row database.Row) Domain {
	return Domain{
		ID:             str(row, "id"),
		Name:           str(row, "name"),
		Description:    str(row, "description"),
		AllowedOrigins: strSlice(row, "allowedOrigins"),
		IsVerified:     boolean(row, "isVerified"),
		IsActive:       boolean(row, "isActive"),
		ParentDomainID: str(row, "parentDomainId"),
		CreatedAt:      when(row, "createdAt"),
		UpdatedAt:      when(row, "updatedAt"),
	}
}

func PurposeFromRow(row database.Row) Purpose {
	return Purpose{
		ID:           str(row, "id"),
		Code:         str(row, "code"),
		Name:         str(row, "name"),
		Description:  str(row, "description"),
		IsEssential:  boolean(row, "isEssential"),
		DataCategory: str(row, "dataCategory"),
		LegalBasis:   str(row, "legalBasis"),
		IsActive:     boolean(row, "isActive"),
		CreatedAt:    when(row, "createdAt"),
		UpdatedAt:    when(row, "updatedAt"),
	}
}

func PolicyFromRow(row database.Row) Policy {
	return Policy{
		ID:             str(row, "id"),
		Version:        str(row, "version"),
		Name:           str(row, "name"),
		EffectiveDate:  when(row, "effectiveDate"),
		ExpirationDate: whenPtr(row, "expirationDate"),
		Content:        str(row, "content"),
		ContentHash:    str(row, "contentHash"),
		IsActive:       boolean(row, "isActive"),
		CreatedAt:      when(row, "createdAt"),
	}
}

func ConsentFromRow(row database.Row) Consent {
	return Consent{
		ID:          str(row, "id"),
		UserID:      str(row, "userId"),
		DomainID:    str(row, "domainId"),
		PolicyID:    str(row, "policyId"),
		Status:      str(row, "status"),
		Preferences: anyMap(row, "preferences"),
		Metadata:    anyMap(row, "metadata"),
		IPAddress:   str(row, "ipAddress"),
		UserAgent:   str(row, "userAgent"),
		IsActive:    boolean(row, "isActive"),
		GivenAt:     when(row, "givenAt"),
		ValidUntil:  whenPtr(row, "validUntil"),
		WithdrawnAt: whenPtr(row, "withdrawnAt"),
	}
}

func PurposeJunctionFromRow(row database.Row) PurposeJunction {
	return PurposeJunction{
		ID:         str(row, "id"),
		ConsentID:  str(row, "consentId"),
		PurposeID:  str(row, "purposeId"),
		IsAccepted: boolean(row, "isAccepted"),
		CreatedAt:  when(row, "createdAt"),
		UpdatedAt:  when(row, "updatedAt"),
	}
}

func RecordFromRow(row database.Row) Record {
	return Record{
		ID:         str(row, "id"),
		UserID:     str(row, "userId"),
		ConsentID:  str(row, "consentId"),
		ActionType: str(row, "actionType"),
		Details:    anyMap(row, "details"),
		CreatedAt:  when(row, "createdAt"),
	}
}

func WithdrawalFromRow(row database.Row) Withdrawal {
	return Withdrawal{
		ID:               str(row, "id"),
		ConsentID:        str(row, "consentId"),
		UserID:           str(row, "userId"),
		WithdrawalReason: str(row, "withdrawalReason"),
		WithdrawalMethod: str(row, "withdrawalMethod"),
		IPAddress:        str(row, "ipAddress"),
		UserAgent:        str(row, "userAgent"),
		Metadata:         anyMap(row, "metadata"),
		CreatedAt:        when(row, "createdAt"),
	}
}

func AuditLogFromRow(row database.Row) AuditLog {
	return AuditLog{
		ID:         str(row, "id"),
		EntityType: str(row, "entityType"),
		EntityID:   str(row, "entityId"),
		ActionType: str(row, "actionType"),
		UserID:     str(row, "userId"),
		Changes:    anyMap(row, "changes"),
		Metadata:   anyMap(row, "metadata"),
		IPAddress:  str(row, "ipAddress"),
		UserAgent:  str(row, "userAgent"),
		CreatedAt:  when(row, "createdAt"),
	}
}

func GeoLocationFromRow(row database.Row) GeoLocation {
	return GeoLocation{
		ID:              str(row, "id"),
		CountryCode:     str(row, "countryCode"),
		CountryName:     str(row, "countryName"),
		RegionCode:      str(row, "regionCode"),
		RegionName:      str(row, "regionName"),
		RegulatoryZones: strSlice(row, "regulatoryZones"),
		CreatedAt:       when(row, "createdAt"),
	}
}

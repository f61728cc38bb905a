package schema

import "time"

// Entity names. Table names default to the logical entity name and may be
// overridden per entity via Config.
const (
	EntityUser            = "user"
	EntityDomain          = "domain"
	EntityPurpose         = "consentPurpose"
	EntityPolicy          = "consentPolicy"
	EntityConsent         = "consent"
	EntityPurposeJunction = "consentPurposeJunction"
	EntityRecord          = "consentRecord"
	EntityWithdrawal      = "consentWithdrawal"
	EntityAuditLog        = "auditLog"
	EntityGeoLocation     = "geoLocation"
	EntityConsentGeo      = "consentGeoLocation"
)

func now() any { return time.Now().UTC() }

func boolDefault(v bool) func() any { return func() any { return v } }

func stringDefault(v string) func() any { return func() any { return v } }

// entityOrder fixes iteration order for deterministic resolution output.
var entityOrder = []string{
	EntityUser,
	EntityDomain,
	EntityPurpose,
	EntityPolicy,
	EntityConsent,
	EntityPurposeJunction,
	EntityRecord,
	EntityWithdrawal,
	EntityAuditLog,
	EntityGeoLocation,
	EntityConsentGeo,
}

type namedField struct {
	key   string
	field Field
}

func f(key string, field Field) namedField { return namedField{key: key, field: field} }

// timestamps is the shared createdAt/updatedAt pair; both are system-managed
// (Input is false so payloads cannot override them).
func timestamps(fields []namedField) []namedField {
	return append(fields,
		f("createdAt", Field{Type: TypeDate, Required: true, DefaultValue: now, Returned: true}),
		f("updatedAt", Field{Type: TypeDate, Required: true, DefaultValue: now, Returned: true}),
	)
}

func created(fields []namedField) []namedField {
	return append(fields,
		f("createdAt", Field{Type: TypeDate, Required: true, DefaultValue: now, Returned: true}),
	)
}

// coreFields declares the canonical field set per entity. Plugins and
// configuration layer on top of these; they can add fields and rename
// columns but never remove what is declared here.
func coreFields(entity string) []namedField {
	switch entity {
	case EntityUser:
		return timestamps([]namedField{
			f("isIdentified", Field{Type: TypeBoolean, Required: true, DefaultValue: boolDefault(false), Input: true, Returned: true}),
			f("externalId", Field{Type: TypeString, Input: true, Returned: true}),
			f("identityProvider", Field{Type: TypeString, Input: true, Returned: true}),
			f("lastIpAddress", Field{Type: TypeString, Input: true, Returned: true}),
		})
	case EntityDomain:
		return timestamps([]namedField{
			f("name", Field{Type: TypeString, Required: true, Unique: true, Input: true, Returned: true}),
			f("description", Field{Type: TypeString, Input: true, Returned: true}),
			f("allowedOrigins", Field{Type: TypeStringArray, Input: true, Returned: true}),
			f("isVerified", Field{Type: TypeBoolean, Required: true, DefaultValue: boolDefault(false), Input: true, Returned: true}),
			f("isActive", Field{Type: TypeBoolean, Required: true, DefaultValue: boolDefault(true), Input: true, Returned: true}),
			f("parentDomainId", Field{Type: TypeString, References: EntityDomain, Input: true, Returned: true}),
		})
	case EntityPurpose:
		return timestamps([]namedField{
			f("code", Field{Type: TypeString, Required: true, Unique: true, Input: true, Returned: true}),
			f("name", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("description", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("isEssential", Field{Type: TypeBoolean, Required: true, DefaultValue: boolDefault(false), Input: true, Returned: true}),
			f("dataCategory", Field{Type: TypeString, Input: true, Returned: true}),
			f("legalBasis", Field{Type: TypeString, Input: true, Returned: true}),
			f("isActive", Field{Type: TypeBoolean, Required: true, DefaultValue: boolDefault(true), Input: true, Returned: true}),
		})
	case EntityPolicy:
		return created([]namedField{
			f("version", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("name", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("effectiveDate", Field{Type: TypeDate, Required: true, DefaultValue: now, Input: true, Returned: true}),
			f("expirationDate", Field{Type: TypeDate, Input: true, Returned: true}),
			f("content", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("contentHash", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("isActive", Field{Type: TypeBoolean, Required: true, DefaultValue: boolDefault(true), Input: true, Returned: true}),
		})
	case EntityConsent:
		return []namedField{
			f("userId", Field{Type: TypeString, Required: true, References: EntityUser, Input: true, Returned: true}),
			f("domainId", Field{Type: TypeString, Required: true, References: EntityDomain, Input: true, Returned: true}),
			f("policyId", Field{Type: TypeString, References: EntityPolicy, Input: true, Returned: true}),
			f("status", Field{Type: TypeString, Required: true, DefaultValue: stringDefault("active"), Input: true, Returned: true}),
			f("preferences", Field{Type: TypeJSON, Input: true, Returned: true}),
			f("metadata", Field{Type: TypeJSON, Input: true, Returned: true}),
			f("ipAddress", Field{Type: TypeString, Input: true, Returned: true}),
			f("userAgent", Field{Type: TypeString, Input: true, Returned: true}),
			f("isActive", Field{Type: TypeBoolean, Required: true, DefaultValue: boolDefault(true), Input: true, Returned: true}),
			f("givenAt", Field{Type: TypeDate, Required: true, DefaultValue: now, Input: true, Returned: true}),
			f("validUntil", Field{Type: TypeDate, Input: true, Returned: true}),
			f("withdrawnAt", Field{Type: TypeDate, Input: true, Returned: true}),
		}
	case EntityPurposeJunction:
		return timestamps([]namedField{
			f("consentId", Field{Type: TypeString, Required: true, References: EntityConsent, Input: true, Returned: true}),
			f("purposeId", Field{Type: TypeString, Required: true, References: EntityPurpose, Input: true, Returned: true}),
			f("isAccepted", Field{Type: TypeBoolean, Required: true, Input: true, Returned: true}),
		})
	case EntityRecord:
		return created([]namedField{
			f("userId", Field{Type: TypeString, Required: true, References: EntityUser, Input: true, Returned: true}),
			f("consentId", Field{Type: TypeString, References: EntityConsent, Input: true, Returned: true}),
			f("actionType", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("details", Field{Type: TypeJSON, Input: true, Returned: true}),
		})
	case EntityWithdrawal:
		return created([]namedField{
			f("consentId", Field{Type: TypeString, Required: true, References: EntityConsent, Input: true, Returned: true}),
			f("userId", Field{Type: TypeString, Required: true, References: EntityUser, Input: true, Returned: true}),
			f("withdrawalReason", Field{Type: TypeString, Input: true, Returned: true}),
			f("withdrawalMethod", Field{Type: TypeString, Required: true, DefaultValue: stringDefault("api"), Input: true, Returned: true}),
			f("ipAddress", Field{Type: TypeString, Input: true, Returned: true}),
			f("userAgent", Field{Type: TypeString, Input: true, Returned: true}),
			f("metadata", Field{Type: TypeJSON, Input: true, Returned: true}),
		})
	case EntityAuditLog:
		return created([]namedField{
			f("entityType", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("entityId", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("actionType", Field{Type: TypeString, Required: true, Input: true, Returned: true}),
			f("userId", Field{Type: TypeString, References: EntityUser, Input: true, Returned: true}),
			f("changes", Field{Type: TypeJSON, Input: true, Returned: true}),
			f("metadata", Field{Type: TypeJSON, Input: true, Returned: true}),
			f("ipAddress", Field{Type: TypeString, Input: true, Returned: true}),
			f("userAgent", Field{Type: TypeString, Input: true, Returned: true}),
		})
	case EntityGeoLocation:
		return created([]namedField{
			f("countryCode", Field{Type: TypeString, Required: true, Unique: true, Input: true, Returned: true}),
			f("countryName", Field{Type: TypeString, Input: true, Returned: true}),
			f("regionCode", Field{Type: TypeString, Input: true, Returned: true}),
			f("regionName", Field{Type: TypeString, Input: true, Returned: true}),
			f("regulatoryZones", Field{Type: TypeStringArray, Input: true, Returned: true}),
		})
	case EntityConsentGeo:
		return created([]namedField{
			f("consentId", Field{Type: TypeString, Required: true, References: EntityConsent, Input: true, Returned: true}),
			f("geoLocationId", Field{Type: TypeString, Required: true, References: EntityGeoLocation, Input: true, Returned: true}),
		})
	}
	return nil
}

package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"koroflow/internal/consent/metrics"
	dErrors "koroflow/pkg/domain-errors"
	"koroflow/pkg/platform/sentinel"
)

// Receipt is the signed, self-contained proof of one consent decision.
// Everything a verifier needs is embedded; the signature covers the whole
// document minus itself.
type Receipt struct {
	ConsentID     string           `json:"consentId"`
	SubjectID     string           `json:"subjectId"`
	ExternalID    string           `json:"externalId,omitempty"`
	Domain        string           `json:"domain"`
	PolicyID      string           `json:"policyId,omitempty"`
	PolicyVersion string           `json:"policyVersion,omitempty"`
	Status        string           `json:"status"`
	Purposes      []ReceiptPurpose `json:"purposes"`
	GivenAt       time.Time        `json:"givenAt"`
	WithdrawnAt   *time.Time       `json:"withdrawnAt,omitempty"`
	IssuedAt      time.Time        `json:"issuedAt"`
	Signature     string           `json:"signature"`
}

// ReceiptPurpose is one purpose line of a receipt.
type ReceiptPurpose struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Accepted bool   `json:"accepted"`
}

// GetConsentReceipt assembles and signs the receipt for one consent. The
// purpose list comes from the junction rows, not the preference blob, so
// the receipt reflects what was actually recorded.
func (s *Service) GetConsentReceipt(ctx context.Context, consentID string) (Receipt, error) {
	start := time.Now()
	defer s.observe(func(m *metrics.Metrics) { m.ObserveReceipt(start) })

	joined, err := s.set.Consents.FindWithUser(ctx, consentID)
	if err != nil {
		return Receipt{}, coded(err)
	}
	consent := joined.Consent

	domain, err := s.set.Domains.FindByID(ctx, consent.DomainID)
	if err != nil {
		return Receipt{}, coded(err)
	}

	junctions, err := s.set.Junctions.ListByConsent(ctx, consent.ID)
	if err != nil {
		return Receipt{}, coded(err)
	}
	purposes := make([]ReceiptPurpose, 0, len(junctions))
	for _, j := range junctions {
		purpose, err := s.set.Purposes.FindByID(ctx, j.PurposeID)
		if err != nil {
			return Receipt{}, coded(err)
		}
		purposes = append(purposes, ReceiptPurpose{
			Code:     purpose.Code,
			Name:     purpose.Name,
			Accepted: j.IsAccepted,
		})
	}

	receipt := Receipt{
		ConsentID:   consent.ID,
		SubjectID:   joined.User.ID,
		ExternalID:  joined.User.ExternalID,
		Domain:      domain.Name,
		PolicyID:    consent.PolicyID,
		Status:      consent.Status,
		Purposes:    purposes,
		GivenAt:     consent.GivenAt,
		WithdrawnAt: consent.WithdrawnAt,
		IssuedAt:    time.Now().UTC(),
	}
	if consent.PolicyID != "" {
		policy, err := s.set.Policies.FindByID(ctx, consent.PolicyID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return Receipt{}, coded(err)
		}
		if err == nil {
			receipt.PolicyVersion = policy.Version
		}
	}

	signature, err := s.signReceipt(receipt)
	if err != nil {
		return Receipt{}, err
	}
	receipt.Signature = signature
	return receipt, nil
}

// VerifyReceipt checks a receipt's signature against the service secret.
// A mismatch means the document was altered or signed with a different
// key; both surface as a validation error.
func (s *Service) VerifyReceipt(receipt Receipt) error {
	expected, err := s.signReceipt(receipt)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(expected), []byte(receipt.Signature)) {
		return dErrors.New(dErrors.CodeValidation, "receipt signature mismatch")
	}
	return nil
}

// signReceipt computes the HMAC-SHA256 over the canonical JSON form of the
// receipt with the signature field cleared. JSON map keys marshal sorted,
// so the encoding is deterministic.
func (s *Service) signReceipt(receipt Receipt) (string, error) {
	receipt.Signature = ""
	payload, err := json.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

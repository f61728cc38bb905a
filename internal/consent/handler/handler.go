// Package handler exposes the consent workflow over HTTP. The surface is
// deliberately small; the workflow service owns all semantics and the
// handler only translates requests, responses, and error codes.
package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"koroflow/internal/consent/service"
	dErrors "koroflow/pkg/domain-errors"
)

type Handler struct {
	workflow *service.Service
	log      *log.Logger
}

func New(workflow *service.Service, logger *log.Logger) *Handler {
	return &Handler{workflow: workflow, log: logger}
}

// Register mounts the consent routes.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consent", h.handleSetConsent)
	r.Post("/consent/withdraw", h.handleWithdrawConsent)
	r.Get("/consent/{id}/receipt", h.handleGetReceipt)
	r.Post("/consent/receipt/verify", h.handleVerifyReceipt)
	r.Get("/consent/verify", h.handleVerifyConsent)
	r.Get("/consent", h.handleListConsents)
}

type setConsentRequest struct {
	SubjectID   string          `json:"subjectId"`
	ExternalID  string          `json:"externalId"`
	Domain      string          `json:"domain"`
	Preferences map[string]bool `json:"preferences"`
	PolicyID    string          `json:"policyId"`
	Metadata    map[string]any  `json:"metadata"`
	CountryCode string          `json:"countryCode"`
	RegionCode  string          `json:"regionCode"`
}

func (h *Handler) handleSetConsent(w http.ResponseWriter, r *http.Request) {
	var req setConsentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	result, err := h.workflow.SetConsent(r.Context(), service.SetConsentRequest{
		SubjectID:   req.SubjectID,
		ExternalID:  req.ExternalID,
		Domain:      req.Domain,
		Preferences: req.Preferences,
		PolicyID:    req.PolicyID,
		Metadata:    req.Metadata,
		IPAddress:   clientIP(r),
		UserAgent:   r.UserAgent(),
		CountryCode: req.CountryCode,
		RegionCode:  req.RegionCode,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replaced {
		status = http.StatusOK
	}
	h.writeJSON(w, status, map[string]any{
		"consent":  result.Consent,
		"replaced": result.Replaced,
	})
}

type withdrawRequest struct {
	ConsentID  string         `json:"consentId"`
	SubjectID  string         `json:"subjectId"`
	ExternalID string         `json:"externalId"`
	Domain     string         `json:"domain"`
	Reason     string         `json:"reason"`
	Method     string         `json:"method"`
	Metadata   map[string]any `json:"metadata"`
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	withdrawal, err := h.workflow.WithdrawConsent(r.Context(), service.WithdrawConsentRequest{
		ConsentID:  req.ConsentID,
		SubjectID:  req.SubjectID,
		ExternalID: req.ExternalID,
		Domain:     req.Domain,
		Reason:     req.Reason,
		Method:     req.Method,
		Metadata:   req.Metadata,
		IPAddress:  clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"withdrawal": withdrawal})
}

func (h *Handler) handleGetReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.workflow.GetConsentReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleVerifyReceipt(w http.ResponseWriter, r *http.Request) {
	var receipt service.Receipt
	if err := json.NewDecoder(r.Body).Decode(&receipt); err != nil {
		h.writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := h.workflow.VerifyReceipt(receipt); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (h *Handler) handleVerifyConsent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ok, err := h.workflow.VerifyConsent(r.Context(),
		q.Get("subjectId"), q.Get("externalId"), q.Get("domain"), q.Get("purpose"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"consented": ok})
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	consents, err := h.workflow.ListUserConsents(r.Context(),
		q.Get("subjectId"), q.Get("externalId"), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"consents": consents})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && h.log != nil {
		h.log.Printf("write response: %v", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError && h.log != nil {
		h.log.Printf("request failed: %v", err)
	}

	message := err.Error()
	if status >= http.StatusInternalServerError {
		// Internal details stay in the log, not on the wire.
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]any{
		"error": map[string]any{"code": string(code), "message": message},
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeInvalidState:
		return http.StatusUnprocessableEntity
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// clientIP prefers the proxy-forwarded address when present. The header
// may carry a comma-separated chain; the first hop is the client.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}

package web

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/harnesslab/harness/internal/types"
)

// webhookPayload is the intake format for external alerting systems. alert
// keys create at most one open ticket each; repeated firings deduplicate.
type webhookPayload struct {
	AlertKey        string         `json:"alert_key"`
	Objective       string         `json:"objective"`
	SuccessCriteria string         `json:"success_criteria"`
	Priority        string         `json:"priority"`
	Context         map[string]any `json:"context"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if s.webhookSecret != "" {
		sig := r.Header.Get("X-Hub-Signature-256")
		if !verifyHMAC(body, s.webhookSecret, sig) {
			s.logger.Warn("webhook signature rejected", "remote", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.Objective == "" {
		writeError(w, http.StatusBadRequest, "objective is required")
		return
	}

	priority := types.PriorityHigh
	if payload.Priority != "" {
		p, err := types.ParsePriority(payload.Priority)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		priority = p
	}

	result, err := s.store.CreateTicket(r.Context(), &types.Ticket{
		Objective:       payload.Objective,
		SuccessCriteria: payload.SuccessCriteria,
		Priority:        priority,
		Context:         payload.Context,
		SourceKind:      types.SourceWebhook,
		SourceID:        payload.AlertKey,
	}, "webhook")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := http.StatusCreated
	if result.Deduplicated {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// verifyHMAC checks an HMAC-SHA256 signature in "sha256=<hex>" form.
func verifyHMAC(body []byte, secret, signature string) bool {
	if signature == "" {
		return false
	}

	expected, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// ComputeSignature generates the signature senders must attach.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/andrii-malakhovtsev/accountmap/internal/common"
	"github.com/andrii-malakhovtsev/accountmap/internal/logging"
	"github.com/andrii-malakhovtsev/accountmap/internal/server/services"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	msgAIQuota    = "AI is currently exhausted (Out of Tokens). Please try again in a minute."
	msgAIFailed   = "AI Analysis failed. Our digital architect is currently over capacity or encountered a processing error."
	msgAIDisabled = "AI analysis is not configured on this server."
	msgNoAccounts = "No accounts found in DB for this user."
	msgInternal   = "Internal server error"
	maxBodyBytes  = 4 << 20
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Message: msg})
}

// writeError maps a service error to a status code and envelope. Unexpected
// errors are logged and replaced by a generic message.
func writeError(ctx context.Context, w http.ResponseWriter, log logging.Logger, err error) {
	var dupIdentity *services.DuplicateIdentityError
	var dupAccount *services.DuplicateAccountError

	switch {
	case errors.As(err, &dupIdentity):
		writeJSON(w, http.StatusConflict, envelope{
			Message: "Identity already exists",
			Data:    map[string]string{"id": dupIdentity.ExistingID},
		})
	case errors.As(err, &dupAccount):
		writeJSON(w, http.StatusConflict, envelope{
			Message: "Account with this name and username already exists",
			Data:    map[string]string{"id": dupAccount.Existing.ID},
		})
	case errors.Is(err, services.ErrNoAccounts):
		writeMessage(w, http.StatusBadRequest, msgNoAccounts)
	case errors.Is(err, common.ErrorValidation):
		writeMessage(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, common.ErrorUnauthorized):
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
	case errors.Is(err, common.ErrorForbidden):
		writeMessage(w, http.StatusForbidden, "Ownership mismatch")
	case errors.Is(err, common.ErrorNotFound):
		writeMessage(w, http.StatusNotFound, "Not found")
	case errors.Is(err, common.ErrorConflict):
		writeMessage(w, http.StatusConflict, "Already exists")
	case errors.Is(err, common.ErrUpstreamQuota):
		writeMessage(w, http.StatusTooManyRequests, msgAIQuota)
	case errors.Is(err, common.ErrUpstream):
		writeMessage(w, http.StatusInternalServerError, msgAIFailed)
	case errors.Is(err, common.ErrAIDisabled):
		writeMessage(w, http.StatusServiceUnavailable, msgAIDisabled)
	default:
		log.Error(ctx, "request failed", "error", err, "request_id", middleware.GetReqID(ctx))
		writeMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

// validationMessage strips the sentinel prefix so the client sees only the
// field-level detail.
func validationMessage(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, common.ErrorValidation.Error()+": "); ok {
		return rest
	}
	return msg
}

// decodeJSON reads a single JSON value from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: request body must be valid JSON", common.ErrorValidation)
	}
	return nil
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"triviacast-service/internal/domain"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("malformed request body")

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes. Unknown errors are logged and
// reported as a generic 500.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidQuery),
		errors.Is(err, domain.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrAddressNotOwned):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrClaimNotFound),
		errors.Is(err, domain.ErrNoQuestions):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrQuizFinished),
		errors.Is(err, domain.ErrQuizAlreadyFinished),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrNotAWin),
		errors.Is(err, domain.ErrPayoutNotFound),
		errors.Is(err, domain.ErrTxAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrSpinCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrChainUnavailable),
		errors.Is(err, domain.ErrAppKeyUnchecked):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errBadRequest
	}
	return nil
}

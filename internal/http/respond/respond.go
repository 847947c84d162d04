package respond

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/taskkez-be/internal/errs"
)

// DetailBody is the body of every non-field response.
type DetailBody struct {
	Detail string `json:"detail"`
}

// JSON writes payload with the given status.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("respond: encode payload failed", zap.Error(err))
	}
}

// Detail writes {"detail": msg}.
func Detail(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, DetailBody{Detail: msg})
}

// Error maps err onto a status code and body. Errors outside the errs
// taxonomy are logged and reported as a bare 500.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := errs.KindOf(err)
	if kind == 0 {
		log.Error("request failed", zap.Error(err))
		Detail(w, http.StatusInternalServerError, "internal server error")
		return
	}
	var e *errs.Error
	errors.As(err, &e)

	status := StatusFor(kind)
	if len(e.Fields) > 0 {
		body := make(map[string][]string, len(e.Fields)+1)
		for k, v := range e.Fields {
			body[k] = v
		}
		if e.Detail != "" {
			body["non_field_errors"] = append(body["non_field_errors"], e.Detail)
		}
		JSON(w, status, body)
		return
	}
	Detail(w, status, e.Detail)
}

// StatusFor returns the HTTP status of an error kind.
func StatusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindValidation, errs.KindAuthentication, errs.KindVerificationRequired,
		errs.KindConflict, errs.KindInvalidToken:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hongminglow/taskkez-be/internal/http/respond"
)

const defaultBodyLimit = 1 << 20

// Guards are the middlewares applied to protected and throttled routes.
type Guards struct {
	Auth     func(http.Handler) http.Handler
	Throttle func(http.Handler) http.Handler
}

func (g Guards) auth() func(http.Handler) http.Handler {
	if g.Auth == nil {
		return passthrough
	}
	return g.Auth
}

func (g Guards) throttle() func(http.Handler) http.Handler {
	if g.Throttle == nil {
		return passthrough
	}
	return g.Throttle
}

func passthrough(next http.Handler) http.Handler { return next }

// decodeJSON reads a JSON body of at most limit bytes into dst and writes the
// 400 response itself when it fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) bool {
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Detail(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		respond.Detail(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}
	return true
}

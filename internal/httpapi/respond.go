package httpapi

import (
	"encoding/json"
	"net/http"

	"credgate/internal/autherr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func statusCodeOf(kind autherr.Kind) (int, string) {
	switch kind {
	case autherr.BadRequest:
		return http.StatusBadRequest, "BAD_REQUEST"
	case autherr.Unauthorized:
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case autherr.NotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case autherr.Conflict:
		return http.StatusConflict, "CONFLICT"
	case autherr.TooManyRequests:
		return http.StatusTooManyRequests, "TOO_MANY_REQUESTS"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err's kind to a status and emits the error envelope. Only
// the caller-safe message is serialized; wrapped causes stay server-side.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := autherr.KindOf(err)
	status, code := statusCodeOf(kind)
	if kind == autherr.Internal {
		s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: "internal error"}})
		return
	}
	writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: autherr.MessageOf(err)}})
}

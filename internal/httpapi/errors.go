package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"finmetrics/internal/provider"
)

// statusByKind is the boundary translation table. It is total over the
// closed Kind set; there is deliberately no catch-all row because KindOf
// folds anything unclassified into KindUnknown first.
var statusByKind = map[provider.Kind]int{
	provider.KindRateLimited:  http.StatusTooManyRequests,
	provider.KindNotFound:     http.StatusNotFound,
	provider.KindUnauthorized: http.StatusUnauthorized,
	provider.KindUnknown:      http.StatusInternalServerError,
}

// errorBody is the external error envelope.
type errorBody struct {
	Detail string `json:"detail"`
}

// StatusFor maps a classification to its external status code.
func StatusFor(kind provider.Kind) int {
	return statusByKind[kind]
}

// writeProviderError translates a classified error to the external contract:
// the fixed status for its kind and a message naming the provider. The
// wrapped cause is never serialized.
func writeProviderError(w http.ResponseWriter, err error) {
	pe := provider.AsError(err, "unknown")
	message := fmt.Sprintf("%s (Provider: %s)", pe.Message, pe.Provider)
	writeJSON(w, StatusFor(pe.Kind), errorBody{Detail: message})
}

// writeBadRequest reports an input validation failure, which never reaches
// any provider and therefore carries no provider attribution.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Detail: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

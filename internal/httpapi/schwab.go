package httpapi

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
)

// schwabConfigured guards the OAuth endpoints when the Schwab settings are
// absent from configuration.
func (h *Handler) schwabConfigured(w http.ResponseWriter) bool {
	if h.schwab == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Detail: "Schwab integration is not configured. Set SCHWAB_APP_KEY, SCHWAB_APP_SECRET, SCHWAB_REDIRECT_URI, and SCHWAB_ENCRYPTION_KEY.",
		})
		return false
	}
	return true
}

func (h *Handler) handleSchwabConnect(w http.ResponseWriter, r *http.Request) {
	if !h.schwabConfigured(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": h.schwab.AuthorizeURL()})
}

// handleSchwabCallback receives the authorization code and redirects back to
// the dashboard with the outcome in query parameters.
func (h *Handler) handleSchwabCallback(w http.ResponseWriter, r *http.Request) {
	if !h.schwabConfigured(w) {
		return
	}

	q := r.URL.Query()
	if errMsg := q.Get("error"); errMsg != "" {
		h.redirectToFrontend(w, r, url.Values{"schwab": {"denied"}, "error": {errMsg}})
		return
	}
	code := q.Get("code")
	if code == "" {
		h.redirectToFrontend(w, r, url.Values{"schwab": {"error"}, "message": {"no_code"}})
		return
	}

	if _, err := h.schwab.Exchange(r.Context(), code); err != nil {
		h.logger.ErrorContext(r.Context(), "schwab token exchange failed", "error", err)
		message := strings.ReplaceAll(err.Error(), " ", "_")
		h.redirectToFrontend(w, r, url.Values{"schwab": {"error"}, "message": {message}})
		return
	}

	h.redirectToFrontend(w, r, url.Values{"schwab": {"connected"}})
}

func (h *Handler) redirectToFrontend(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, h.frontendURL+"/?"+params.Encode(), http.StatusFound)
}

func (h *Handler) handleSchwabStatus(w http.ResponseWriter, r *http.Request) {
	if !h.schwabConfigured(w) {
		return
	}
	status, err := h.schwab.ConnectionStatus()
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleSchwabRefresh(w http.ResponseWriter, r *http.Request) {
	if !h.schwabConfigured(w) {
		return
	}
	tokens, err := h.schwab.Refresh(r.Context())
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Tokens refreshed successfully",
		"expires_at": tokens.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

func (h *Handler) handleSchwabDisconnect(w http.ResponseWriter, r *http.Request) {
	if !h.schwabConfigured(w) {
		return
	}
	deleted, err := h.schwab.Disconnect()
	if err != nil {
		writeProviderError(w, err)
		return
	}
	message := "Disconnected from Schwab successfully"
	if !deleted {
		message = "No active connection to disconnect"
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}

func (h *Handler) handleSchwabQuote(w http.ResponseWriter, r *http.Request) {
	if !h.schwabConfigured(w) {
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if symbol == "" {
		writeBadRequest(w, "symbol must not be empty")
		return
	}
	quote, err := h.schwab.Quote(r.Context(), symbol)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) handleSchwabQuotes(w http.ResponseWriter, r *http.Request) {
	if !h.schwabConfigured(w) {
		return
	}
	symbols := strings.ToUpper(strings.ReplaceAll(r.URL.Query().Get("symbols"), " ", ""))
	if symbols == "" {
		writeBadRequest(w, "symbols query parameter is required")
		return
	}
	quotes, err := h.schwab.Quotes(r.Context(), symbols)
	if err != nil {
		writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

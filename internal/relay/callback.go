// ABOUTME: HTTP handler for the authorization redirect target
// ABOUTME: Turns ?code / ?error query parameters into relay messages and renders a closing page

package relay

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/2389/stakeholder-chat/internal/dedupe"
)

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Detail}}</p>
<p>You can close this window and return to the chat.</p>
</body>
</html>
`))

type pageData struct {
	Title  string
	Detail string
}

// CallbackHandler receives the provider redirect and posts the result to the
// bus under its own origin.
type CallbackHandler struct {
	bus    *Bus
	origin string
	codes  *dedupe.Cache
	logger *slog.Logger
}

// NewCallbackHandler creates the handler. codes may be nil to disable replay
// suppression. Pass nil logger for default.
func NewCallbackHandler(bus *Bus, origin string, codes *dedupe.Cache, logger *slog.Logger) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{
		bus:    bus,
		origin: origin,
		codes:  codes,
		logger: logger.With("component", "callback"),
	}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	state := q.Get("state")

	if errCode := q.Get("error"); errCode != "" {
		detail := errCode
		if desc := q.Get("error_description"); desc != "" {
			detail = desc
		}
		h.logger.Info("authorization denied", "error", errCode)
		h.bus.Post(Message{Origin: h.origin, Type: TypeAuthError, State: state, Error: detail})
		h.render(w, http.StatusOK, pageData{Title: "Calendar not linked", Detail: detail})
		return
	}

	code := q.Get("code")
	if code == "" {
		h.render(w, http.StatusBadRequest, pageData{Title: "Missing authorization code", Detail: "The provider did not return a code."})
		return
	}

	if h.codes != nil && !h.codes.Claim(code) {
		h.logger.Debug("ignored replayed authorization code")
		h.render(w, http.StatusOK, pageData{Title: "Already received", Detail: "This authorization was already delivered."})
		return
	}

	delivered := h.bus.Post(Message{Origin: h.origin, Type: TypeAuthSuccess, Code: code, State: state})
	if !delivered {
		// Undelivered codes stay usable so a reload after /link can deliver them
		if h.codes != nil {
			h.codes.Forget(code)
		}
		h.logger.Warn("authorization code arrived with no pending handshake")
		h.render(w, http.StatusConflict, pageData{Title: "No pending request", Detail: "Start linking again from the chat."})
		return
	}
	h.render(w, http.StatusOK, pageData{Title: "Calendar authorization received", Detail: "Finishing the link in the chat."})
}

func (h *CallbackHandler) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := callbackPage.Execute(w, data); err != nil {
		h.logger.Error("rendering callback page", "error", err)
	}
}

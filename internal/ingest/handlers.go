package ingest

import (
	"encoding/json"
	"encoding/xml"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/micro-atlas/atlas/internal/events"
	"github.com/micro-atlas/atlas/internal/store"
)

// Publisher emits input-stored events; nil disables the async pipeline.
type Publisher interface {
	Publish(subject string, data any) error
}

// Handler receives raw text from external channels (SMS, email, browser
// clipper), appends it to the ingestion store verbatim, and announces it
// on the bus. Ingestion never blocks on analysis.
type Handler struct {
	store       store.Store
	events      Publisher
	defaultUser string
	logger      *slog.Logger
}

func NewHandler(s store.Store, ev Publisher, defaultUser string, logger *slog.Logger) *Handler {
	return &Handler{store: s, events: ev, defaultUser: defaultUser, logger: logger}
}

// Routes mounts the webhook endpoints. Paths match what the upstream
// senders (Twilio, inbound email parse, the clipper extension) post to.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/sms", h.handleSMS)
	r.Post("/email", h.handleEmail)
	r.Post("/web_clip", h.handleWebClip)
}

// twimlResponse is the minimal TwiML reply Twilio turns back into an SMS.
type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message"`
}

func (h *Handler) handleSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form data", http.StatusBadRequest)
		return
	}
	sender := r.FormValue("From")
	if sender == "" {
		sender = "Unknown"
	}
	body := r.FormValue("Body")

	h.saveAndAnnounce(r, store.SourceSMS, sender, body)

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(xml.Header))
	xml.NewEncoder(w).Encode(twimlResponse{Message: "Your note has been received by Micro-Atlas! 🧠"})
}

func (h *Handler) handleEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form data", http.StatusBadRequest)
		return
	}
	from := r.FormValue("from")
	subject := r.FormValue("subject")
	text := r.FormValue("text")

	body := text
	if subject != "" {
		body = subject + "\n\n" + text
	}
	if strings.TrimSpace(body) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "empty email body"})
		return
	}

	if !h.saveAndAnnounce(r, store.SourceEmail, from, body) {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save note"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Email note received by Micro-Atlas"})
}

type webClipRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

func (h *Handler) handleWebClip(w http.ResponseWriter, r *http.Request) {
	var req webClipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON payload"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "empty clip text"})
		return
	}

	if !h.saveAndAnnounce(r, store.SourceWebClip, req.URL, req.Text) {
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save note"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Web clip received by Micro-Atlas"})
}

// saveAndAnnounce appends the raw input and publishes atlas.input.stored.
// Store failures are logged and reported; publish failures only logged —
// the input is already durable at that point.
func (h *Handler) saveAndAnnounce(r *http.Request, sourceType store.SourceType, origin, body string) bool {
	in := store.RawInput{
		ID:         uuid.New(),
		SourceType: sourceType,
		Origin:     origin,
		Body:       body,
		ReceivedAt: time.Now().UTC(),
	}

	if _, err := h.store.SaveRawInput(r.Context(), in); err != nil {
		h.logger.Error("failed to save raw input",
			"source_type", string(sourceType),
			"origin", origin,
			"error", err,
		)
		return false
	}

	h.logger.Info("raw input stored",
		"input_id", in.ID,
		"source_type", string(sourceType),
		"origin", origin,
		"body_len", len(body),
	)

	if h.events != nil {
		err := h.events.Publish(events.SubjectInputStored, events.InputStored{
			ID:         in.ID.String(),
			Username:   h.defaultUser,
			SourceType: string(sourceType),
			Origin:     origin,
			Body:       body,
			ReceivedAt: in.ReceivedAt.Format(time.RFC3339),
		})
		if err != nil {
			h.logger.Warn("failed to publish input stored", "input_id", in.ID, "error", err)
		}
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

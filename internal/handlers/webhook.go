// Package handlers adapts Lambda events to the application services: the chat
// webhook, the processing queue consumer and the reminder dispatcher.
package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"brain2-assistant/internal/domain"
	apperrors "brain2-assistant/internal/errors"
	"brain2-assistant/internal/infrastructure/observability"

	"github.com/aws/aws-lambda-go/events"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap/zapcore"
)

// SecretTokenHeader carries the secret configured when the webhook was
// registered with Telegram.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// SourceTelegram tags messages received through the webhook.
const SourceTelegram = "telegram"

// Receiver accepts inbound messages.
type Receiver interface {
	Receive(ctx context.Context, in domain.MessageInput) (domain.Message, error)
}

// Webhook serves the chat webhook behind API Gateway.
type Webhook struct {
	receiver Receiver
	secret   string
	events   *observability.EventLogger
	router   chi.Router
	proxy    *chiadapter.ChiLambdaV2
}

// NewWebhook creates the webhook. Requests are only accepted when they carry
// secret in SecretTokenHeader; an empty secret rejects everything.
func NewWebhook(receiver Receiver, secret string, events *observability.EventLogger) *Webhook {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	w := &Webhook{receiver: receiver, secret: secret, events: events}

	r := chi.NewRouter()
	r.Use(w.recoverer)
	r.Get("/health", w.health)
	r.With(middleware.AllowContentType("application/json")).Post("/webhook", w.receive)
	w.router = r
	w.proxy = chiadapter.NewV2(r)
	return w
}

// Router exposes the HTTP routes.
func (w *Webhook) Router() http.Handler {
	return w.router
}

// Handle serves one API Gateway HTTP API event.
func (w *Webhook) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return w.proxy.ProxyWithContextV2(ctx, req)
}

type telegramUpdate struct {
	UpdateID int64           `json:"update_id"`
	Message  json.RawMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64  `json:"message_id"`
	Date      int64  `json:"date"`
	Text      string `json:"text"`
	Chat      struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From *struct {
		ID int64 `json:"id"`
	} `json:"from"`
}

func (w *Webhook) receive(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !w.authorized(r.Header.Get(SecretTokenHeader)) {
		w.events.LogEvent(ctx, "webhook_unauthorized", nil, zapcore.WarnLevel)
		writeJSON(rw, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var update telegramUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		w.events.LogError(ctx, "webhook_invalid_body", err, nil)
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid update"})
		return
	}
	var message telegramMessage
	if len(update.Message) > 0 {
		if err := json.Unmarshal(update.Message, &message); err != nil {
			w.events.LogError(ctx, "webhook_invalid_body", err, nil)
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid update"})
			return
		}
	}
	// Edits, joins and other updates without text are acknowledged so
	// Telegram does not redeliver them.
	if message.Text == "" {
		w.events.LogEvent(ctx, "webhook_update_ignored", observability.Details{"updateId": update.UpdateID}, zapcore.DebugLevel)
		writeJSON(rw, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	msg, err := w.receiver.Receive(ctx, messageInput(&message, update.Message))
	switch {
	case apperrors.IsValidation(err):
		w.events.LogError(ctx, "webhook_invalid_message", err, observability.Details{"updateId": update.UpdateID})
		writeJSON(rw, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case err != nil:
		// A 5xx makes Telegram redeliver; the derived message id keeps the
		// retry idempotent.
		w.events.LogError(ctx, "webhook_receive_failed", err, observability.Details{"updateId": update.UpdateID})
		writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": "could not accept message"})
	default:
		writeJSON(rw, http.StatusOK, map[string]string{"status": "accepted", "message_id": msg.MessageID})
	}
}

func (w *Webhook) health(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func (w *Webhook) authorized(token string) bool {
	if w.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(w.secret)) == 1
}

// messageInput derives the message identity from the chat and Telegram's
// message id, so a redelivered update maps to the same record. The message id
// is zero-padded to keep ids of one chat in numeric order when compared as
// strings.
func messageInput(m *telegramMessage, raw []byte) domain.MessageInput {
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	userID := chatID
	if m.From != nil {
		userID = strconv.FormatInt(m.From.ID, 10)
	}
	in := domain.MessageInput{
		UserID:    userID,
		MessageID: fmt.Sprintf("%s-%020d", chatID, m.MessageID),
		Text:      m.Text,
		ChatID:    chatID,
		Source:    SourceTelegram,
		Raw:       raw,
	}
	if m.Date > 0 {
		in.ReceivedAt = time.Unix(m.Date, 0).UTC()
	}
	return in
}

func writeJSON(rw http.ResponseWriter, status int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(body)
}

package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aretw0/duzhibot/pkg/adapters/line"
	"github.com/aretw0/duzhibot/pkg/domain"
)

// maxBodySize bounds webhook bodies.
const maxBodySize = 1 << 20

// Callback handles the POST /callback request from the LINE platform. Each text message from a
// user runs through its session; the trailing replies go back through the reply sender. Without a
// channel secret every request is refused unless the server was built WithInsecureWebhook.
// Failures past the signature check are logged and still answered with 200, so the platform does
// not redeliver.
func (s *Server) Callback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := s.callback(w, r)
	if s.metrics != nil {
		s.metrics.ObserveWebhook(status, time.Since(start))
	}
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) int {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return http.StatusRequestEntityTooLarge
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return http.StatusBadRequest
	}
	s.logger.Debug("Callback received", "size", len(body))

	switch {
	case s.secret != "":
		if !line.ValidSignature(s.secret, body, r.Header.Get(line.SignatureHeader)) {
			s.logger.Warn("Callback: invalid signature")
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return http.StatusBadRequest
		}
	case !s.insecure:
		s.logger.Error("Callback: refused, no channel secret configured")
		http.Error(w, "Webhook signature not configured", http.StatusUnauthorized)
		return http.StatusUnauthorized
	}

	events, err := line.ParseEvents(body)
	if err != nil {
		s.logger.Warn("Callback: invalid payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return http.StatusBadRequest
	}

	for _, ev := range events {
		userID, text, ok := ev.UserText()
		if !ok {
			s.logger.Debug("Callback: event skipped", "event", ev.Kind())
			continue
		}
		s.handleText(r, userID, text, ev.ReplyToken())
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("OK"))
	return http.StatusOK
}

func (s *Server) handleText(r *http.Request, userID, text, replyToken string) {
	ctx := r.Context()
	prev, err := s.sessions.Load(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.logger.Warn("Callback: session load failed", "session_id", userID, "error", err)
	}

	replies := &domain.Replies{}
	next, accepted, err := s.sessions.Handle(ctx, userID, text, replies.Add)
	if err != nil {
		s.logger.Error("Callback: handle failed", "session_id", userID, "error", err)
		return
	}
	s.logger.Info("Message handled", "session_id", userID, "path", next.Path, "accepted", accepted)
	s.streams.Publish(s.logger, prev, next)

	msgs := replies.Last(line.MaxMessages)
	if len(msgs) == 0 {
		return
	}
	if s.sender == nil {
		s.logger.Debug("Callback: no reply sender", "session_id", userID, "replies", len(msgs))
		return
	}
	if err := s.sender.Reply(ctx, replyToken, msgs); err != nil {
		s.logger.Error("Callback: reply failed", "session_id", userID, "error", err)
	}
}

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/MikeSquared-Agency/doppel/internal/whatsapp"
)

const maxWebhookBody = 1 << 20

// verifyWebhook answers the subscription handshake.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "" || token == "" {
		s.countEvent("verify_invalid")
		writeText(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if mode != "subscribe" || token != s.opts.VerifyToken {
		s.logger.Warn("webhook verification failed", "mode", mode)
		s.countEvent("verify_failed")
		writeText(w, http.StatusForbidden, "Verification failed")
		return
	}

	s.logger.Info("webhook verified")
	s.countEvent("verify_ok")
	writeText(w, http.StatusOK, challenge)
}

// receiveWebhook answers every inbound text message. Once the envelope is
// accepted the response is 200 even if generation or delivery failed.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.countEvent("malformed")
		writeText(w, http.StatusBadRequest, "No data received")
		return
	}

	payload, err := whatsapp.ParsePayload(body)
	if err != nil {
		s.logger.Warn("rejecting webhook", "error", err)
		s.countEvent("malformed")
		writeText(w, http.StatusBadRequest, rejectionText(err))
		return
	}

	if n := payload.Skipped(); n > 0 {
		s.logger.Warn("skipping undecodable messages", "count", n)
		s.countEvents("skipped", n)
	}

	ctx := r.Context()
	for _, msg := range payload.TextMessages() {
		s.countEvent("message")
		s.logger.Info("message received", "from", msg.From, "message_id", msg.ID)

		if err := s.messenger.SendTyping(ctx, msg.ID); err != nil {
			s.logger.Error("typing indicator failed", "to", msg.From, "error", err)
			s.countOutboundError("typing")
		}

		text := s.replier.Reply(ctx, msg.From, msg.Body)

		if err := s.messenger.SendText(ctx, msg.From, text); err != nil {
			s.logger.Error("send reply failed", "to", msg.From, "error", err)
			s.countOutboundError("send")
		}
	}

	writeText(w, http.StatusOK, "OK")
}

func rejectionText(err error) string {
	switch {
	case errors.Is(err, whatsapp.ErrInvalidObject):
		return "Invalid webhook object"
	case errors.Is(err, whatsapp.ErrNoEntries):
		return "No entries found"
	default:
		return "No data received"
	}
}

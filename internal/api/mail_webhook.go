package api

import (
	"io"
	"net/http"

	"modrelay/internal/mail"
	"modrelay/internal/metrics"
	"modrelay/internal/types"
)

// handleMailWebhook receives forwarded project mail and relays it to the
// mail channel.
func (s *Server) handleMailWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPayload,
			"failed to read request body", err))
		return
	}

	msg, err := mail.Decode(body)
	if err != nil {
		Error(w, r, err)
		return
	}

	destination, payload, opts := s.deps.MailTemplate(msg)

	res, err := s.deps.Delivery.Send(r.Context(), destination, payload, opts)
	if err != nil {
		s.deps.Metrics.RecordDelivery(r.Context(), mail.DestinationName, metrics.ResultFailure)
		Error(w, r, err)
		return
	}
	s.deps.Metrics.RecordDelivery(r.Context(), mail.DestinationName,
		metrics.ResultFor(res.Success, res.RateLimited))

	if !res.Success {
		JSON(w, r, http.StatusBadGateway, webhookResponse{
			Status: "failed",
			Deliveries: []deliveryOutcome{{
				Destination: mail.DestinationName,
				Status:      res.StatusCode,
				Error:       res.ErrorBody,
			}},
		})
		return
	}

	JSON(w, r, http.StatusOK, webhookResponse{
		Status: "delivered",
		Deliveries: []deliveryOutcome{{
			Destination: mail.DestinationName,
			Success:     true,
			Status:      res.StatusCode,
		}},
	})
}

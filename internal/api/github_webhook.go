package api

import (
	"io"
	"net/http"

	"modrelay/internal/github"
	"modrelay/internal/metrics"
	"modrelay/internal/types"
)

// eventHeader carries the event name GitHub tags each delivery with.
const eventHeader = "X-GitHub-Event"

// signatureHeader carries the HMAC of the body.
const signatureHeader = "X-Hub-Signature-256"

// deliveryOutcome makes each webhook post of a fan-out independently visible
// in the response.
type deliveryOutcome struct {
	Destination string `json:"destination"`
	Success     bool   `json:"success"`
	Status      int    `json:"status,omitempty"`
	Error       string `json:"error,omitempty"`
}

type webhookResponse struct {
	Status     string            `json:"status"`
	Deliveries []deliveryOutcome `json:"deliveries,omitempty"`
}

// handleGitHubWebhook receives repository events. The route is public; the
// shared-secret signature is the only authentication. Events the relay does
// not forward are acknowledged with 200 so GitHub never redelivers them.
func (s *Server) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidPayload,
			"failed to read request body", err))
		return
	}

	if err := github.VerifySignature(s.cfg.GitHub.WebhookSecret, body, r.Header.Get(signatureHeader)); err != nil {
		s.deps.Logger.Warn("rejected github webhook",
			"error", err.Error(),
			"request_id", types.GetRequestID(r.Context()),
		)
		Error(w, r, err)
		return
	}

	eventName := r.Header.Get(eventHeader)
	if eventName == "" {
		Error(w, r, types.NewAppError(types.ErrCodeValidationMissingField,
			"missing "+eventHeader+" header", nil))
		return
	}

	event, err := github.Decode(eventName, body)
	if err != nil {
		Error(w, r, err)
		return
	}

	outbounds := s.deps.Renderer.Render(event)
	if len(outbounds) == 0 {
		JSON(w, r, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}

	// A successful build gets its jar attached when we can pull it; any
	// artifact trouble degrades to announcing the build without a file.
	if event.Kind == github.KindWorkflowRun && s.deps.Artifacts != nil {
		attachment, err := s.deps.Artifacts.FetchRunArtifact(r.Context(), event.WorkflowRun)
		switch {
		case err != nil:
			s.deps.Logger.Warn("artifact fetch failed, delivering without attachment",
				"run_id", event.WorkflowRun.ID,
				"error", err.Error(),
			)
		case attachment != nil:
			for i := range outbounds {
				outbounds[i].Options.Attachment = attachment
			}
		}
	}

	outcomes := make([]deliveryOutcome, 0, len(outbounds))
	succeeded := 0
	for _, outbound := range outbounds {
		outcome := s.send(r, outbound)
		if outcome.Success {
			succeeded++
		}
		outcomes = append(outcomes, outcome)
	}

	status := "delivered"
	httpStatus := http.StatusOK
	switch {
	case succeeded == 0:
		status = "failed"
		httpStatus = http.StatusBadGateway
	case succeeded < len(outcomes):
		status = "partial_failure"
	}

	JSON(w, r, httpStatus, webhookResponse{Status: status, Deliveries: outcomes})
}

func (s *Server) send(r *http.Request, outbound github.Outbound) deliveryOutcome {
	outcome := deliveryOutcome{Destination: outbound.Destination}

	url, err := s.cfg.Discord.DestinationURL(outbound.Destination)
	if err != nil {
		outcome.Error = err.Error()
		s.deps.Metrics.RecordDelivery(r.Context(), outbound.Destination, metrics.ResultFailure)
		return outcome
	}

	res, err := s.deps.Delivery.Send(r.Context(), url, outbound.Message, outbound.Options)
	if err != nil {
		outcome.Error = err.Error()
		s.deps.Metrics.RecordDelivery(r.Context(), outbound.Destination, metrics.ResultFailure)
		return outcome
	}

	outcome.Success = res.Success
	outcome.Status = res.StatusCode
	if !res.Success {
		outcome.Error = res.ErrorBody
	}
	s.deps.Metrics.RecordDelivery(r.Context(), outbound.Destination,
		metrics.ResultFor(res.Success, res.RateLimited))
	return outcome
}

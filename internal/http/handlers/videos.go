package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"dude/internal/domain"
	"dude/internal/gateway"
	"dude/internal/generation"
)

type generateVideoRequest struct {
	Prompt               string `json:"prompt"`
	ReferenceMediaBase64 string `json:"referenceMediaBase64,omitempty"`
	MimeType             string `json:"mimeType,omitempty"`
	Duration             int    `json:"duration"`
	Resolution           string `json:"resolution"`
}

// GenerateVideo submits a new video generation, superseding any in-flight one.
func (a *App) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	var req generateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	genReq := domain.GenerationRequest{
		Prompt:          req.Prompt,
		DurationSeconds: req.Duration,
		Resolution:      domain.Resolution(req.Resolution),
	}
	if req.ReferenceMediaBase64 != "" {
		data, err := base64.StdEncoding.DecodeString(req.ReferenceMediaBase64)
		if err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "reference media is not valid base64")
			return
		}
		genReq.Reference = &domain.ReferenceMedia{Data: data, MIME: req.MimeType}
	}

	if err := a.Controller.Start(r.Context(), genReq); err != nil {
		var terr *gateway.TransportError
		switch {
		case errors.As(err, &terr):
			a.error(w, http.StatusBadGateway, "gateway_error", "the generation request was not accepted")
		case errors.Is(err, domain.ErrControllerClosed):
			a.error(w, http.StatusServiceUnavailable, "unavailable", "service is shutting down")
		default:
			a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		}
		return
	}

	a.json(w, http.StatusAccepted, snapshotPayload(a.Controller.Store().Snapshot()))
}

// GenerationStatus reports the current generation state.
func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, snapshotPayload(a.Controller.Store().Snapshot()))
}

// GenerationResume delivers the host's resume signal; a no-op unless a
// generation is in flight.
func (a *App) GenerationResume(w http.ResponseWriter, r *http.Request) {
	err := a.Controller.Resume(r.Context())
	if err != nil && !errors.Is(err, domain.ErrNoActiveGeneration) {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "service is shutting down")
		return
	}
	a.json(w, http.StatusOK, snapshotPayload(a.Controller.Store().Snapshot()))
}

func snapshotPayload(s generation.Snapshot) map[string]any {
	payload := map[string]any{
		"status":   string(s.Status),
		"progress": s.Progress,
	}
	if s.Media != nil {
		payload["media"] = map[string]any{
			"path":  s.Media.Path,
			"mime":  s.Media.MIME,
			"bytes": s.Media.Bytes,
		}
	}
	if s.ErrorMessage != "" {
		payload["error_message"] = s.ErrorMessage
	}
	if s.OperationName != "" {
		payload["operation_name"] = s.OperationName
	}
	return payload
}

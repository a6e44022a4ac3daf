package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"dude/internal/domain"
)

const maxUploadBytes = 256 << 20

type videoPayload struct {
	ID              string    `json:"id"`
	Prompt          string    `json:"prompt"`
	Title           string    `json:"title"`
	DurationSeconds int       `json:"duration_seconds"`
	Resolution      string    `json:"resolution"`
	MIME            string    `json:"mime"`
	Bytes           int64     `json:"bytes"`
	CreatedAt       time.Time `json:"created_at"`
}

func toVideoPayload(v domain.GeneratedVideo) videoPayload {
	return videoPayload{
		ID:              v.ID,
		Prompt:          v.Prompt,
		Title:           v.Title,
		DurationSeconds: v.DurationSeconds,
		Resolution:      string(v.Resolution),
		MIME:            v.MIME,
		Bytes:           v.Bytes,
		CreatedAt:       v.CreatedAt,
	}
}

// ListVideos returns all gallery records, newest first.
func (a *App) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := a.Library.ListVideos(r.Context())
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list videos")
		return
	}
	items := make([]videoPayload, 0, len(videos))
	for _, v := range videos {
		items = append(items, toVideoPayload(v))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// SaveVideo stores a video delivered as a multipart form: the binary in the
// "video" field plus prompt/duration/resolution fields.
func (a *App) SaveVideo(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("video")
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "video file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil || len(data) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "video file is empty")
		return
	}

	duration, err := strconv.Atoi(r.FormValue("duration"))
	if err != nil || !domain.ValidDuration(duration) {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported duration")
		return
	}
	resolution, err := domain.ParseResolution(r.FormValue("resolution"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "unsupported resolution")
		return
	}
	prompt := r.FormValue("prompt")
	if prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}

	mime := header.Header.Get("Content-Type")
	video, err := a.Library.UploadVideo(r.Context(), data, mime, domain.GenerationParameters{
		Prompt:          prompt,
		DurationSeconds: duration,
		Resolution:      resolution,
	})
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to save video")
		return
	}
	a.json(w, http.StatusCreated, toVideoPayload(*video))
}

// DownloadVideo streams the stored bytes for one video.
func (a *App) DownloadVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	data, mime, err := a.Library.OpenVideo(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to read video")
		return
	}
	if mime == "" {
		mime = "video/mp4"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// DeleteVideo removes one gallery record and its blob.
func (a *App) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "id required")
		return
	}
	if err := a.Library.DeleteVideo(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "video not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete video")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

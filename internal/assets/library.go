// Package assets is the gallery: durable records of generated videos plus
// their stored bytes.
package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"dude/internal/domain"
	"dude/internal/infra"
	"dude/internal/sqlinline"
	"dude/internal/storage"
)

// PersistenceError wraps failures of the save path. Generation treats these as
// degraded, never fatal.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("assets: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Library stores gallery rows in Postgres and blobs in the file store.
type Library struct {
	sql    infra.SQLExecutor
	files  *storage.FileStore
	logger infra.Logger
}

func NewLibrary(sql infra.SQLExecutor, files *storage.FileStore, logger infra.Logger) *Library {
	return &Library{sql: sql, files: files, logger: logger}
}

// UploadVideo persists a completed video with its generation parameters.
func (l *Library) UploadVideo(ctx context.Context, data []byte, mime string, params domain.GenerationParameters) (*domain.GeneratedVideo, error) {
	if len(data) == 0 {
		return nil, &PersistenceError{Op: "upload", Err: fmt.Errorf("empty payload")}
	}
	if mime == "" {
		mime = "video/mp4"
	}

	id := uuid.NewString()
	key := fmt.Sprintf("videos/%s/video%s", id, storage.ExtensionForMIME(mime))
	storedKey, err := l.files.Write(ctx, key, data)
	if err != nil {
		return nil, &PersistenceError{Op: "write blob", Err: err}
	}

	video := &domain.GeneratedVideo{
		ID:              id,
		Prompt:          params.Prompt,
		Title:           TitleFromPrompt(params.Prompt),
		DurationSeconds: params.DurationSeconds,
		Resolution:      params.Resolution,
		StorageKey:      storedKey,
		MIME:            mime,
		Bytes:           int64(len(data)),
	}

	row := l.sql.QueryRow(ctx, sqlinline.QInsertVideo,
		video.ID, video.Prompt, video.Title, video.DurationSeconds,
		string(video.Resolution), video.StorageKey, video.MIME, video.Bytes)
	if err := row.Scan(&video.CreatedAt); err != nil {
		if removeErr := l.files.Remove(ctx, storedKey); removeErr != nil {
			l.logger.Warn().Err(removeErr).Str("storage_key", storedKey).Msg("assets: orphan blob cleanup failed")
		}
		return nil, &PersistenceError{Op: "insert row", Err: err}
	}

	l.logger.Info().Str("video_id", video.ID).Str("storage_key", storedKey).Msg("assets: video saved")
	return video, nil
}

// ListVideos returns all gallery records, newest first.
func (l *Library) ListVideos(ctx context.Context) ([]domain.GeneratedVideo, error) {
	rows, err := l.sql.Query(ctx, sqlinline.QListVideos)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	defer rows.Close()

	var videos []domain.GeneratedVideo
	for rows.Next() {
		var v domain.GeneratedVideo
		var resolution string
		if err := rows.Scan(&v.ID, &v.Prompt, &v.Title, &v.DurationSeconds, &resolution,
			&v.StorageKey, &v.MIME, &v.Bytes, &v.CreatedAt); err != nil {
			return nil, &PersistenceError{Op: "scan", Err: err}
		}
		v.Resolution = domain.Resolution(resolution)
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return videos, nil
}

// GetVideo returns one gallery record.
func (l *Library) GetVideo(ctx context.Context, id string) (*domain.GeneratedVideo, error) {
	row := l.sql.QueryRow(ctx, sqlinline.QSelectVideoByID, id)
	var v domain.GeneratedVideo
	var resolution string
	if err := row.Scan(&v.ID, &v.Prompt, &v.Title, &v.DurationSeconds, &resolution,
		&v.StorageKey, &v.MIME, &v.Bytes, &v.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, &PersistenceError{Op: "select", Err: err}
	}
	v.Resolution = domain.Resolution(resolution)
	return &v, nil
}

// OpenVideo returns the stored bytes and MIME type for one video.
func (l *Library) OpenVideo(ctx context.Context, id string) ([]byte, string, error) {
	video, err := l.GetVideo(ctx, id)
	if err != nil {
		return nil, "", err
	}
	data, err := l.files.Read(ctx, video.StorageKey)
	if err != nil {
		return nil, "", err
	}
	return data, video.MIME, nil
}

// DeleteVideo removes the record and, best-effort, its blob.
func (l *Library) DeleteVideo(ctx context.Context, id string) error {
	row := l.sql.QueryRow(ctx, sqlinline.QDeleteVideo, id)
	var storageKey string
	if err := row.Scan(&storageKey); err != nil {
		if infra.IsNoRows(err) {
			return domain.ErrNotFound
		}
		return &PersistenceError{Op: "delete", Err: err}
	}
	if err := l.files.Remove(ctx, storageKey); err != nil {
		l.logger.Warn().Err(err).Str("video_id", id).Str("storage_key", storageKey).Msg("assets: blob removal failed")
	}
	return nil
}

var titleCaser = cases.Title(language.English)

// TitleFromPrompt derives a short display title from the generation prompt.
func TitleFromPrompt(prompt string) string {
	prompt = strings.Join(strings.Fields(prompt), " ")
	if prompt == "" {
		return "Untitled Video"
	}
	title := titleCaser.String(prompt)
	const maxLen = 80
	if len(title) > maxLen {
		cut := strings.LastIndex(title[:maxLen], " ")
		if cut <= 0 {
			cut = maxLen
		}
		title = title[:cut]
	}
	return title
}

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"dude/internal/assets"
	"dude/internal/gateway"
	"dude/internal/generation"
	"dude/internal/http/handlers"
	"dude/internal/http/httpapi"
	"dude/internal/storage"
)

type stubGateway struct {
	submit func(ctx context.Context, req gateway.SubmitRequest) (string, error)
	check  func(ctx context.Context, operationName string) (*gateway.OperationStatus, error)
}

func (g *stubGateway) Submit(ctx context.Context, req gateway.SubmitRequest) (string, error) {
	if g.submit == nil {
		return "op-test", nil
	}
	return g.submit(ctx, req)
}

func (g *stubGateway) CheckOperation(ctx context.Context, operationName string) (*gateway.OperationStatus, error) {
	if g.check == nil {
		return &gateway.OperationStatus{Progress: 10}, nil
	}
	return g.check(ctx, operationName)
}

type galleryRow struct {
	id         string
	prompt     string
	title      string
	duration   int
	resolution string
	storageKey string
	mime       string
	bytes      int64
	createdAt  time.Time
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error { return r.scan(dest...) }

type stubSQL struct {
	mu   sync.Mutex
	rows []galleryRow
}

func (s *stubSQL) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("unsupported exec: " + query)
}

func (s *stubSQL) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case strings.Contains(query, "insert into videos"):
		row := galleryRow{
			id:         args[0].(string),
			prompt:     args[1].(string),
			title:      args[2].(string),
			duration:   args[3].(int),
			resolution: args[4].(string),
			storageKey: args[5].(string),
			mime:       args[6].(string),
			bytes:      args[7].(int64),
			createdAt:  time.Now(),
		}
		s.rows = append(s.rows, row)
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*time.Time)) = row.createdAt
			return nil
		}}
	case strings.Contains(query, "delete from videos"):
		id := args[0].(string)
		for i, row := range s.rows {
			if row.id == id {
				s.rows = append(s.rows[:i], s.rows[i+1:]...)
				key := row.storageKey
				return stubRow{scan: func(dest ...any) error {
					*(dest[0].(*string)) = key
					return nil
				}}
			}
		}
		return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
	case strings.Contains(query, "where id ="):
		id := args[0].(string)
		for _, row := range s.rows {
			if row.id == id {
				row := row
				return stubRow{scan: func(dest ...any) error { return scanGalleryRow(row, dest) }}
			}
		}
		return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
	default:
		return stubRow{scan: func(dest ...any) error { return errors.New("unsupported query: " + query) }}
	}
}

func (s *stubSQL) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	if !strings.Contains(query, "from videos") {
		return nil, errors.New("unsupported query: " + query)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := make([]galleryRow, len(s.rows))
	copy(rows, s.rows)
	return &fakeRows{rows: rows, idx: -1}, nil
}

func scanGalleryRow(row galleryRow, dest []any) error {
	*(dest[0].(*string)) = row.id
	*(dest[1].(*string)) = row.prompt
	*(dest[2].(*string)) = row.title
	*(dest[3].(*int)) = row.duration
	*(dest[4].(*string)) = row.resolution
	*(dest[5].(*string)) = row.storageKey
	*(dest[6].(*string)) = row.mime
	*(dest[7].(*int64)) = row.bytes
	*(dest[8].(*time.Time)) = row.createdAt
	return nil
}

type fakeRows struct {
	rows []galleryRow
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}
func (r *fakeRows) Scan(dest ...any) error { return scanGalleryRow(r.rows[r.idx], dest) }
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func newTestRouter(t *testing.T, gw *stubGateway) http.Handler {
	t.Helper()
	logger := zerolog.Nop()
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	library := assets.NewLibrary(&stubSQL{}, files, logger)
	controller, err := generation.NewController(generation.ControllerOptions{
		Gateway: gw,
		Library: library,
		Media:   files,
		Store:   generation.NewStore(),
		Logger:  logger,
		Config: generation.Config{
			PollInterval:      time.Hour,
			GenerationTimeout: time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	t.Cleanup(controller.Close)

	app := &handlers.App{Logger: logger, Controller: controller, Library: library}
	return httpapi.NewRouter(app, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in %v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestGenerateVideoRejectsBadPayloads(t *testing.T) {
	router := newTestRouter(t, &stubGateway{})

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"empty prompt", `{"prompt":"","duration":4,"resolution":"720p"}`},
		{"bad duration", `{"prompt":"a dog","duration":5,"resolution":"720p"}`},
		{"bad resolution", `{"prompt":"a dog","duration":4,"resolution":"480p"}`},
		{"bad reference base64", `{"prompt":"a dog","duration":4,"resolution":"720p","referenceMediaBase64":"not-base64!!"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := doJSON(t, router, http.MethodPost, "/v1/videos/generations", tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if code := errorCode(t, body); code != "bad_request" {
				t.Fatalf("error code = %q", code)
			}
		})
	}
}

func TestGenerateVideoAccepted(t *testing.T) {
	gw := &stubGateway{
		submit: func(ctx context.Context, req gateway.SubmitRequest) (string, error) {
			return "op-accepted", nil
		},
	}
	router := newTestRouter(t, gw)

	rec, body := doJSON(t, router, http.MethodPost, "/v1/videos/generations",
		`{"prompt":"a cat surfing","duration":4,"resolution":"720p"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	if body["status"] != "generating" {
		t.Fatalf("status field = %v", body["status"])
	}
	if body["operation_name"] != "op-accepted" {
		t.Fatalf("operation_name = %v", body["operation_name"])
	}
}

func TestGenerateVideoGatewayRejection(t *testing.T) {
	gw := &stubGateway{
		submit: func(ctx context.Context, req gateway.SubmitRequest) (string, error) {
			return "", &gateway.TransportError{StatusCode: 400, Message: "invalid argument"}
		},
	}
	router := newTestRouter(t, gw)

	rec, body := doJSON(t, router, http.MethodPost, "/v1/videos/generations",
		`{"prompt":"a cat surfing","duration":4,"resolution":"720p"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if code := errorCode(t, body); code != "gateway_error" {
		t.Fatalf("error code = %q", code)
	}
}

func TestGenerationStatusStartsIdle(t *testing.T) {
	router := newTestRouter(t, &stubGateway{})

	rec, body := doJSON(t, router, http.MethodGet, "/v1/videos/generations/current", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "idle" {
		t.Fatalf("status field = %v", body["status"])
	}
}

func TestGenerationResumeWithoutActiveGeneration(t *testing.T) {
	router := newTestRouter(t, &stubGateway{})

	rec, body := doJSON(t, router, http.MethodPost, "/v1/videos/generations/current/resume", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "idle" {
		t.Fatalf("status field = %v", body["status"])
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &stubGateway{})
	rec, body := doJSON(t, router, http.MethodGet, "/v1/healthz", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("health = %d %v", rec.Code, body)
	}
}

func multipartVideo(t *testing.T, prompt, duration, resolution string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	form := multipart.NewWriter(buf)
	part, err := form.CreateFormFile("video", "clip.mp4")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = form.WriteField("prompt", prompt)
	_ = form.WriteField("duration", duration)
	_ = form.WriteField("resolution", resolution)
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return buf, form.FormDataContentType()
}

func TestSaveVideoValidatesForm(t *testing.T) {
	router := newTestRouter(t, &stubGateway{})

	cases := []struct {
		name       string
		prompt     string
		duration   string
		resolution string
	}{
		{"bad duration", "a dog", "5", "720p"},
		{"bad resolution", "a dog", "4", "480p"},
		{"missing prompt", "", "4", "720p"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, contentType := multipartVideo(t, tc.prompt, tc.duration, tc.resolution, []byte("mp4"))
			req := httptest.NewRequest(http.MethodPost, "/v1/videos", buf)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGalleryLifecycle(t *testing.T) {
	router := newTestRouter(t, &stubGateway{})

	buf, contentType := multipartVideo(t, "a cat surfing", "4", "720p", []byte("mp4-bytes"))
	req := httptest.NewRequest(http.MethodPost, "/v1/videos", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("save status = %d: %s", rec.Code, rec.Body.String())
	}
	var created handlers.VideoPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.ID == "" || created.Title != "A Cat Surfing" {
		t.Fatalf("created = %+v", created)
	}

	listRec, listBody := doJSON(t, router, http.MethodGet, "/v1/videos", "")
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}
	items, ok := listBody["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("items = %v", listBody["items"])
	}

	dlReq := httptest.NewRequest(http.MethodGet, "/v1/videos/"+created.ID+"/download", nil)
	dlRec := httptest.NewRecorder()
	router.ServeHTTP(dlRec, dlReq)
	if dlRec.Code != http.StatusOK {
		t.Fatalf("download status = %d", dlRec.Code)
	}
	if dlRec.Body.String() != "mp4-bytes" {
		t.Fatalf("download body = %q", dlRec.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/v1/videos/"+created.ID, nil)
	delRec := httptest.NewRecorder()
	router.ServeHTTP(delRec, delReq)
	if delRec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", delRec.Code)
	}

	againRec := httptest.NewRecorder()
	router.ServeHTTP(againRec, httptest.NewRequest(http.MethodDelete, "/v1/videos/"+created.ID, nil))
	if againRec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", againRec.Code)
	}
}

func TestDownloadVideoNotFound(t *testing.T) {
	router := newTestRouter(t, &stubGateway{})

	req := httptest.NewRequest(http.MethodGet, "/v1/videos/1b671a64-40d5-491e-99b0-da01ff1f3341/download", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

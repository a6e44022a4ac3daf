// Package gateway implements the client for the remote video generation
// service. Generation is a long-running remote operation: Submit returns an
// opaque operation name and CheckOperation reports progress until the payload
// is available.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dude/internal/domain"
	"dude/internal/infra"
)

// Options controls how the gateway client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the remote generation API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

// SubmitRequest carries the fields of one video generation submission.
type SubmitRequest struct {
	Prompt          string
	Reference       *domain.ReferenceMedia
	DurationSeconds int
	Resolution      domain.Resolution
}

// OperationStatus is the normalized result of one status check.
type OperationStatus struct {
	Done     bool
	Failed   bool
	Progress int
	Video    []byte
	MIME     string
}

// TransportError is returned for network failures and remote rejections.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode > 0:
		return fmt.Sprintf("gateway status %d: %s", e.StatusCode, e.Message)
	case e.StatusCode > 0:
		return fmt.Sprintf("gateway status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("gateway: %v", e.Err)
	default:
		return "gateway error"
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

type submitPayload struct {
	Prompt               string `json:"prompt"`
	ReferenceMediaBase64 string `json:"referenceMediaBase64,omitempty"`
	MimeType             string `json:"mimeType,omitempty"`
	DurationSeconds      int    `json:"durationSeconds"`
	Resolution           string `json:"resolution"`
}

type submitResponse struct {
	OperationName string `json:"operationName"`
}

type checkPayload struct {
	OperationName string `json:"operationName"`
}

type checkResponse struct {
	Status      string `json:"status"`
	Progress    *int   `json:"progress,omitempty"`
	VideoBase64 string `json:"videoBase64,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a gateway client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one with sensible timeouts will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway: base url is required")
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Submit starts a remote video generation and returns its operation name.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload := submitPayload{
		Prompt:          req.Prompt,
		DurationSeconds: req.DurationSeconds,
		Resolution:      string(req.Resolution),
	}
	if req.Reference != nil && len(req.Reference.Data) > 0 {
		payload.ReferenceMediaBase64 = base64.StdEncoding.EncodeToString(req.Reference.Data)
		payload.MimeType = req.Reference.MIME
	}

	var resp submitResponse
	if err := c.invoke(ctx, "/videos:generate", payload, &resp); err != nil {
		return "", err
	}
	if resp.OperationName == "" {
		return "", &TransportError{Message: "submit accepted without operation name"}
	}

	c.logger.Debug().
		Str("operation", resp.OperationName).
		Int("duration_seconds", req.DurationSeconds).
		Str("resolution", string(req.Resolution)).
		Msg("gateway: video generation submitted")

	return resp.OperationName, nil
}

// CheckOperation fetches the current state of a long-running operation.
func (c *Client) CheckOperation(ctx context.Context, operationName string) (*OperationStatus, error) {
	if operationName == "" {
		return nil, fmt.Errorf("gateway: operation name is required")
	}

	var resp checkResponse
	if err := c.invoke(ctx, "/operations:check", checkPayload{OperationName: operationName}, &resp); err != nil {
		return nil, err
	}

	status := &OperationStatus{}
	if resp.Progress != nil {
		status.Progress = *resp.Progress
	}
	switch resp.Status {
	case "completed":
		status.Done = true
		status.Progress = 100
		if resp.VideoBase64 != "" {
			data, err := base64.StdEncoding.DecodeString(resp.VideoBase64)
			if err != nil {
				return nil, &TransportError{Message: "malformed video payload", Err: err}
			}
			status.Video = data
			status.MIME = resp.MimeType
			if status.MIME == "" {
				status.MIME = "video/mp4"
			}
		}
	case "failed":
		status.Done = true
		status.Failed = true
	default:
		// processing or unknown; keep polling
	}
	return status, nil
}

func (c *Client) invoke(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("gateway: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("gateway: create request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return &TransportError{StatusCode: resp.StatusCode, Message: apiErr.Error.Message}
		}
		data, _ := io.ReadAll(resp.Body)
		return &TransportError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &TransportError{Message: "decode response", Err: err}
	}
	return nil
}

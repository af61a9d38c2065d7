package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bnema/vidflow/internal/domain"
	"github.com/bnema/vidflow/internal/infrastructure/logger"
	"github.com/bnema/vidflow/internal/port"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxResponseBytes caps how much of an Engine response is read.
const maxResponseBytes = 1 << 20

// maxMessageBytes caps an Engine error reason carried into a DispatchFailure.
const maxMessageBytes = 200

// uploadField is the multipart field the Engine reads the source file from.
const uploadField = "video"

// The Engine reports updated_at without a zone; values are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

var errSubmitDone = errors.New("submit finished")

// Client talks to the Encoding Engine over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the Engine rooted at baseURL. A nil httpClient gets
// an instrumented default without a global timeout; callers bound each call
// with a context deadline instead.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, domain.NewError(domain.KindConfiguration, "engine client", errors.New("engine url is required"))
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, domain.NewError(domain.KindConfiguration, "engine client",
			fmt.Errorf("engine url %q must be an absolute http(s) url", baseURL))
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{baseURL: baseURL, http: httpClient}, nil
}

type submitResponse struct {
	JobID   string `json:"job_id"`
	VideoID string `json:"video_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Submit streams content to the Engine as a multipart upload and returns the
// job id it assigned. Submit does not return until it has stopped reading
// content, so the caller may close the source right after.
func (c *Client) Submit(ctx context.Context, filename string, content io.Reader) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("submit: invalid filename %q", filename)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	done := make(chan struct{})
	go func() {
		defer close(done)
		part, err := mw.CreateFormFile(uploadField, name)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	defer func() {
		pr.CloseWithError(errSubmitDone)
		<-done
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/process", pr)
	if err != nil {
		return "", fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", domain.ClassifyTransport("submit "+name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", domain.ClassifyTransport("read submit response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", engineError(resp.StatusCode, body)
	}

	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if out.JobID == "" {
		return "", &domain.EngineError{StatusCode: resp.StatusCode, Message: "response carries no job_id"}
	}

	logger.Info.Printf("engine accepted %s as job %s", logger.SanitizeForLog(name), logger.SanitizeForLog(out.JobID))
	return out.JobID, nil
}

type jobResponse struct {
	Status    domain.JobStatus `json:"status"`
	Message   string           `json:"message"`
	UpdatedAt string           `json:"updated_at"`
	Data      json.RawMessage  `json:"data"`
}

// Status fetches the Engine's current view of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*domain.JobPayload, error) {
	if jobID == "" {
		return nil, errors.New("status: empty job id")
	}
	body, code, err := c.get(ctx, "/job/"+url.PathEscape(jobID))
	if err != nil {
		return nil, domain.ClassifyTransport("status "+jobID, err)
	}
	if code != http.StatusOK {
		return nil, engineError(code, body)
	}

	var wire jobResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	data, err := decodeResult(wire.Data)
	if err != nil {
		return nil, fmt.Errorf("decode job %s data: %w", jobID, err)
	}
	return &domain.JobPayload{
		Status:    wire.Status,
		Message:   wire.Message,
		UpdatedAt: parseTimestamp(wire.UpdatedAt),
		Data:      data,
	}, nil
}

// Health succeeds when the Engine answers its health route with 200.
func (c *Client) Health(ctx context.Context) error {
	body, code, err := c.get(ctx, "/health")
	if err != nil {
		return domain.ClassifyTransport("engine health", err)
	}
	if code != http.StatusOK {
		return engineError(code, body)
	}
	return nil
}

func (c *Client) get(ctx context.Context, route string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+route, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// decodeResult accepts data either as an object or as a JSON string holding
// one, since the Engine's tracking store may hand it back serialized.
func decodeResult(raw json.RawMessage) (*domain.JobResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, err
		}
		if strings.TrimSpace(inner) == "" {
			return nil, nil
		}
		raw = json.RawMessage(inner)
	}
	var result domain.JobResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	logger.Debug.Printf("unparseable engine timestamp %q", logger.SanitizeForLog(s))
	return time.Time{}
}

func engineError(code int, body []byte) error {
	var e errorResponse
	msg := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		msg = e.Error
	}
	return &domain.EngineError{StatusCode: code, Message: truncateMessage(msg, maxMessageBytes)}
}

// truncateMessage cuts msg to at most n bytes without splitting a rune.
func truncateMessage(msg string, n int) string {
	if len(msg) <= n {
		return msg
	}
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}

var _ port.Engine = (*Client)(nil)

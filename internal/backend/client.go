package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"legalchat/internal/domain"
)

// ErrNoDocument is returned by Summarize when neither a path nor an attachment is given.
var ErrNoDocument = errors.New("no document selected")

// StatusError is a non-2xx answer from the backend.
type StatusError struct {
	Code   int
	Status string
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend returned %s: %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("backend returned %s", e.Status)
}

// retryPolicy decides which failures send repeats.
type retryPolicy int

const (
	// retrySafe repeats transport failures and 429/502/503/504. For requests with no lasting effect.
	retrySafe retryPolicy = iota
	// retryRejected repeats only answers that say the request was never processed (429, 503).
	retryRejected
)

// Client talks to the legal RAG backend over HTTP.
type Client struct {
	baseURL    *url.URL
	client     *http.Client
	maxRetries int
	log        *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// Config configures the backend client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Logger     *zap.Logger
	HTTPClient *http.Client
}

// NewClient creates a new backend client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q: scheme must be http or https", cfg.BaseURL)
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: t}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:    u,
		client:     hc,
		maxRetries: retries,
		log:        log,
		sleep:      sleepCtx,
	}, nil
}

// Status calls the liveness endpoint and returns its message.
func (c *Client) Status(ctx context.Context) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	resp, err := c.send(ctx, retrySafe, http.MethodGet, "/", nil, nil, "")
	if err != nil {
		return "", err
	}
	if err := decode(resp.body, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ProcessQuery asks the backend a legal question.
func (c *Client) ProcessQuery(ctx context.Context, question string) (*domain.QueryResult, error) {
	var out domain.QueryResult
	if err := c.postJSON(ctx, retrySafe, "/process-query", nil, map[string]string{"question": question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Summarize asks for a summary of either an uploaded attachment or a document path the backend can read.
// The attachment wins when both are given.
func (c *Client) Summarize(ctx context.Context, source domain.SummarizeSource) (*domain.SummaryResult, error) {
	var out domain.SummaryResult
	switch {
	case !source.Attachment.IsZero():
		body, contentType, err := multipartFile("file", source.Attachment)
		if err != nil {
			return nil, err
		}
		resp, err := c.send(ctx, retrySafe, http.MethodPost, "/summarize-document", nil, body, contentType)
		if err != nil {
			return nil, err
		}
		if err := decode(resp.body, &out); err != nil {
			return nil, err
		}
	case strings.TrimSpace(source.Path) != "":
		path := strings.TrimSpace(source.Path)
		// FastAPI binds the scalar from the query string; the JSON body carries the same value.
		q := url.Values{"pdf_path": {path}}
		if err := c.postJSON(ctx, retrySafe, "/summarize-document", q, map[string]string{"pdf_path": path}, &out); err != nil {
			return nil, err
		}
	default:
		return nil, ErrNoDocument
	}
	return &out, nil
}

// GenerateDocument asks the backend to draft a notice or summons and returns the rendered PDF.
func (c *Client) GenerateDocument(ctx context.Context, prompt string, docType domain.DocumentType) (*domain.GeneratedDocument, error) {
	data, err := json.Marshal(map[string]string{"prompt": prompt, "document_type": string(docType)})
	if err != nil {
		return nil, err
	}
	resp, err := c.send(ctx, retryRejected, http.MethodPost, "/generate-legal-document", nil, data, "application/json")
	if err != nil {
		return nil, err
	}
	if len(resp.body) == 0 {
		return nil, errors.New("backend returned an empty document")
	}
	name := filenameFromDisposition(resp.header.Get("Content-Disposition"))
	if name == "" {
		name = fmt.Sprintf("%s_generated.pdf", strings.ToLower(string(docType)))
	}
	ct := resp.header.Get("Content-Type")
	if ct == "" {
		ct = "application/pdf"
	}
	return &domain.GeneratedDocument{Filename: name, ContentType: ct, Content: resp.body}, nil
}

// Translate translates text into the named target language.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (*domain.TranslationResult, error) {
	var out domain.TranslationResult
	in := map[string]string{"text": text, "target_language": targetLanguage}
	if err := c.postJSON(ctx, retrySafe, "/translate", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// IngestDocuments asks the backend to (re)build its vector store from the given PDF paths.
func (c *Client) IngestDocuments(ctx context.Context, pdfPaths []string) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.postJSON(ctx, retryRejected, "/ingest-documents", nil, map[string][]string{"pdf_paths": pdfPaths}, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ExtractEntities asks for the named entities (parties, dates, court, judge...) of a document on the backend.
func (c *Client) ExtractEntities(ctx context.Context, pdfPath string) (*domain.EntitiesResult, error) {
	var out struct {
		PDFPath   string `json:"pdf_path"`
		Extracted struct {
			Message  string         `json:"message"`
			Entities map[string]any `json:"entities"`
		} `json:"extracted_entities"`
	}
	if err := c.postJSON(ctx, retrySafe, "/extract-entities", nil, map[string]string{"pdf_path": pdfPath}, &out); err != nil {
		return nil, err
	}
	return &domain.EntitiesResult{
		PDFPath:  out.PDFPath,
		Message:  out.Extracted.Message,
		Entities: out.Extracted.Entities,
	}, nil
}

// CompareDocuments asks for the key differences between two documents on the backend.
func (c *Client) CompareDocuments(ctx context.Context, pdfPath1, pdfPath2 string) (*domain.ComparisonResult, error) {
	var out struct {
		PDFPath1 string `json:"pdf_path1"`
		PDFPath2 string `json:"pdf_path2"`
		Result   struct {
			Message     string          `json:"message"`
			Differences json.RawMessage `json:"differences"`
		} `json:"comparison_result"`
	}
	in := map[string]string{"pdf_path1": pdfPath1, "pdf_path2": pdfPath2}
	if err := c.postJSON(ctx, retrySafe, "/compare-documents", nil, in, &out); err != nil {
		return nil, err
	}
	return &domain.ComparisonResult{
		PDFPath1:    out.PDFPath1,
		PDFPath2:    out.PDFPath2,
		Message:     out.Result.Message,
		Differences: rawText(out.Result.Differences),
	}, nil
}

// ExtractCitations asks for the statutory and case-law citations in a document on the backend.
func (c *Client) ExtractCitations(ctx context.Context, pdfPath string) (*domain.CitationsResult, error) {
	var out domain.CitationsResult
	if err := c.postJSON(ctx, retrySafe, "/extract-citations", nil, map[string]string{"pdf_path": pdfPath}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type response struct {
	header http.Header
	body   []byte
}

func (c *Client) postJSON(ctx context.Context, policy retryPolicy, path string, query url.Values, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, policy, http.MethodPost, path, query, data, "application/json")
	if err != nil {
		return err
	}
	return decode(resp.body, out)
}

// send performs the request, retrying what policy allows with exponential backoff.
func (c *Client) send(ctx context.Context, policy retryPolicy, method, path string, query url.Values, body []byte, contentType string) (*response, error) {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	endpoint := u.String()
	requestID := uuid.NewString()
	log := c.log.With(zap.String("method", method), zap.String("path", path), zap.String("request_id", requestID))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, err
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		req.Header.Set("X-Request-ID", requestID)

		start := time.Now()
		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			if ctx.Err() != nil || attempt == c.maxRetries || policy != retrySafe {
				return nil, lastErr
			}
			log.Warn("backend request failed, retrying", zap.Int("attempt", attempt), zap.Error(err))
			if err := c.sleep(ctx, retryDelay(attempt)); err != nil {
				return nil, lastErr
			}
			continue
		}

		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		log.Debug("backend responded", zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

		if retryable(policy, resp.StatusCode) && attempt < c.maxRetries {
			lastErr = statusError(resp, payload)
			delay := retryDelay(attempt)
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					delay = time.Duration(secs) * time.Second
				}
			}
			log.Warn("backend busy, retrying", zap.Int("status", resp.StatusCode), zap.Duration("delay", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, lastErr
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return nil, statusError(resp, payload)
		}
		if readErr != nil {
			return nil, fmt.Errorf("read %s response: %w", path, readErr)
		}
		return &response{header: resp.Header, body: payload}, nil
	}
	return nil, lastErr
}

func retryable(policy retryPolicy, code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	case http.StatusBadGateway, http.StatusGatewayTimeout:
		// the upstream may still be working on it
		return policy == retrySafe
	}
	return false
}

// rawText returns a JSON string value as is and any other JSON value in its compact encoding.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	if string(raw) == "{}" || string(raw) == "[]" {
		return ""
	}
	return string(raw)
}

func statusError(resp *http.Response, payload []byte) *StatusError {
	e := &StatusError{Code: resp.StatusCode, Status: resp.Status}
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(payload, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			e.Detail = s
		} else {
			// validation errors arrive as a list of objects
			e.Detail = string(body.Detail)
		}
	}
	return e
}

func decode(payload []byte, out any) error {
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode backend response: %w", err)
	}
	return nil
}

func multipartFile(field string, a *domain.Attachment) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, a.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(a.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

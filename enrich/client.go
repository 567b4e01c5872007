package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultTimeout = 60 * time.Second

	PathTranslate  = "/translate-text"
	PathEnhance    = "/process-live-text"
	PathTranscribe = "/transcribe"
	PathHealth     = "/health"
	PathAPIStatus  = "/api-status"

	maxErrBody = 512
)

// Service is the remote side of the two enrichment stages.
type Service interface {
	Translate(ctx context.Context, text, target string) (*TranslateResponse, error)
	Enhance(ctx context.Context, text, target string) (*EnhanceResponse, error)
}

type textRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type TranslateResponse struct {
	Success        bool   `json:"success"`
	TranslatedText string `json:"translated_text"`
	Error          string `json:"error"`
	FallbackUsed   bool   `json:"fallback_used"`
	Skipped        bool   `json:"skipped"`

	Metrics *NetworkMetrics `json:"-"`
}

type EnhanceResponse struct {
	Success             bool   `json:"success"`
	StructuredText      string `json:"structured_text"`
	ExpressiveText      string `json:"expressive_text"`
	Summary             string `json:"summary"`
	TranslatedText      string `json:"translated_text"`
	Error               string `json:"error"`
	StructureError      string `json:"structure_error"`
	ExpressionsError    string `json:"expressions_error"`
	SummaryError        string `json:"summary_error"`
	TranslationError    string `json:"translation_error"`
	TranslationFallback bool   `json:"translation_fallback"`
	FallbackUsed        bool   `json:"fallback_used"`

	Metrics *NetworkMetrics `json:"-"`
}

type TranscribeResponse struct {
	Success             bool    `json:"success"`
	Transcript          string  `json:"transcript"`
	Confidence          float64 `json:"confidence"`
	Filename            string  `json:"filename"`
	TargetLanguage      string  `json:"target_language"`
	TranslatedText      string  `json:"translated_text"`
	StructuredText      string  `json:"structured_text"`
	ExpressiveText      string  `json:"expressive_text"`
	Summary             string  `json:"summary"`
	TranslationFallback bool    `json:"translation_fallback"`
	StructureFallback   bool    `json:"structure_fallback"`
	ExpressionsFallback bool    `json:"expressions_fallback"`
	SummaryFallback     bool    `json:"summary_fallback"`
	TranslationError    string  `json:"translation_error"`
	Error               string  `json:"error"`

	Metrics *NetworkMetrics `json:"-"`
}

type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type BackendStatus struct {
	Configured bool   `json:"configured"`
	Status     string `json:"status"`
	Model      string `json:"model,omitempty"`
	RateLimit  string `json:"rate_limit,omitempty"`
	Note       string `json:"note,omitempty"`
}

// APIStatus maps backend names ("assemblyai", "gemini") to their status.
type APIStatus map[string]BackendStatus

// Client speaks the enrichment service's JSON-over-HTTP contract.
type Client struct {
	baseURL string
	http    *TracedClient
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    NewTracedClient(timeout),
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Translate(ctx context.Context, text, target string) (*TranslateResponse, error) {
	var out TranslateResponse
	m, err := c.postJSON(ctx, PathTranslate, textRequest{Text: text, TargetLanguage: target}, &out)
	if err != nil {
		return nil, err
	}
	out.Metrics = m
	return &out, nil
}

func (c *Client) Enhance(ctx context.Context, text, target string) (*EnhanceResponse, error) {
	var out EnhanceResponse
	m, err := c.postJSON(ctx, PathEnhance, textRequest{Text: text, TargetLanguage: target}, &out)
	if err != nil {
		return nil, err
	}
	out.Metrics = m
	return &out, nil
}

// Transcribe uploads a local audio or video file. Enhancement is left to
// the explicit Enhance stage, so the server is asked not to run it.
func (c *Client) Transcribe(ctx context.Context, path, target string) (*TranscribeResponse, error) {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	fw, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	fd, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fd.Close()

	if _, err = io.Copy(fw, fd); err != nil {
		return nil, fmt.Errorf("copy media: %w", err)
	}
	if err := w.WriteField("target_language", target); err != nil {
		return nil, err
	}
	if err := w.WriteField("enhance", "false"); err != nil {
		return nil, err
	}
	if err = w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathTranscribe, &b)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out TranscribeResponse
	m, err := c.do(req, PathTranscribe, &out)
	if err != nil {
		return nil, err
	}
	out.Metrics = m
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.get(ctx, PathHealth, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) APIStatus(ctx context.Context) (APIStatus, error) {
	out := APIStatus{}
	if err := c.get(ctx, PathAPIStatus, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	_, err = c.do(req, path, out)
	return err
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) (*NetworkMetrics, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

// do sends req and decodes the JSON body into out. The service reports
// failures as {"success":false,...} with a 4xx/5xx status, so error bodies
// are decoded too; anything else non-2xx is a transport error.
func (c *Client) do(req *http.Request, path string, out any) (*NetworkMetrics, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	decodeErr := json.Unmarshal(resp.Body, out)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && looksLikeObject(resp.Body) {
			return resp.Metrics, nil
		}
		return nil, fmt.Errorf("%s: %s: %s", path, resp.Status, errSnippet(resp.Body))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%s decode: %w", path, decodeErr)
	}
	return resp.Metrics, nil
}

// errSnippet trims an error body to maxErrBody bytes on a rune boundary.
func errSnippet(body []byte) string {
	snippet := strings.TrimSpace(string(body))
	if len(snippet) <= maxErrBody {
		return snippet
	}
	cut := maxErrBody
	for cut > 0 && !utf8.RuneStart(snippet[cut]) {
		cut--
	}
	return snippet[:cut]
}

func looksLikeObject(b []byte) bool {
	b = bytes.TrimSpace(b)
	return len(b) > 0 && b[0] == '{'
}

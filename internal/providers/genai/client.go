package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"mockupstudio/internal/infra"
)

// ErrNoImage is returned by Result.Image when the model answered with text only.
var ErrNoImage = errors.New("genai: model did not produce an image")

// APIError is a non-2xx answer from the generate-content endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gemini status %d", e.Status)
	}
	return fmt.Sprintf("gemini status %d: %s", e.Status, e.Message)
}

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
	// Limiter paces outgoing calls. Nil disables pacing.
	Limiter *rate.Limiter
}

// Client calls the generate-content endpoint with one instruction followed by
// inline images. Without an API key it renders deterministic placeholder
// images so the pipeline can run locally.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	limiter    *rate.Limiter
}

// InlineImage is an image sent as base64 bytes. URLs are never sent.
type InlineImage struct {
	MIMEType string
	Data     []byte
}

// Request is one generation call. Images are sent after the instruction in
// the order given.
type Request struct {
	Instruction string
	Images      []InlineImage
	RequestID   string
}

// ResultKind tags a Result.
type ResultKind string

const (
	ResultImage ResultKind = "image"
	ResultText  ResultKind = "text"
)

// Result holds either image bytes or the text the model returned instead.
type Result struct {
	Kind     ResultKind
	Data     []byte
	MIMEType string
	Text     string
}

// Image returns the image payload or ErrNoImage for a text-only result.
func (r Result) Image() ([]byte, string, error) {
	if r.Kind != ResultImage || len(r.Data) == 0 {
		text := strings.TrimSpace(r.Text)
		if len(text) > 200 {
			text = clip(text, 200) + "..."
		}
		if text == "" {
			return nil, "", ErrNoImage
		}
		return nil, "", fmt.Errorf("%w: %s", ErrNoImage, text)
	}
	mime := r.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return r.Data, mime, nil
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one will be created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 180 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gemini base url: %w", err)
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.5-flash-image"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
		limiter:    opts.Limiter,
	}, nil
}

// Model returns the configured Gemini model identifier.
func (c *Client) Model() string {
	return c.model
}

// Synthetic reports whether the client renders placeholders instead of
// calling the API.
func (c *Client) Synthetic() bool {
	return c.apiKey == ""
}

// Generate performs one call. It does not retry; remote failures are returned
// as-is and never replaced by synthetic output.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.Instruction) == "" {
		return Result{}, errors.New("genai: instruction is required")
	}

	if c.Synthetic() {
		return c.syntheticImage(req), nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("genai: rate limiter: %w", err)
		}
	}

	payload := buildPayload(req)
	var response geminiGenerateContentResponse
	start := time.Now()
	if err := c.invokeGemini(ctx, fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.model)), payload, &response); err != nil {
		return Result{}, err
	}

	result := interpret(response)
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.model).
		Str("kind", string(result.Kind)).
		Int("images_sent", len(req.Images)).
		Dur("elapsed", time.Since(start)).
		Msg("genai: generate content finished")
	return result, nil
}

func buildPayload(req Request) geminiGenerateContentRequest {
	parts := make([]geminiPart, 0, len(req.Images)+1)
	parts = append(parts, geminiPart{Text: req.Instruction})
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		mime := img.MIMEType
		if mime == "" {
			mime = http.DetectContentType(img.Data)
		}
		parts = append(parts, geminiPart{InlineData: &geminiInlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(img.Data),
		}})
	}
	return geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
	}
}

// interpret picks the first inline image across all candidates. When there is
// none, the collected text becomes the result.
func interpret(resp geminiGenerateContentResponse) Result {
	var text []string
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil || len(data) == 0 {
					continue
				}
				return Result{Kind: ResultImage, Data: data, MIMEType: part.InlineData.MimeType}
			}
			if t := strings.TrimSpace(part.Text); t != "" {
				text = append(text, t)
			}
		}
	}
	return Result{Kind: ResultText, Text: strings.Join(text, "\n")}
}

func (c *Client) invokeGemini(ctx context.Context, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return &APIError{Status: resp.StatusCode, Message: apiErr.Error.Message}
		}
		return &APIError{Status: resp.StatusCode, Message: strings.ToValidUTF8(strings.TrimSpace(string(data)), "\uFFFD")}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

// clip shortens s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

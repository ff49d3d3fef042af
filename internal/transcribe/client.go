// Package transcribe uploads WAV audio to an OpenAI-compatible
// transcription endpoint and classifies the outcome.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rbright/oto/internal/transcript"
)

const (
	DefaultEndpoint = "https://api.openai.com/v1/audio/transcriptions"
	DefaultModel    = "gpt-4o-mini-transcribe"

	maxAttempts      = 4
	maxResponseBytes = 4 << 20
)

// backoff[i] is the wait before attempt i+2.
var backoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Options is the per-request settings snapshot.
type Options struct {
	APIKey           string
	Model            string
	Language         string
	AddPunctuation   bool
	PreserveNewlines bool
}

// Client performs transcription uploads with retry.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
	wait     func(context.Context, time.Duration) error
}

// New creates a client. A blank endpoint uses DefaultEndpoint and a nil
// httpClient uses http.DefaultClient.
func New(endpoint string, httpClient *http.Client, logger *slog.Logger) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		logger:   logger,
		wait:     sleepContext,
	}
}

// Transcribe uploads audio and returns the formatted text or a classified
// failure. Authentication and invalid-request failures are never retried.
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts Options) Result {
	if strings.TrimSpace(opts.APIKey) == "" {
		return failure(KindAuthentication, "API key is not configured")
	}
	if len(audio) == 0 {
		return failure(KindInvalidRequest, "No audio data provided")
	}

	body, contentType, err := encodeForm(audio, opts)
	if err != nil {
		return failure(KindUnknown, err.Error())
	}

	var res Result
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, backoff[attempt-2]); err != nil {
				res = failure(KindUnknown, "Request was cancelled")
				res.Attempts = attempt - 1
				return res
			}
		}

		res = c.do(ctx, body, contentType, opts.APIKey)
		res.Attempts = attempt
		if res.OK() {
			res.Text = transcript.Format(res.Text, transcript.Options{
				AddPunctuation:   opts.AddPunctuation,
				PreserveNewlines: opts.PreserveNewlines,
			})
			return res
		}
		if ctx.Err() != nil || !res.Kind.Retryable() {
			return res
		}
		c.logger.Warn("transcription attempt failed",
			"attempt", attempt,
			"kind", string(res.Kind),
			"error", res.Err,
		)
	}
	return res
}

func (c *Client) do(ctx context.Context, body []byte, contentType string, apiKey string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(KindUnknown, err.Error())
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return failure(KindUnknown, "Request was cancelled")
		}
		return failure(KindNetwork, "Network error: "+err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if ctx.Err() != nil {
			return failure(KindUnknown, "Request was cancelled")
		}
		return failure(KindNetwork, "Network error: "+err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(kindForStatus(resp.StatusCode), errorMessage(resp.StatusCode, raw))
	}

	var payload struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return failure(KindUnknown, "Failed to parse response: "+err.Error())
	}
	if payload.Text == nil {
		return failure(KindUnknown, "Failed to parse response: missing text")
	}
	return Result{Text: *payload.Text, Kind: KindNone}
}

// errorMessage prefers the API's error.message over the raw body.
func errorMessage(code int, raw []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return fmt.Sprintf("HTTP %d: %s", code, string(raw))
}

func encodeForm(audio []byte, opts Options) ([]byte, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="audio.wav"`)
	header.Set("Content-Type", "audio/wav")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("write form file: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	fields := [][2]string{{"model", model}}
	if lang := strings.TrimSpace(opts.Language); lang != "" {
		fields = append(fields, [2]string{"language", lang})
	}
	fields = append(fields, [2]string{"response_format", "json"})
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", f[0], err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return body.Bytes(), w.FormDataContentType(), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

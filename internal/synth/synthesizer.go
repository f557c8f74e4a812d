// internal/synth/synthesizer.go
package synth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/erppilot/api/schemas"
	"github.com/xkilldash9x/erppilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const systemPrompt = `You translate ERP portal task descriptions into automation scripts.
Respond with a single JSON object and nothing else, using this shape:
{
  "metadata": {"taskDescription": "...", "estimatedDurationMs": 30000, "complexity": "low|medium|high"},
  "steps": [
    {"action": "navigate|click|type|wait|screenshot|extract",
     "selector": "CSS or XPath selector (omit for navigate/wait/screenshot)",
     "value": "text to type or URL to open (omit otherwise)",
     "timeoutMs": 15000,
     "description": "what this step does"}
  ]
}
Use the placeholders {{username}} and {{password}} for credentials. Never
invent real credentials. Prefer id and name attribute selectors.`

// Client implements schemas.ScriptSynthesizer against the Gemini
// generateContent API.
type Client struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

var _ schemas.ScriptSynthesizer = (*Client)(nil)

// -- Gemini request/response structures (internal to this file) --
type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiSystemInstruction struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"response_mime_type,omitempty"`
}

type geminiRequestPayload struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiSystemInstruction `json:"system_instruction,omitempty"`
	GenerationConfig  geminiGenerationConfig   `json:"generationConfig,omitempty"`
}

type geminiResponsePayload struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// NewClient initializes the synthesizer client.
func NewClient(cfg config.SynthesizerConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("synthesizer API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", cfg.Model)
	}

	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 12
	}

	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
		logger:  logger.Named("synth"),
	}, nil
}

// Synthesize asks the model for a script fulfilling taskDescription against
// the given connection, then validates the result before returning it. Any
// failure is wrapped in a *schemas.SynthesisError.
func (c *Client) Synthesize(ctx context.Context, taskDescription string, conn schemas.Connection) (*schemas.AutomationScript, error) {
	if strings.TrimSpace(taskDescription) == "" {
		return nil, &schemas.SynthesisError{Err: fmt.Errorf("task description is empty")}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &schemas.SynthesisError{Err: err}
	}

	raw, err := c.generate(ctx, c.userPrompt(taskDescription, conn))
	if err != nil {
		return nil, &schemas.SynthesisError{Err: err}
	}

	script, err := decodeScript(raw)
	if err != nil {
		return nil, &schemas.SynthesisError{Err: err}
	}
	if err := schemas.Validate(script); err != nil {
		return nil, &schemas.SynthesisError{Err: fmt.Errorf("generated script is invalid: %w", err)}
	}

	c.logger.Info("Script synthesized.",
		zap.String("complexity", script.Metadata.Complexity),
		zap.Int("steps", len(script.Steps)))
	return script, nil
}

// userPrompt describes the target portal without ever including credentials.
func (c *Client) userPrompt(taskDescription string, conn schemas.Connection) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target portal: %s (%s)\n", conn.Name, conn.BaseURL)
	b.WriteString("Credentials are available through the {{username}} and {{password}} placeholders.\n\n")
	b.WriteString("Task:\n")
	b.WriteString(taskDescription)
	return b.String()
}

// generate sends the prompt to the Gemini API and returns the generated text
// with retries for transient failures.
func (c *Client) generate(ctx context.Context, userPrompt string) (string, error) {
	payload := geminiRequestPayload{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: userPrompt}},
			},
		},
		SystemInstruction: &geminiSystemInstruction{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Minute
	b.MaxInterval = 30 * time.Second

	var responseContent string

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)

		if err != nil {
			c.logger.Warn("Network error during synthesis request, retrying...", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload geminiResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}

		if len(responsePayload.Candidates) == 0 {
			return backoff.Permanent(fmt.Errorf("gemini API returned no candidates"))
		}

		candidate := responsePayload.Candidates[0]
		if len(candidate.Content.Parts) == 0 {
			if candidate.FinishReason == "SAFETY" || candidate.FinishReason == "BLOCKLIST" {
				return backoff.Permanent(fmt.Errorf("gemini API blocked the request (Reason: %s)", candidate.FinishReason))
			}
			return fmt.Errorf("gemini API returned empty content parts (Reason: %s)", candidate.FinishReason)
		}

		c.logger.Info("Generation complete.",
			zap.Duration("duration", duration))

		responseContent = candidate.Content.Parts[0].Text
		return nil
	}

	if err = backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}

	return responseContent, nil
}

func (c *Client) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("Gemini API returned error status", zap.Int("status", statusCode), zap.String("response", string(body)))
	err := fmt.Errorf("gemini API error: status %d, body: %s", statusCode, string(body))

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient errors, retry.
	default:
		return backoff.Permanent(err) // Permanent errors.
	}
}

// decodeScript extracts the first JSON object from the model reply. Models
// occasionally wrap their output in markdown fences even when asked not to.
func decodeScript(raw string) (*schemas.AutomationScript, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("reply contains no JSON object")
	}

	var script schemas.AutomationScript
	if err := json.Unmarshal([]byte(raw[start:end+1]), &script); err != nil {
		return nil, fmt.Errorf("failed to decode generated script: %w", err)
	}
	return &script, nil
}

package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Delimiter separates entries packed into one batch request and is used
// identically to split the response. Chosen to be unlikely in natural
// dialogue and distinct from in-game markup.
const Delimiter = "#####"

// Classified translation-service failures. The batch protocol treats
// them all as chunk-level failure; the notification may name the cause.
var (
	ErrInvalidKey    = errors.New("API key is not valid")
	ErrQuotaExceeded = errors.New("API quota exceeded")
	ErrSafetyBlocked = errors.New("content blocked by safety filter")
	ErrTruncated     = errors.New("response truncated by output limit")
	ErrEmptyResponse = errors.New("empty response from model")
)

// Harm categories configurable through SafetyConfig.
var harmCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// SafetyConfig controls the per-category block thresholds sent with
// every request. When disabled, every category is set to BLOCK_NONE.
type SafetyConfig struct {
	Enabled    bool
	Thresholds map[string]string
}

func (c SafetyConfig) settings() []safetySetting {
	settings := make([]safetySetting, 0, len(harmCategories))
	for _, category := range harmCategories {
		threshold := "BLOCK_NONE"
		if c.Enabled {
			if t, ok := c.Thresholds[category]; ok && t != "" {
				threshold = t
			}
		}
		settings = append(settings, safetySetting{
			Category:  category,
			Threshold: threshold,
		})
	}
	return settings
}

// GeminiClient sends translation requests to the Google Gemini API.
type GeminiClient struct {
	apiKey     string
	model      string
	safety     SafetyConfig
	httpClient *http.Client
}

// NewGeminiClient creates a translation client.
func NewGeminiClient(apiKey, model string, safety SafetyConfig) *GeminiClient {
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
		safety: safety,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// --- Gemini API request/response types ---

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	SafetySettings    []safetySetting `json:"safetySettings,omitempty"`
	GenerationConfig  *genConfig      `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type genConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *promptFeedback   `json:"promptFeedback,omitempty"`
	UsageMetadata  *geminiUsage      `json:"usageMetadata,omitempty"`
	Error          *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiUsage struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Translate sends one request and returns the model's text. Transient
// failures (429, 5xx) are retried with backoff; everything else maps to
// a classified error.
func (gc *GeminiClient) Translate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt}},
		},
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: userPrompt}},
			},
		},
		SafetySettings: gc.safety.settings(),
		GenerationConfig: &genConfig{
			MaxOutputTokens: 8192,
			Temperature:     0.7,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal translation request: %w", err)
	}

	var lastErr error
	maxRetries := 3

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*2) * time.Second
			log.Warn().Int("attempt", attempt+1).Dur("backoff", backoff).Msg("Retrying translation")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, retryable, err := gc.doRequest(ctx, bodyBytes)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !retryable {
			return "", err
		}
	}

	return "", fmt.Errorf("translation failed after %d retries: %w", maxRetries, lastErr)
}

func (gc *GeminiClient) doRequest(ctx context.Context, bodyBytes []byte) (result string, retryable bool, err error) {
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiBaseURL, gc.model, gc.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := gc.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("API call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("status 429: %w", ErrQuotaExceeded)
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("retryable error (status %d): %s", resp.StatusCode, string(respBody))
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
		if strings.Contains(string(respBody), "API key not valid") {
			return "", false, fmt.Errorf("status %d: %w", resp.StatusCode, ErrInvalidKey)
		}
		return "", false, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var apiResp geminiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", false, fmt.Errorf("unmarshal response: %w", err)
	}

	if apiResp.Error != nil {
		return "", false, fmt.Errorf("API error [%s]: %s", apiResp.Error.Status, apiResp.Error.Message)
	}

	text, err := extractText(&apiResp)
	if err != nil {
		return "", false, err
	}

	if apiResp.UsageMetadata != nil {
		log.Debug().
			Int("prompt_tokens", apiResp.UsageMetadata.PromptTokenCount).
			Int("output_tokens", apiResp.UsageMetadata.CandidatesTokenCount).
			Msg("Translation complete")
	}

	return text, false, nil
}

// extractText pulls the candidate text out of a decoded response and
// classifies the ways the model can come back empty.
func extractText(resp *geminiResponse) (string, error) {
	if len(resp.Candidates) > 0 {
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		text := strings.TrimSpace(sb.String())
		if text != "" {
			return text, nil
		}

		switch resp.Candidates[0].FinishReason {
		case "MAX_TOKENS":
			return "", ErrTruncated
		case "SAFETY":
			return "", ErrSafetyBlocked
		}
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked (%s): %w", resp.PromptFeedback.BlockReason, ErrSafetyBlocked)
	}

	return "", ErrEmptyResponse
}

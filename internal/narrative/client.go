// Package narrative wraps the hosted chat-completions service behind typed,
// schema-validated operations. Responses are never trusted as loose JSON:
// each operation parses into an explicit shape and fails with a typed error
// when the shape does not hold.
package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
	defaultTimeout = 60 * time.Second
)

var (
	// ErrMissingAPIKey indicates the client was constructed without credentials.
	ErrMissingAPIKey = errors.New("narrative: api key is required")
	// ErrRequestFailed indicates the completion request itself failed.
	ErrRequestFailed = errors.New("narrative: completion request failed")
	// ErrMalformedCompletion indicates the service returned output that does
	// not match the requested schema.
	ErrMalformedCompletion = errors.New("narrative: malformed completion")
	// ErrEmptyCompletion indicates a parseable but empty result.
	ErrEmptyCompletion = errors.New("narrative: empty completion")
)

// Config bundles the settings for the narrative client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client issues single blocking request-response completions. No streaming,
// no retries; callers impose timeouts through the context and the configured
// client timeout.
type Client struct {
	http   *resty.Client
	model  string
	logger *zap.Logger
}

// NewClient validates configuration and constructs the client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.APIKey).
		SetTimeout(timeout)

	return &Client{http: httpClient, model: model, logger: logger}, nil
}

// Story is the two-field structured result of page generation.
type Story struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ExtractedItem is one categorized entity pulled out of the user's notes.
type ExtractedItem struct {
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// GeneratePage runs one page-generation completion and validates the
// two-field result.
func (c *Client) GeneratePage(ctx context.Context, instruction, dayContext string) (Story, error) {
	raw, err := c.complete(ctx, instruction, "Analyze and merge this:\n"+dayContext)
	if err != nil {
		return Story{}, err
	}

	var story Story
	if err := json.Unmarshal([]byte(raw), &story); err != nil {
		return Story{}, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}
	if strings.TrimSpace(story.Title) == "" || strings.TrimSpace(story.Content) == "" {
		return Story{}, ErrEmptyCompletion
	}
	return story, nil
}

const questionInstruction = `You are an AI interviewer.
LANGUAGE RULE:
- If CURRENT_CONTEXT is not empty, detect its language and ask questions in THAT SAME language.
- If CURRENT_CONTEXT is "EMPTY_CONTEXT", ask questions in English.
TASK:
- Ask 5 brief, grounded questions about the user's day.
- Focus on emotions and specific details.
Return ONLY JSON: {"questions": ["...", "...", "...", "...", "..."]}`

// GenerateQuestions asks for personalized interview questions grounded in the
// provided notes context.
func (c *Client) GenerateQuestions(ctx context.Context, notesContext string) ([]string, error) {
	raw, err := c.complete(ctx, questionInstruction, "CURRENT_CONTEXT:\n"+notesContext)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Questions []string `json:"questions"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}

	questions := make([]string, 0, len(payload.Questions))
	for _, question := range payload.Questions {
		if trimmed := strings.TrimSpace(question); trimmed != "" {
			questions = append(questions, trimmed)
		}
	}
	if len(questions) == 0 {
		return nil, ErrEmptyCompletion
	}
	return questions, nil
}

const extractionInstruction = `You are a biographer. Extract key entities from user notes.
Categories: People, Places, Goals, Values.
Return ONLY JSON: {"items": [{"category": "People", "title": "John", "description": "..."}]}`

// ExtractItems pulls categorized entities out of the provided notes text.
func (c *Client) ExtractItems(ctx context.Context, notesText string) ([]ExtractedItem, error) {
	raw, err := c.complete(ctx, extractionInstruction, notesText)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []ExtractedItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}

	items := make([]ExtractedItem, 0, len(payload.Items))
	for _, item := range payload.Items {
		if strings.TrimSpace(item.Title) == "" || strings.TrimSpace(item.Category) == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	request := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	response, err := c.http.R().
		SetContext(ctx).
		SetBody(&request).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if response.StatusCode() != http.StatusOK {
		c.logger.Warn("completion request rejected",
			zap.Int("status", response.StatusCode()),
			zap.String("body", response.String()))
		return "", fmt.Errorf("%w: status %d", ErrRequestFailed, response.StatusCode())
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(response.Body(), &completion); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

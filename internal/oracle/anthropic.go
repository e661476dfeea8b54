package oracle

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/rgardiner/groundwork/internal/types"
)

// DefaultModel is used when no model is configured. Classification and
// quality judgment are simple single-shot calls, so the cost-efficient
// tier is the default.
const DefaultModel = "claude-3-5-haiku-20241022"

// Client implements Oracle against the Anthropic API
type Client struct {
	client  *anthropic.Client
	model   string
	retry   RetryConfig
	breaker *CircuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Compile-time check that Client implements Oracle
var _ Oracle = (*Client)(nil)

// Config holds oracle client configuration
type Config struct {
	APIKey string      // Anthropic API key (if empty, reads ANTHROPIC_API_KEY)
	Model  string      // Model to use (default: DefaultModel)
	Retry  RetryConfig // Retry configuration (defaults if zero)
	Logger *zap.Logger // Optional structured logger
}

// NewClient creates an Anthropic-backed oracle client
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	var breaker *CircuitBreaker
	if retry.CircuitBreakerEnabled {
		breaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout, logger)
	}
	var sem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		sem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}
	var limiter *rate.Limiter
	if retry.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(retry.RequestsPerMinute)/60.0), retry.RequestsPerMinute)
	}

	return &Client{
		client:  &client,
		model:   model,
		retry:   retry,
		breaker: breaker,
		sem:     sem,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Classify asks the oracle for a task type, seeded with the heuristic prior
func (c *Client) Classify(ctx context.Context, req ClassifyRequest) (*Classification, error) {
	prompt := buildClassifyPrompt(req)

	text, err := c.complete(ctx, "classify", prompt, 512)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrOracleUnavailable, err)
	}

	var parsed struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	if err := parseJSONResponse(text, &parsed); err != nil {
		// Unparseable output is handled like unavailability: the caller
		// keeps the heuristic result.
		return nil, fmt.Errorf("%w: unparseable classification response: %v", types.ErrOracleUnavailable, err)
	}

	taskType := types.TaskType(strings.ToLower(strings.TrimSpace(parsed.Type)))
	if !taskType.IsValid() {
		return nil, fmt.Errorf("%w: oracle returned unknown task type %q", types.ErrOracleUnavailable, parsed.Type)
	}
	confidence := parsed.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &Classification{Type: taskType, Confidence: confidence}, nil
}

// ScoreQuality asks the oracle to judge an assembled context package
func (c *Client) ScoreQuality(ctx context.Context, req QualityRequest) (*QualityJudgment, error) {
	prompt := buildQualityPrompt(req)

	text, err := c.complete(ctx, "score_quality", prompt, 1024)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrOracleUnavailable, err)
	}

	var parsed struct {
		Score     int    `json:"score"`
		Rationale string `json:"rationale"`
	}
	if err := parseJSONResponse(text, &parsed); err != nil {
		return nil, fmt.Errorf("%w: unparseable quality response: %v", types.ErrOracleUnavailable, err)
	}
	if parsed.Score < 0 {
		parsed.Score = 0
	}
	if parsed.Score > 100 {
		parsed.Score = 100
	}

	return &QualityJudgment{Score: parsed.Score, Rationale: parsed.Rationale}, nil
}

// complete issues one message call with retry and returns the text content
func (c *Client) complete(ctx context.Context, operation, prompt string, maxTokens int64) (string, error) {
	var response *anthropic.Message
	err := c.retryWithBackoff(ctx, operation, func(attemptCtx context.Context) error {
		resp, apiErr := c.client.Messages.New(attemptCtx, anthropic.MessageNewParams{
			Model:     anthropic.Model(c.model),
			MaxTokens: maxTokens,
			Messages: []anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			},
		})
		if apiErr != nil {
			return apiErr
		}
		response = resp
		return nil
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	c.logger.Debug("oracle call completed",
		zap.String("operation", operation),
		zap.Int64("input_tokens", response.Usage.InputTokens),
		zap.Int64("output_tokens", response.Usage.OutputTokens))
	return text.String(), nil
}

func buildClassifyPrompt(req ClassifyRequest) string {
	var b strings.Builder
	b.WriteString("Classify this development request into exactly one task type.\n\n")
	b.WriteString("Request:\n")
	b.WriteString(req.RawRequest)
	b.WriteString("\n\nValid types: code, testing, configuration, documentation, unknown\n")
	fmt.Fprintf(&b, "\nA keyword heuristic suggests type %q with confidence %.2f. ", req.HeuristicType, req.HeuristicConfidence)
	b.WriteString("Treat it as a prior, not a constraint.\n")
	b.WriteString("\nRespond with JSON only:\n")
	b.WriteString(`{"type": "<task type>", "confidence": <0.0-1.0>}`)
	return b.String()
}

func buildQualityPrompt(req QualityRequest) string {
	var b strings.Builder
	b.WriteString("Judge whether this context package prepares an executor to complete the request.\n\n")
	fmt.Fprintf(&b, "Request (%s task):\n%s\n\n", req.TaskType, req.RawRequest)
	b.WriteString("Predicted must-read files:\n")
	for _, p := range req.MustReadPaths {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	b.WriteString("\nAcceptance criteria:\n")
	for _, c := range req.AcceptanceCriteria {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	if req.EvaluationCriteria != "" {
		fmt.Fprintf(&b, "\nEvaluation criteria:\n%s\n", req.EvaluationCriteria)
	}
	b.WriteString("\nRespond with JSON only:\n")
	b.WriteString(`{"score": <0-100>, "rationale": "<one sentence>"}`)
	return b.String()
}

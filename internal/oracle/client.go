package oracle

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/robalobadob/riddler/internal/errs"
	"github.com/robalobadob/riddler/internal/game"
	"github.com/robalobadob/riddler/internal/riddles"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1/"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 30 * time.Second
)

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// Client is the chat-completions backed game.Oracle.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
	enabled bool
	tracer  trace.Tracer
}

var _ game.Oracle = (*Client)(nil)

// New returns a Client. Without an API key every Ask fails with the
// "unconfigured" reason instead of reaching the network.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return &Client{
		api:     openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		enabled: strings.TrimSpace(cfg.APIKey) != "",
		tracer:  otel.Tracer("github.com/robalobadob/riddler/internal/oracle"),
	}
}

// Ask implements game.Oracle.
func (c *Client) Ask(ctx context.Context, question string, riddle riddles.Question, history []game.HistoryEntry) (string, error) {
	if !c.enabled {
		return "", errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonUnconfigured, "oracle api key not set", nil)
	}

	ctx, span := c.tracer.Start(ctx, "oracle.ask",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oracle.model", c.model),
			attribute.String("riddle.title", riddle.Title),
			attribute.Int("oracle.history_len", len(history)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := BuildRequest(question, riddle, history)
	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: toMessages(req),
	})
	if err != nil {
		err = classifyError(ctx, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, errs.ReasonOf(err))
		return "", err
	}

	var reply string
	if len(resp.Choices) > 0 {
		reply = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if reply == "" {
		err := errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonEmpty, "oracle returned no content", nil)
		span.SetStatus(codes.Error, errs.ReasonEmpty)
		return "", err
	}

	log.Debug().
		Str("model", c.model).
		Int("turns", len(req.PriorTurns)+1).
		Int("promptBytes", len(req.SystemInstruction)).
		Int("replyBytes", len(reply)).
		Dur("elapsed", time.Since(start)).
		Msg("oracle reply")
	return reply, nil
}

func toMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.PriorTurns)+2)
	msgs = append(msgs, openai.SystemMessage(req.SystemInstruction))
	for _, t := range req.PriorTurns {
		if t.Role == RoleOracle {
			msgs = append(msgs, openai.AssistantMessage(t.Content))
			continue
		}
		msgs = append(msgs, openai.UserMessage(t.Content))
	}
	return append(msgs, openai.UserMessage(req.NewTurn.Content))
}

func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonTimeout, "oracle call timed out", err)
	}
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonTransport, "oracle request failed", err)
	}
	var e *errs.Error
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e = errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonAuth, "oracle rejected credentials", err)
	case http.StatusTooManyRequests:
		e = errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonRateLimited, "oracle rate limited", err)
	default:
		e = errs.WithReason(errs.CodeOracleUnavailable, errs.ReasonStatus, "oracle returned an error status", err)
	}
	e.Metadata["status"] = strconv.Itoa(apiErr.StatusCode)
	return e
}

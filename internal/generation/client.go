package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"course-builder/internal/models"

	"go.uber.org/zap"
)

// Client issues course-generation requests. Mock mode serves canned payloads
// without touching the network; real calls are retried with exponential
// backoff and may degrade to the canned payload when the dev fallback is
// enabled.
type Client interface {
	GenerateOutline(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error)
	GenerateModuleContent(ctx context.Context, info models.BasicInfo, objectives []models.Objective, outline models.CourseOutline, module models.ModuleOutline) (*models.ModuleContent, error)
	SuggestObjectives(ctx context.Context, info models.BasicInfo) ([]models.Objective, error)
	EnhanceContent(ctx context.Context, data models.CourseData) (*models.CourseData, error)
}

// Options configures the generation client policy.
type Options struct {
	MockMode    bool
	DevFallback bool
	Retry       RetryPolicy
	Model       string
	TokenBudget int
}

type client struct {
	ai     AIClient
	opts   Options
	logger *zap.Logger
}

var _ Client = (*client)(nil)

// NewClient creates a generation client. ai may be nil in mock mode.
func NewClient(ai AIClient, opts Options, logger *zap.Logger) Client {
	return &client{
		ai:     ai,
		opts:   opts,
		logger: logger.Named("GenerationClient"),
	}
}

// request runs one retried generation call: dispatch, parse, shape check.
// A malformed or shape-invalid response counts as a failed attempt.
func (c *client) request(ctx context.Context, op Operation, payload any, out any, check func() error) error {
	userInput, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	userInput = trimToTokenBudget(userInput, c.opts.Model, c.opts.TokenBudget)
	sys := systemPrompt(op)

	return Retry(ctx, c.opts.Retry, func(ctx context.Context) error {
		start := time.Now()
		text, usage, err := c.ai.GenerateText(ctx, sys, userInput)
		duration := time.Since(start)
		if err != nil {
			recordAIRequest(c.opts.Model, op, "error", duration)
			return err
		}
		recordAIRequest(c.opts.Model, op, "success", duration)
		recordAITokens(c.opts.Model, op, usage)

		if err := json.Unmarshal([]byte(stripJSONFences(text)), out); err != nil {
			c.logger.Warn("Malformed generation response",
				zap.String("operation", string(op)),
				zap.Int("responseLength", len(text)),
				zap.Error(err),
			)
			return fmt.Errorf("malformed %s response: %w", op, err)
		}
		if err := check(); err != nil {
			c.logger.Warn("Generation response failed shape check",
				zap.String("operation", string(op)),
				zap.Error(err),
			)
			return err
		}
		return nil
	})
}

// fallback applies the dev-fallback policy after retries are exhausted: the
// caller's mock factory is served instead of the error when enabled.
func fallback[T any](c *client, op Operation, lastErr error, mock func() T) (T, error) {
	if c.opts.DevFallback {
		c.logger.Warn("Generation degraded to mock payload",
			zap.String("operation", string(op)),
			zap.Error(lastErr),
		)
		recordFallback(op)
		return mock(), nil
	}
	var zero T
	return zero, &models.GenerationError{Operation: string(op), Err: lastErr}
}

func (c *client) GenerateOutline(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error) {
	if c.opts.MockMode {
		return mockOutline(info, objectives), nil
	}

	var out models.CourseOutline
	err := c.request(ctx, OpOutline, outlinePayload{BasicInfo: info, Objectives: objectives}, &out, func() error {
		if len(out.Modules) == 0 {
			return errors.New("outline has no modules")
		}
		return nil
	})
	if err != nil {
		return fallback(c, OpOutline, err, func() *models.CourseOutline {
			return mockOutline(info, objectives)
		})
	}
	if out.GeneratedAt.IsZero() {
		out.GeneratedAt = time.Now().UTC()
	}
	return &out, nil
}

func (c *client) GenerateModuleContent(ctx context.Context, info models.BasicInfo, objectives []models.Objective, outline models.CourseOutline, module models.ModuleOutline) (*models.ModuleContent, error) {
	if c.opts.MockMode {
		return mockModuleContent(module), nil
	}

	payload := modulePayload{BasicInfo: info, Objectives: objectives, Outline: outline, Module: module}
	var out models.ModuleContent
	err := c.request(ctx, OpModuleContent, payload, &out, func() error {
		if len(out.Sections) == 0 {
			return errors.New("module content has no sections")
		}
		return nil
	})
	if err != nil {
		return fallback(c, OpModuleContent, err, func() *models.ModuleContent {
			return mockModuleContent(module)
		})
	}
	// The backend occasionally echoes a different index; the outline module
	// stays authoritative.
	out.ModuleIndex = module.Index
	if out.Title == "" {
		out.Title = module.Title
	}
	return &out, nil
}

func (c *client) SuggestObjectives(ctx context.Context, info models.BasicInfo) ([]models.Objective, error) {
	if c.opts.MockMode {
		return mockObjectives(info), nil
	}

	var out struct {
		Objectives []models.Objective `json:"objectives"`
	}
	err := c.request(ctx, OpObjectiveSuggestions, outlinePayload{BasicInfo: info}, &out, func() error {
		if len(out.Objectives) == 0 {
			return errors.New("no objectives suggested")
		}
		return nil
	})
	if err != nil {
		return fallback(c, OpObjectiveSuggestions, err, func() []models.Objective {
			return mockObjectives(info)
		})
	}
	for i := range out.Objectives {
		if out.Objectives[i].ID == "" {
			out.Objectives[i].ID = fmt.Sprintf("suggested-%d", i+1)
		}
	}
	return out.Objectives, nil
}

func (c *client) EnhanceContent(ctx context.Context, data models.CourseData) (*models.CourseData, error) {
	if c.opts.MockMode {
		return mockEnhancement(data), nil
	}

	payload := enhancementPayload{Outline: data.Outline, Modules: data.Modules}
	var out enhancementPayload
	err := c.request(ctx, OpContentEnhancement, payload, &out, func() error {
		if len(out.Modules) != len(data.Modules) {
			return fmt.Errorf("enhancement changed module count: got %d, want %d", len(out.Modules), len(data.Modules))
		}
		return nil
	})
	if err != nil {
		return fallback(c, OpContentEnhancement, err, func() *models.CourseData {
			return mockEnhancement(data)
		})
	}

	enhanced := data
	if out.Outline != nil {
		enhanced.Outline = out.Outline
	}
	enhanced.Modules = out.Modules
	return &enhanced, nil
}

// stripJSONFences removes a markdown code fence around a JSON response.
func stripJSONFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

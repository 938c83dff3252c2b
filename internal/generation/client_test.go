package generation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"course-builder/internal/generation"
	"course-builder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock AIClient
type mockAIClient struct {
	mock.Mock
}

func (m *mockAIClient) GenerateText(ctx context.Context, systemPrompt, userInput string) (string, generation.UsageInfo, error) {
	args := m.Called(ctx, systemPrompt, userInput)
	return args.String(0), args.Get(1).(generation.UsageInfo), args.Error(2)
}

var testBasicInfo = models.BasicInfo{
	Title:       "Intro to X",
	Description: "A course about X",
	Category:    "tech",
}

var testObjectives = []models.Objective{
	{ID: "obj-1", Text: "Students will be able to define X"},
}

func newTestClient(ai generation.AIClient, opts generation.Options) generation.Client {
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = generation.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2.0}
	}
	return generation.NewClient(ai, opts, zap.NewNop())
}

func TestClientMockMode(t *testing.T) {
	ctx := context.Background()
	// A nil AIClient proves mock mode never reaches the network layer.
	client := newTestClient(nil, generation.Options{MockMode: true})

	t.Run("outline has a non-empty modules sequence", func(t *testing.T) {
		outline, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.NoError(t, err)
		require.NotNil(t, outline)
		assert.NotEmpty(t, outline.Modules)
		for i, module := range outline.Modules {
			assert.Equal(t, i, module.Index)
			assert.NotEmpty(t, module.Title)
			assert.NotEmpty(t, module.Lessons)
		}
	})

	t.Run("module content covers every lesson", func(t *testing.T) {
		outline, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.NoError(t, err)
		module := outline.Modules[0]

		content, err := client.GenerateModuleContent(ctx, testBasicInfo, testObjectives, *outline, module)
		require.NoError(t, err)
		assert.Equal(t, module.Index, content.ModuleIndex)
		assert.Len(t, content.Sections, len(module.Lessons))
	})

	t.Run("objective suggestions are non-empty", func(t *testing.T) {
		objectives, err := client.SuggestObjectives(ctx, testBasicInfo)
		require.NoError(t, err)
		assert.NotEmpty(t, objectives)
		for _, obj := range objectives {
			assert.NotEmpty(t, obj.ID)
			assert.NotEmpty(t, obj.Text)
		}
	})

	t.Run("enhancement keeps module count and marks enhanced", func(t *testing.T) {
		data := models.CourseData{
			Modules: []models.ModuleContent{
				{ModuleIndex: 0, Title: "M1", Sections: []models.ContentSection{{Heading: "A", Body: "text"}}},
				{ModuleIndex: 1, Title: "M2", Sections: []models.ContentSection{{Heading: "B", Body: "text"}}},
			},
		}
		enhanced, err := client.EnhanceContent(ctx, data)
		require.NoError(t, err)
		assert.Len(t, enhanced.Modules, len(data.Modules))
		assert.True(t, enhanced.Enhanced)
	})
}

func TestClientRealCalls(t *testing.T) {
	ctx := context.Background()

	t.Run("successful call returns the parsed payload", func(t *testing.T) {
		ai := new(mockAIClient)
		ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"modules":[{"index":0,"title":"Basics","summary":"s","lessons":["l1"]}]}`, generation.UsageInfo{PromptTokens: 10, CompletionTokens: 20}, nil).Once()

		client := newTestClient(ai, generation.Options{})
		outline, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.NoError(t, err)
		require.Len(t, outline.Modules, 1)
		assert.Equal(t, "Basics", outline.Modules[0].Title)
		assert.False(t, outline.GeneratedAt.IsZero())
		ai.AssertExpectations(t)
	})

	t.Run("fenced JSON responses are accepted", func(t *testing.T) {
		ai := new(mockAIClient)
		ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
			Return("```json\n{\"modules\":[{\"index\":0,\"title\":\"Fenced\",\"summary\":\"s\",\"lessons\":[\"l1\"]}]}\n```", generation.UsageInfo{}, nil).Once()

		client := newTestClient(ai, generation.Options{})
		outline, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.NoError(t, err)
		assert.Equal(t, "Fenced", outline.Modules[0].Title)
	})

	t.Run("malformed response counts as a failed attempt", func(t *testing.T) {
		ai := new(mockAIClient)
		ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
			Return("not json at all", generation.UsageInfo{}, nil).Once()
		ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"modules":[{"index":0,"title":"Recovered","summary":"s","lessons":["l1"]}]}`, generation.UsageInfo{}, nil).Once()

		client := newTestClient(ai, generation.Options{})
		outline, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.NoError(t, err)
		assert.Equal(t, "Recovered", outline.Modules[0].Title)
		ai.AssertNumberOfCalls(t, "GenerateText", 2)
	})

	t.Run("shape-invalid response counts as a failed attempt", func(t *testing.T) {
		ai := new(mockAIClient)
		// Valid JSON, but an outline without modules fails the shape check.
		ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
			Return(`{"modules":[]}`, generation.UsageInfo{}, nil)

		client := newTestClient(ai, generation.Options{Retry: generation.RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2.0}})
		_, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.Error(t, err)
		ai.AssertNumberOfCalls(t, "GenerateText", 2)
	})
}

func TestClientFallbackPolicy(t *testing.T) {
	ctx := context.Background()
	backendDown := errors.New("backend unreachable")

	t.Run("exhausted retries with dev fallback degrade to the mock payload", func(t *testing.T) {
		ai := new(mockAIClient)
		ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
			Return("", generation.UsageInfo{}, backendDown)

		client := newTestClient(ai, generation.Options{DevFallback: true})
		outline, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.NoError(t, err)
		assert.NotEmpty(t, outline.Modules)
		ai.AssertNumberOfCalls(t, "GenerateText", 3)
	})

	t.Run("exhausted retries without fallback propagate a GenerationError", func(t *testing.T) {
		ai := new(mockAIClient)
		ai.On("GenerateText", mock.Anything, mock.Anything, mock.Anything).
			Return("", generation.UsageInfo{}, backendDown)

		client := newTestClient(ai, generation.Options{})
		_, err := client.GenerateOutline(ctx, testBasicInfo, testObjectives)
		require.Error(t, err)

		var gerr *models.GenerationError
		require.ErrorAs(t, err, &gerr)
		assert.ErrorIs(t, gerr, backendDown)
		ai.AssertNumberOfCalls(t, "GenerateText", 3)
	})
}

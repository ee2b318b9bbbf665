package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/lumenlearn/coursegen-backend/internal/platform/envutil"
	"github.com/lumenlearn/coursegen-backend/internal/platform/httpx"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

// GenerateRequest is the narrow generation call contract. When Schema is set
// the call is forced through a single tool invocation and Content carries the
// tool's JSON arguments.
type GenerateRequest struct {
	System          string
	Prompt          string
	ModelID         string
	Temperature     float64
	MaxOutputTokens int

	SchemaName string
	Schema     map[string]any
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Result struct {
	Content string `json:"content"`
	Usage   Usage  `json:"usage"`
}

// Client is the generative service boundary. Both capabilities may fail with
// transient or permanent errors; reliability wrapping happens in pipeline.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (Result, error)
	// ExtractText is the narrow OCR contract: raw text from one image.
	ExtractText(ctx context.Context, imageURL string) (string, error)
}

type client struct {
	log         *logger.Logger
	api         *goopenai.Client
	model       string
	visionModel string
}

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := envutil.Str("OPENAI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if base := envutil.Str("OPENAI_BASE_URL", ""); base != "" {
		cfg.BaseURL = strings.TrimRight(base, "/") + "/v1"
	}

	return &client{
		log:         log.With("service", "OpenAIClient"),
		api:         goopenai.NewClientWithConfig(cfg),
		model:       envutil.Str("OPENAI_MODEL", "gpt-4o"),
		visionModel: envutil.Str("OPENAI_VISION_MODEL", "gpt-4o"),
	}, nil
}

// wrapErr converts go-openai API errors into the typed HTTP error the
// transient classifier understands.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &httpx.HTTPError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	return err
}

func (c *client) Generate(ctx context.Context, req GenerateRequest) (Result, error) {
	model := req.ModelID
	if model == "" {
		model = c.model
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		chatReq.MaxTokens = req.MaxOutputTokens
	}
	if req.System != "" {
		chatReq.Messages = append(chatReq.Messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	chatReq.Messages = append(chatReq.Messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	if req.Schema != nil {
		name := req.SchemaName
		if name == "" {
			name = "structured_output"
		}
		chatReq.Tools = []goopenai.Tool{{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:       name,
				Parameters: req.Schema,
			},
		}}
		chatReq.ToolChoice = goopenai.ToolChoice{
			Type:     goopenai.ToolTypeFunction,
			Function: goopenai.ToolFunction{Name: name},
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Result{}, wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in completion")
	}

	usage := Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	choice := resp.Choices[0]

	if req.Schema != nil {
		if len(choice.Message.ToolCalls) == 0 {
			return Result{}, fmt.Errorf("no tool call in structured response")
		}
		return Result{Content: choice.Message.ToolCalls[0].Function.Arguments, Usage: usage}, nil
	}
	return Result{Content: choice.Message.Content, Usage: usage}, nil
}

func (c *client) ExtractText(ctx context.Context, imageURL string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []goopenai.ChatCompletionMessage{{
			Role: goopenai.ChatMessageRoleUser,
			MultiContent: []goopenai.ChatMessagePart{
				{
					Type: goopenai.ChatMessagePartTypeText,
					Text: "Transcribe all text visible in this image. Return the text only, no commentary.",
				},
				{
					Type:     goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{URL: imageURL},
				},
			},
		}},
	})
	if err != nil {
		return "", wrapErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in vision response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

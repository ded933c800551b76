package chat

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"dealer/kiosk/internal/history"
)

const DefaultOpenAIModel = openai.ChatModelGPT4oMini

type OpenAI struct {
	client openai.Client
	model  openai.ChatModel
}

func NewOpenAI(apiKey, model string, httpc *http.Client, opts ...option.RequestOption) *OpenAI {
	// the shared chat.model default names a Gemini model
	m := openai.ChatModel(model)
	if model == "" || strings.HasPrefix(model, "gemini") {
		m = DefaultOpenAIModel
	}
	all := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpc != nil {
		all = append(all, option.WithHTTPClient(httpc))
	}
	all = append(all, opts...)
	return &OpenAI{client: openai.NewClient(all...), model: m}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, system string, msgs []history.Message) (string, error) {
	params := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(system)}
	for _, m := range msgs {
		if m.Role == history.RoleAssistant {
			params = append(params, openai.AssistantMessage(m.Text))
			continue
		}
		params = append(params, openai.UserMessage(m.Text))
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: params,
		Model:    o.model,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

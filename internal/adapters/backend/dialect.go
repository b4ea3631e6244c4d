package backend

import (
	"encoding/json"
	"fmt"

	"github.com/bnema/askdb/internal/domain"
	"github.com/bnema/askdb/internal/ports"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DialectOllama = "ollama"
	DialectOpenAI = "openai"

	ollamaChatPath   = "api/chat"
	openAIChatPath   = "chat/completions"
	openAIModelsPath = "models"
)

// Ollama's native chat API wants tool call arguments as objects, so its
// request body is encoded with local types rather than go-openai's.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
	ToolName  string           `json:"tool_name,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaTool struct {
	Type     string         `json:"type"`
	Function ollamaFunction `json:"function"`
}

type ollamaFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

func encodeRequest(dialect string, model string, req ports.ChatRequest) ([]byte, string, error) {
	switch dialect {
	case DialectOllama:
		body, err := json.Marshal(buildOllamaRequest(model, req))
		if err != nil {
			return nil, "", fmt.Errorf("encode ollama request: %w", err)
		}
		return body, ollamaChatPath, nil
	case DialectOpenAI:
		body, err := json.Marshal(buildOpenAIRequest(model, req))
		if err != nil {
			return nil, "", fmt.Errorf("encode openai request: %w", err)
		}
		return body, openAIChatPath, nil
	default:
		return nil, "", fmt.Errorf("unsupported backend dialect %q", dialect)
	}
}

func buildOpenAIRequest(model string, req ports.ChatRequest) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		out := openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		for _, call := range msg.ToolCalls {
			arguments := domain.ArgumentsString(call.Arguments)
			if arguments == "" {
				arguments = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: arguments,
				},
			})
		}
		if msg.Role == domain.RoleTool {
			out.ToolCallID = msg.ToolCallID
		}
		messages = append(messages, out)
	}

	request := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	for _, def := range req.Tools {
		request.Tools = append(request.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return request
}

func buildOllamaRequest(model string, req ports.ChatRequest) ollamaChatRequest {
	messages := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, ollamaMessage{Role: string(domain.RoleSystem), Content: req.System})
	}

	for _, msg := range req.Messages {
		out := ollamaMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{
					Name:      call.Name,
					Arguments: domain.ArgumentsObject(call.Arguments),
				},
			})
		}
		if msg.Role == domain.RoleTool {
			out.ToolName = msg.ToolName
		}
		messages = append(messages, out)
	}

	request := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}
	for _, def := range req.Tools {
		request.Tools = append(request.Tools, ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	return request
}

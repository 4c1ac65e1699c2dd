package models

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/openai/openai-go/v3"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/recall/internal/utils"
)

// buildOpenAIParams converts an ADK request to OpenAI chat parameters.
func buildOpenAIParams(req *model.LLMRequest, modelName string) *openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}
	if req.Model == "" {
		params.Model = modelName
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.Config != nil {
		if system := strings.TrimSpace(utils.ExtractContentText(req.Config.SystemInstruction)); system != "" {
			messages = append(messages, openai.SystemMessage(system))
		}
	}
	messages = append(messages, convertContentsToMessages(req.Contents)...)
	if len(messages) > 0 {
		params.Messages = messages
	}

	if req.Config == nil {
		return &params
	}

	cfg := req.Config
	if cfg.Temperature != nil {
		params.Temperature = openai.Float(float64(*cfg.Temperature))
	}
	if cfg.TopP != nil {
		params.TopP = openai.Float(float64(*cfg.TopP))
	}
	if cfg.MaxOutputTokens > 0 {
		params.MaxTokens = openai.Int(int64(cfg.MaxOutputTokens))
	}
	if cfg.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(float64(*cfg.FrequencyPenalty))
	}
	if cfg.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(float64(*cfg.PresencePenalty))
	}
	if len(cfg.StopSequences) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: cfg.StopSequences}
	}
	if tools := convertToolsToOpenAI(cfg.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	return &params
}

// convertToolsToOpenAI converts function declarations to OpenAI function tools.
func convertToolsToOpenAI(tools []*genai.Tool) []openai.ChatCompletionToolUnionParam {
	var result []openai.ChatCompletionToolUnionParam
	for _, t := range tools {
		if t == nil {
			continue
		}
		for _, fn := range t.FunctionDeclarations {
			result = append(result, openai.ChatCompletionToolUnionParam{
				OfFunction: &openai.ChatCompletionFunctionToolParam{
					Function: openai.FunctionDefinitionParam{
						Name:        fn.Name,
						Description: openai.String(fn.Description),
						Parameters:  convertFunctionParameters(fn),
					},
				},
			})
		}
	}
	return result
}

// convertFunctionParameters prefers ParametersJsonSchema; genai.Schema parameters are not mapped.
func convertFunctionParameters(fn *genai.FunctionDeclaration) openai.FunctionParameters {
	switch schema := fn.ParametersJsonSchema.(type) {
	case *jsonschema.Schema:
		params := schemaToMap(schema)
		if _, ok := params["type"]; !ok {
			params["type"] = "object"
		}
		if _, ok := params["required"]; !ok {
			params["required"] = []string{}
		}
		return openai.FunctionParameters(params)
	case map[string]any:
		return openai.FunctionParameters(schema)
	default:
		return nil
	}
}

// schemaToMap round-trips through JSON so every keyword jsonschema-go knows survives.
func schemaToMap(schema *jsonschema.Schema) map[string]any {
	result := make(map[string]any)
	if schema == nil {
		return result
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		slog.Error("failed to marshal tool schema", "error", err.Error())
		return result
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		slog.Error("failed to decode tool schema", "error", err.Error())
		return make(map[string]any)
	}
	return result
}

// convertContentsToMessages converts genai contents to OpenAI messages.
func convertContentsToMessages(contents []*genai.Content) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	for _, content := range contents {
		if content == nil {
			continue
		}

		// function responses become tool messages
		var toolMessages []openai.ChatCompletionMessageParamUnion
		for _, part := range content.Parts {
			if part == nil || part.FunctionResponse == nil || part.FunctionResponse.ID == "" {
				continue
			}
			payload, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				slog.Error("failed to marshal function response", "error", err.Error())
				continue
			}
			toolMessages = append(toolMessages, openai.ToolMessage(string(payload), part.FunctionResponse.ID))
		}
		if len(toolMessages) > 0 {
			messages = append(messages, toolMessages...)
			continue
		}

		text := utils.ExtractContentText(content)
		switch content.Role {
		case "model", "assistant":
			messages = append(messages, openai.AssistantMessage(text))
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		default:
			messages = append(messages, openai.UserMessage(text))
		}
	}

	return messages
}

package models

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/recall/internal/types"
	"github.com/easeaico/recall/internal/utils"
)

const defaultCallTimeout = 30 * time.Second

// Gateway 是引擎和编排层使用的文本补全入口。
// 每次调用都有独立超时，任何失败都包装为 types.ErrGatewayUnavailable。
type Gateway struct {
	llm     model.LLM
	timeout time.Duration
}

// NewGateway 包装一个 model.LLM。
func NewGateway(llm model.LLM, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Gateway{llm: llm, timeout: timeout}
}

// Name 返回底层模型名。
func (g *Gateway) Name() string {
	if g == nil || g.llm == nil {
		return ""
	}
	return g.llm.Name()
}

// Complete 发起一次非流式补全并返回完整文本。
func (g *Gateway) Complete(ctx context.Context, systemPrompt string, conversation []types.Message, params GenerateParams) (string, error) {
	return g.run(ctx, systemPrompt, conversation, params, nil)
}

// Stream 与 Complete 相同，但每个增量文本会先交给 onDelta。
func (g *Gateway) Stream(ctx context.Context, systemPrompt string, conversation []types.Message, params GenerateParams, onDelta func(string)) (string, error) {
	return g.run(ctx, systemPrompt, conversation, params, onDelta)
}

func (g *Gateway) run(ctx context.Context, systemPrompt string, conversation []types.Message, params GenerateParams, onDelta func(string)) (string, error) {
	if g == nil || g.llm == nil {
		return "", fmt.Errorf("%w: gateway not configured", types.ErrGatewayUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := buildRequest(g.llm.Name(), systemPrompt, conversation, params)
	stream := onDelta != nil

	var (
		streamed strings.Builder
		final    string
		callErr  error
	)
	start := time.Now()
	for resp, err := range g.llm.GenerateContent(ctx, req, stream) {
		if err != nil {
			callErr = err
			break
		}
		if resp == nil {
			continue
		}
		text := utils.ExtractContentText(resp.Content)
		if resp.Partial {
			streamed.WriteString(text)
			onDelta(text)
			continue
		}
		final = text
		if !stream || resp.TurnComplete {
			break
		}
	}
	if callErr == nil && final == "" && streamed.Len() == 0 {
		callErr = ctx.Err()
	}
	if callErr != nil {
		slog.Error("llm call failed", "model", g.llm.Name(), "elapsed", time.Since(start), "error", callErr)
		return "", fmt.Errorf("%w: %w", types.ErrGatewayUnavailable, callErr)
	}

	// 流式时最终响应携带完整文本；若提供方只发增量，则以增量拼接为准。
	if final == "" {
		final = streamed.String()
	}
	slog.Debug("llm call completed", "model", g.llm.Name(), "elapsed", time.Since(start), "chars", len(final))
	return final, nil
}

// buildRequest 把对话消息转换为 adk 请求。system 角色的消息并入 SystemInstruction，
// 因为 Gemini 的 contents 只接受 user 与 model。
func buildRequest(modelName, systemPrompt string, conversation []types.Message, params GenerateParams) *model.LLMRequest {
	system := []string{}
	if s := strings.TrimSpace(systemPrompt); s != "" {
		system = append(system, s)
	}

	contents := make([]*genai.Content, 0, len(conversation))
	for _, msg := range conversation {
		switch msg.Role {
		case types.RoleSystem:
			system = append(system, msg.Content)
		case types.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	return &model.LLMRequest{
		Model:    modelName,
		Contents: contents,
		Config:   params.config(strings.Join(system, "\n\n")),
	}
}

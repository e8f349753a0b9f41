// Package chat implements the Chat Service (spec §4.6): free-form question
// answering over one project's retrieved RFP context, pinned to that context
// by system prompt and refusing to answer when the context doesn't cover it.
package chat

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/proposalforge/rfpflow/cache"
	"github.com/proposalforge/rfpflow/graph/model"
	"github.com/proposalforge/rfpflow/graph/tool"
	"github.com/proposalforge/rfpflow/llm"
	"github.com/proposalforge/rfpflow/retriever"
)

// NoAnswerText is the exact string the model must return verbatim when the
// retrieved context does not contain the answer (spec §4.6).
const NoAnswerText = "The provided RFP context does not contain this information."

// Turn is one message in a chat conversation, oldest first.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

const systemPrompt = `You answer questions about an RFP using ONLY the context provided below. Do not use outside knowledge. If the answer cannot be derived from the context, respond with exactly this sentence and nothing else: "` + NoAnswerText + `"

Context:
%s`

// Service answers chat questions about one project's RFP, backed by the
// Retriever for context and the LLM Gateway for generation. Tools, if set,
// lets the model reach for a calculator or web search before answering
// (spec §4.6's supplemented tool support); nil disables tool use entirely.
type Service struct {
	Gateway   *llm.Gateway
	Retriever *retriever.Retriever
	Cache     cache.Cache
	TopK      int
	Tools     []tool.Tool
}

func (s *Service) toolByName(name string) tool.Tool {
	for _, t := range s.Tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// Ask answers query in the context of projectID, using history (oldest
// first) to disambiguate follow-up questions. Responses are cached by
// (query, project_id, conversation_hash), where conversation_hash is the MD5
// of the last three turns (spec §4.6).
func (s *Service) Ask(ctx context.Context, projectID, query string, history []Turn) (string, error) {
	topK := s.TopK
	if topK <= 0 {
		topK = 5
	}

	cacheKey := s.cacheKey(projectID, query, history)
	if s.Cache != nil && cacheKey != "" {
		if cached, ok, err := s.Cache.Get(ctx, cacheKey); err == nil && ok {
			return string(cached), nil
		}
	}

	var contextText string
	if s.Retriever != nil {
		results, err := s.Retriever.Query(ctx, query, retriever.QueryOptions{TopK: topK, ProjectID: projectID})
		if err == nil {
			contextText = joinResults(results)
		}
	}
	if strings.TrimSpace(contextText) == "" {
		return NoAnswerText, nil
	}

	messages := make([]model.Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, model.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, model.Message{Role: "user", Content: query})
	messages = append([]model.Message{{Role: "system", Content: fmt.Sprintf(systemPrompt, contextText)}}, messages...)

	var tools []model.ToolSpec
	if len(s.Tools) > 0 {
		tools = ToolSpecs
	}

	result, err := s.Gateway.Complete(ctx, llm.CompletionRequest{
		Task:        llm.TaskFastGeneration,
		Messages:    messages,
		Tools:       tools,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	// One round of tool use: run whatever the model asked for, feed the
	// results back, and ask once more for a final answer.
	if len(result.ToolCalls) > 0 {
		messages = append(messages, model.Message{Role: "assistant", Content: result.Text})
		for _, call := range result.ToolCalls {
			messages = append(messages, model.Message{Role: "user", Content: s.runTool(ctx, call)})
		}
		result, err = s.Gateway.Complete(ctx, llm.CompletionRequest{
			Task:        llm.TaskFastGeneration,
			Messages:    messages,
			Temperature: 0,
		})
		if err != nil {
			return "", err
		}
	}

	answer := strings.TrimSpace(result.Text)
	if answer == "" {
		answer = NoAnswerText
	}

	if s.Cache != nil && cacheKey != "" {
		_ = s.Cache.Set(ctx, cacheKey, []byte(answer), cache.LLMResponseTTL)
	}
	return answer, nil
}

func (s *Service) runTool(ctx context.Context, call model.ToolCall) string {
	t := s.toolByName(call.Name)
	if t == nil {
		return fmt.Sprintf("tool %q is not available", call.Name)
	}
	out, err := t.Call(ctx, call.Input)
	if err != nil {
		return fmt.Sprintf("tool %q failed: %v", call.Name, err)
	}
	return fmt.Sprintf("tool %q result: %v", call.Name, out)
}

func (s *Service) cacheKey(projectID, query string, history []Turn) string {
	hash := conversationHash(history)
	return cache.Namespace("chat", fmt.Sprintf("%s:%s:%s", query, projectID, hash))
}

// conversationHash hashes the last three turns, oldest of the three first,
// so a cache entry is specific to the recent conversational context (spec
// §4.6).
func conversationHash(history []Turn) string {
	start := 0
	if len(history) > 3 {
		start = len(history) - 3
	}
	recent := history[start:]

	var sb strings.Builder
	for _, turn := range recent {
		sb.WriteString(turn.Role)
		sb.WriteString(":")
		sb.WriteString(turn.Content)
		sb.WriteString("\n")
	}
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func joinResults(results []retriever.Result) string {
	var sb strings.Builder
	for i, r := range results {
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, r.Text))
	}
	return sb.String()
}

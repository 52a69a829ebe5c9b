package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   usage        `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// chatChoice tolerates the shapes OpenAI-compatible providers return: the
// regular message, a streaming delta sent with stream=false, and the legacy
// completion text field.
type chatChoice struct {
	Message      replyMessage `json:"message"`
	Delta        replyMessage `json:"delta"`
	Text         string       `json:"text"`
	FinishReason string       `json:"finish_reason"`
}

type replyMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function functionCall `json:"function"`
	} `json:"tool_calls"`
	FunctionCall *functionCall `json:"function_call"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// payload returns the message text, or the arguments of a function or tool
// call when the model answered through one.
func (m replyMessage) payload() string {
	if content := strings.TrimSpace(m.Content); content != "" {
		return content
	}
	if m.FunctionCall != nil {
		if args := strings.TrimSpace(m.FunctionCall.Arguments); args != "" {
			return args
		}
	}
	for _, call := range m.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

// content returns the first non-empty payload across choices and the first
// reported finish reason.
func (r chatResponse) content() (string, string) {
	var finish string
	for _, choice := range r.Choices {
		if finish == "" {
			finish = strings.TrimSpace(choice.FinishReason)
		}
		for _, candidate := range []string{choice.Message.payload(), choice.Delta.payload(), strings.TrimSpace(choice.Text)} {
			if candidate != "" {
				return candidate, finish
			}
		}
	}
	return "", finish
}

func (r chatResponse) refusal() string {
	for _, choice := range r.Choices {
		if refusal := strings.TrimSpace(choice.Message.Refusal); refusal != "" {
			return refusal
		}
		if refusal := strings.TrimSpace(choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

type emptyContentError struct {
	Choices      int
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	if e.Choices == 0 {
		return fmt.Sprintf("llm complete: response has no choices (body: %s)", e.Snippet)
	}
	msg := fmt.Sprintf("llm complete: empty content (finish_reason=%q", e.FinishReason)
	if e.Refusal != "" {
		msg += fmt.Sprintf(", refusal=%q", e.Refusal)
	}
	return msg + ", body: " + e.Snippet + ")"
}

// DecodeLLMJSON decodes a model's JSON answer into target. Code fences and
// prose around the first complete JSON object or array are ignored.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	value := firstJSONValue(stripCodeFence(trimmed))
	if value == "" || value == trimmed {
		return fmt.Errorf("%w (payload: %s)", directErr, payloadSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		return fmt.Errorf("%w (extracted payload: %s)", err, payloadSnippet(value))
	}
	return nil
}

// firstJSONValue returns the first balanced {...} or [...] in s, skipping
// brackets inside string literals. It returns "" when none closes.
func firstJSONValue(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	var stack []byte
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != ch {
				return ""
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func payloadSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}

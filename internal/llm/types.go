// Package llm provides a bounded-concurrency client pool for
// OpenAI-compatible chat completion APIs.
package llm

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a caller-supplied chat completion request. It is immutable
// once submitted to the pool.
type Request struct {
	Messages    []ChatMessage
	Temperature float64
	MaxTokens   int

	// Optional parameters; omitted from the wire body when unset.
	TopP            *float64
	Seed            *int
	ReasoningEffort string
}

// Response holds the extracted content and token usage of a successful
// request. Usage fields are zero when the server omits them.
type Response struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// chatCompletionRequest is the request body for {base}/chat/completions.
type chatCompletionRequest struct {
	Model           string        `json:"model"`
	Messages        []ChatMessage `json:"messages"`
	Temperature     float64       `json:"temperature"`
	MaxTokens       int           `json:"max_tokens"`
	TopP            *float64      `json:"top_p,omitempty"`
	Seed            *int          `json:"seed,omitempty"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

// usage tracks token counts reported by the server.
type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatCompletionChoice is a single completion choice.
type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// chatCompletionResponse is the response from {base}/chat/completions.
type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Choices []chatCompletionChoice `json:"choices"`
	Usage   *usage                 `json:"usage"`
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// maxErrorBody bounds how much of an error response body is kept in the
// error message.
const maxErrorBody = 500

// doAttempt performs a single chat completion attempt under ctx. It
// returns either a fully populated Response or a classified *Error.
func (p *Pool) doAttempt(ctx context.Context, body []byte) (*Response, *Error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, wrapError(KindProtocol, "create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapError(KindTimeout, "request deadline elapsed", err)
		}
		if errors.Is(err, context.Canceled) {
			return nil, wrapError(KindTimeout, "request canceled", err)
		}
		return nil, wrapError(KindTransport, "send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp)
	}

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, wrapError(KindProtocol, "decode response", err)
	}
	if len(result.Choices) == 0 {
		return nil, newError(KindProtocol, 0, "response has no choices")
	}

	out := &Response{Content: result.Choices[0].Message.Content}
	if u := result.Usage; u != nil {
		out.PromptTokens = u.PromptTokens
		out.CompletionTokens = u.CompletionTokens
		out.TotalTokens = u.TotalTokens
		if out.TotalTokens == 0 {
			out.TotalTokens = u.PromptTokens + u.CompletionTokens
		}
	}
	return out, nil
}

// classifyStatus maps a non-200 response to the error taxonomy. Only the
// status code is load-bearing; the body is kept as advisory detail.
func classifyStatus(resp *http.Response) *Error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := string(snippet)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		e := newError(KindRateLimited, resp.StatusCode, msg)
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		return e
	case resp.StatusCode >= 500:
		return newError(KindServer, resp.StatusCode, msg)
	default:
		return newError(KindClient, resp.StatusCode, msg)
	}
}

// parseRetryAfter reads a Retry-After header value, which is either a
// delay in seconds or an HTTP date. Returns zero when absent or invalid.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// buildBody serializes a Request into the wire format, applying the
// pool's model and default reasoning effort.
func (p *Pool) buildBody(req Request) ([]byte, *Error) {
	effort := req.ReasoningEffort
	if effort == "" {
		effort = p.cfg.ReasoningEffort
	}
	wire := chatCompletionRequest{
		Model:           p.cfg.Model,
		Messages:        req.Messages,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
		TopP:            req.TopP,
		Seed:            req.Seed,
		ReasoningEffort: effort,
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return nil, wrapError(KindProtocol, fmt.Sprintf("marshal request for model %q", p.cfg.Model), err)
	}
	return body, nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scripted reasoning client for tests.
//
// A call is answered, in order of precedence, by the configured error, the
// response function, a reply registered for the request's system prompt,
// the next queued reply, and finally "{}".
//
// Thread Safety:
//
//	MockClient is safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	model    string
	delay    time.Duration
	err      error
	fn       func(*Request) (*Response, error)
	bySystem map[string]string
	missing  error
	queue    []string
	requests []*Request
}

// NewMockClient creates a mock that answers "{}" until scripted.
func NewMockClient() *MockClient {
	return &MockClient{model: "mock-model"}
}

// WithModel sets the model name.
func (c *MockClient) WithModel(model string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.model = model
	return c
}

// WithDelay adds latency to every call. The delay honors cancellation.
func (c *MockClient) WithDelay(d time.Duration) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
	return c
}

// WithError makes every call fail with err.
func (c *MockClient) WithError(err error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
	return c
}

// WithResponseFunc answers every call with fn.
func (c *MockClient) WithResponseFunc(fn func(*Request) (*Response, error)) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fn = fn
	return c
}

// WithSystemReplies answers a request whose system prompt is a key of
// replies with the mapped content. Any other prompt fails with missing;
// a nil missing falls through to the queue.
func (c *MockClient) WithSystemReplies(replies map[string]string, missing error) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySystem = replies
	c.missing = missing
	return c
}

// QueueContent queues a raw reply.
func (c *MockClient) QueueContent(content string) *MockClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, content)
	return c
}

// QueueJSON queues v encoded as JSON.
func (c *MockClient) QueueJSON(v any) *MockClient {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock: marshal queued reply: %v", err))
	}
	return c.QueueContent(string(data))
}

// Complete implements Client.
func (c *MockClient) Complete(ctx context.Context, request *Request) (*Response, error) {
	if request == nil {
		return nil, ErrNilRequest
	}

	c.mu.Lock()
	c.requests = append(c.requests, request)
	delay := c.delay
	c.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.err != nil:
		return nil, c.err
	case c.fn != nil:
		return c.fn(request)
	}
	if c.bySystem != nil {
		if content, ok := c.bySystem[request.SystemPrompt]; ok {
			return c.reply(content, delay), nil
		}
		if c.missing != nil {
			return nil, c.missing
		}
	}
	content := "{}"
	if len(c.queue) > 0 {
		content, c.queue = c.queue[0], c.queue[1:]
	}
	return c.reply(content, delay), nil
}

func (c *MockClient) reply(content string, delay time.Duration) *Response {
	out := len(content) / 4
	return &Response{
		Content:      content,
		StopReason:   "end",
		TokensUsed:   100 + out,
		InputTokens:  100,
		OutputTokens: out,
		Duration:     delay,
		Model:        c.model,
	}
}

// Name implements Client.
func (c *MockClient) Name() string { return "mock" }

// Model implements Client.
func (c *MockClient) Model() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.model
}

// CallCount returns the number of calls made.
func (c *MockClient) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		return nil
	}
	return c.requests[len(c.requests)-1]
}

// Reset drops the script and the recorded calls.
func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err, c.fn, c.bySystem, c.missing = nil, nil, nil, nil
	c.queue, c.requests = nil, nil
	c.delay = 0
}

// Verify reports queued replies that were never consumed.
func (c *MockClient) Verify() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) > 0 {
		return fmt.Errorf("mock: %d queued replies not consumed", len(c.queue))
	}
	return nil
}

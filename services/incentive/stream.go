// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package incentive

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/tesvik/services/incentive/dag"
	"github.com/AleutianAI/tesvik/services/incentive/telemetry"
)

// Stream event kinds.
const (
	EventNode   = "node"
	EventResult = "result"
	EventError  = "error"
)

// writeWait bounds every websocket write.
const writeWait = 10 * time.Second

// StreamEvent is one message on /v1/analyze/stream.
type StreamEvent struct {
	Event      string           `json:"event"`
	Node       string           `json:"node,omitempty"`
	DurationMS int64            `json:"duration_ms,omitempty"`
	Error      string           `json:"error,omitempty"`
	Code       string           `json:"code,omitempty"`
	Result     *AnalyzeResponse `json:"result,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamObserver forwards node outcomes to the socket.
type streamObserver struct {
	mu     sync.Mutex
	ws     *websocket.Conn
	failed bool
}

func (o *streamObserver) send(ev StreamEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failed {
		return errors.New("websocket closed")
	}
	_ = o.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := o.ws.WriteJSON(ev); err != nil {
		o.failed = true
		return err
	}
	return nil
}

func (o *streamObserver) NodeFinished(_, node string, d time.Duration, err error) {
	ev := StreamEvent{Event: EventNode, Node: node, DurationMS: d.Milliseconds()}
	if err != nil {
		ev.Error = err.Error()
	}
	_ = o.send(ev)
}

func (o *streamObserver) RunFinished(string, time.Duration, error) {}

// HandleAnalyzeStream handles GET /v1/analyze/stream.
//
// Description:
//
//	Upgrades to a websocket, reads one AnalyzeRequest, sends a "node"
//	event as each step finishes, then a single "result" or "error" event,
//	then closes.
func (h *Handlers) HandleAnalyzeStream(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := telemetry.LoggerWithTrace(c.Request.Context(), h.logger).With(
		slog.String("request_id", requestID),
		slog.String("handler", "HandleAnalyzeStream"),
	)

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	obs := &streamObserver{ws: ws}
	var req AnalyzeRequest
	if err := ws.ReadJSON(&req); err != nil {
		_ = obs.send(StreamEvent{Event: EventError, Error: "invalid request body", Code: "INVALID_REQUEST"})
		return
	}

	ctx := dag.ContextWithObserver(c.Request.Context(), obs)
	resp, err := h.svc.Analyze(ctx, req)
	if err != nil {
		_, code := analyzeErrorStatus(ctx, err)
		logger.Error("analysis failed", slog.String("error", err.Error()))
		_ = obs.send(StreamEvent{Event: EventError, Error: err.Error(), Code: code})
		return
	}

	c.Set(resourceIDKey, resp.SessionID)
	if err := obs.send(StreamEvent{Event: EventResult, Result: resp}); err != nil {
		logger.Warn("client left before the result", slog.String("session_id", resp.SessionID))
		return
	}
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

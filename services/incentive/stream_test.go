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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesvik/services/incentive/nodes"
	"github.com/AleutianAI/tesvik/services/incentive/privacy"
)

func dialStream(t *testing.T, svc *Service, header http.Header) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(NewRouter(svc))
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/analyze/stream"
	ws, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvents(t *testing.T, ws *websocket.Conn) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for {
		var ev StreamEvent
		if err := ws.ReadJSON(&ev); err != nil {
			return events
		}
		events = append(events, ev)
		if ev.Event != EventNode {
			return events
		}
	}
}

func TestHandleAnalyzeStream(t *testing.T) {
	svc := newTestService(t, testConfig())
	ws := dialStream(t, svc, nil)

	require.NoError(t, ws.WriteJSON(AnalyzeRequest{
		Query:    "Gaziantep'te otel yatırımı",
		Entities: seeded("otel", "Gaziantep", 30_000_000),
	}))
	events := readEvents(t, ws)
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, EventResult, last.Event, "%+v", last)
	require.NotNil(t, last.Result)
	assert.True(t, last.Result.Saved)

	var streamed []string
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, EventNode, ev.Event)
		streamed = append(streamed, ev.Node)
	}
	assert.Equal(t, last.Result.Path, streamed, "one node event per step, in order")
	assert.Equal(t, nodes.NameEntityExtractor, streamed[0])

	rec, err := svc.Run(ctx, last.Result.SessionID)
	require.NoError(t, err)
	assert.Equal(t, last.Result.Path, rec.Path)
}

func TestHandleAnalyzeStream_Errors(t *testing.T) {
	t.Run("bad request", func(t *testing.T) {
		ws := dialStream(t, newTestService(t, testConfig()), nil)
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{")))
		events := readEvents(t, ws)
		require.Len(t, events, 1)
		assert.Equal(t, "INVALID_REQUEST", events[0].Code)
	})

	t.Run("sensitive query", func(t *testing.T) {
		cfg := testConfig()
		cfg.Privacy.Mode = privacy.ModeBlock
		ws := dialStream(t, newTestService(t, cfg), nil)
		require.NoError(t, ws.WriteJSON(AnalyzeRequest{Query: "TC 10000000146 otel"}))
		events := readEvents(t, ws)
		require.Len(t, events, 1)
		assert.Equal(t, EventError, events[0].Event)
		assert.Equal(t, "SENSITIVE_QUERY", events[0].Code)
	})
}

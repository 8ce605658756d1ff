// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesvik/pkg/extensions"
)

func TestAuditStore_LogQuery(t *testing.T) {
	store := NewAuditStore(openTestDB(t), 0)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []extensions.AuditEvent{
		{EventType: "analysis.create", UserID: "ayse", Timestamp: base, Outcome: extensions.OutcomeSuccess},
		{EventType: "rules.read", UserID: "mehmet", Timestamp: base.Add(time.Minute), Outcome: extensions.OutcomeSuccess},
		{EventType: "analysis.create", UserID: "ayse", Timestamp: base.Add(2 * time.Minute), Outcome: extensions.OutcomeFailure},
	}
	for _, e := range events {
		require.NoError(t, store.Log(ctx, e))
	}

	all, err := store.Query(ctx, extensions.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, extensions.OutcomeFailure, all[0].Outcome, "newest first")
	for _, e := range all {
		assert.NotEmpty(t, e.ID)
	}

	byUser, err := store.Query(ctx, extensions.AuditFilter{UserID: "ayse", Limit: 1})
	require.NoError(t, err)
	require.Len(t, byUser, 1)
	assert.True(t, byUser[0].Timestamp.Equal(base.Add(2*time.Minute)))

	window, err := store.Query(ctx, extensions.AuditFilter{
		StartTime: base.Add(30 * time.Second),
		EndTime:   base.Add(90 * time.Second),
	})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "rules.read", window[0].EventType)
}

func TestAuditStore_Defaults(t *testing.T) {
	store := NewAuditStore(openTestDB(t), time.Hour)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	store.now = func() time.Time { return fixed }
	ctx := context.Background()

	assert.Error(t, store.Log(ctx, extensions.AuditEvent{}), "event type is required")
	require.NoError(t, store.Log(ctx, extensions.AuditEvent{EventType: "runs.list"}))

	got, err := store.Query(ctx, extensions.AuditFilter{EventTypes: []string{"runs.list"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Timestamp.Equal(fixed))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Log(cancelled, extensions.AuditEvent{EventType: "x"}), context.Canceled)
}

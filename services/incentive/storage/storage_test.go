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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err, "persistent database without path")

	_, err = Open(Config{InMemory: true, GCDiscardRatio: 2})
	assert.Error(t, err)
}

func TestOpen_OnDiskWithGC(t *testing.T) {
	cfg := DefaultConfig(t.TempDir())
	cfg.GCInterval = 10 * time.Millisecond
	cfg.SyncWrites = false

	db, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("k"), []byte("v"), 0))
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, db.Close())
	assert.NoError(t, db.Close(), "second close is a no-op")
}

func TestDB_GetSetDelete(t *testing.T) {
	db := openTestDB(t)

	_, err := db.Get([]byte("missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Set([]byte("a"), []byte("1"), 0))
	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	require.NoError(t, db.Delete([]byte("a")))
	_, err = db.Get([]byte("a"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDB_Scan(t *testing.T) {
	db := openTestDB(t)
	for _, k := range []string{"p/2", "p/1", "q/1"} {
		require.NoError(t, db.Set([]byte(k), []byte(k), 0))
	}

	var keys []string
	require.NoError(t, db.Scan([]byte("p/"), func(k, _ []byte) error {
		keys = append(keys, string(k))
		return nil
	}))
	assert.Equal(t, []string{"p/1", "p/2"}, keys)

	stop := errors.New("stop")
	err := db.Scan([]byte("p/"), func(_, _ []byte) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func TestDB_BackupRestore(t *testing.T) {
	src := openTestDB(t)
	require.NoError(t, src.Set([]byte("run/a"), []byte("1"), 0))
	require.NoError(t, src.Set([]byte("audit/b"), []byte("2"), 0))

	var buf bytes.Buffer
	version, err := src.Backup(&buf)
	require.NoError(t, err)
	assert.NotZero(t, version)

	dst := openTestDB(t)
	require.NoError(t, dst.Set([]byte("local"), []byte("kept"), 0))
	require.NoError(t, dst.Restore(&buf))

	for k, want := range map[string]string{"run/a": "1", "audit/b": "2", "local": "kept"} {
		got, err := dst.Get([]byte(k))
		require.NoError(t, err, k)
		assert.Equal(t, want, string(got))
	}

	require.NoError(t, src.Close())
	_, err = src.Backup(&buf)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestDB_ClosedOperations(t *testing.T) {
	db, err := OpenInMemory()
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("k"), []byte("v"), 0))
	require.NoError(t, db.Close())

	_, err = db.Get([]byte("k"))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Set([]byte("k"), []byte("v"), 0), ErrClosed)
	assert.ErrorIs(t, db.Delete([]byte("k")), ErrClosed)
	assert.ErrorIs(t, db.Scan([]byte("k"), func(_, _ []byte) error { return nil }), ErrClosed)
	_, err = db.Backup(&bytes.Buffer{})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, db.Restore(&bytes.Buffer{}), ErrClosed)
	assert.NoError(t, db.Close(), "second close is a no-op")
}

func sampleRun(id string, at time.Time) *RunRecord {
	region := 3
	return &RunRecord{
		SessionID:  id,
		Query:      "Gaziantep'te otel yatırımı",
		CreatedAt:  at,
		Duration:   1500 * time.Millisecond,
		Path:       []string{"entity_extractor", "rule_auditor", "final_report_synthesizer"},
		NodeErrors: map[string]string{"retrieve_documents": "timeout"},
		State: analysis.State{
			Query:            "Gaziantep'te otel yatırımı",
			Entities:         &analysis.Entities{Topic: "otel"},
			RegionResolution: &analysis.RegionResolution{City: "Gaziantep", Physical: &region},
			FinalReport:      &analysis.FinalReport{Title: "Rapor", LegalReferences: []string{"2012/3305"}},
		},
	}
}

func TestRunStore_SaveGet(t *testing.T) {
	store := NewRunStore(openTestDB(t), 0)
	ctx := context.Background()
	rec := sampleRun("abc123", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Get(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, rec.Query, got.Query)
	assert.Equal(t, rec.Path, got.Path)
	assert.Equal(t, rec.NodeErrors, got.NodeErrors)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.State.RegionResolution)
	assert.Equal(t, 3, *got.State.RegionResolution.Physical)
	assert.Equal(t, "Rapor", got.State.FinalReport.Title)
}

func TestRunStore_Errors(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db, 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "../etc")
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	assert.ErrorIs(t, store.Save(ctx, sampleRun("", time.Now())), ErrInvalidSessionID)
	assert.Error(t, store.Save(ctx, nil))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, store.Save(cancelled, sampleRun("x", time.Now())), context.Canceled)
}

func TestRunStore_DetectsTampering(t *testing.T) {
	db := openTestDB(t)
	store := NewRunStore(db, 0)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleRun("abc", time.Now())))

	raw, err := db.Get([]byte(runPrefix + "abc"))
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	env.Record.Query = "değiştirilmiş"
	tampered, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte(runPrefix+"abc"), tampered, 0))

	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	runs, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "tampered records are skipped")
}

func TestRunStore_ListNewestFirst(t *testing.T) {
	store := NewRunStore(openTestDB(t), 0)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Save(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := store.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].SessionID)
	assert.Equal(t, "b", runs[1].SessionID)
}

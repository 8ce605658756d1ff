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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/AleutianAI/tesvik/pkg/validation"
	"github.com/AleutianAI/tesvik/services/incentive/analysis"
)

// RunFormatVersion is the current run record format version.
const RunFormatVersion = "1.0.0"

const runPrefix = "run/"

var (
	// ErrChecksumMismatch indicates a stored record failed verification.
	ErrChecksumMismatch = errors.New("run record checksum mismatch")

	// ErrInvalidSessionID indicates an empty or malformed session ID.
	ErrInvalidSessionID = errors.New("invalid session id")
)

// RunRecord is the persisted outcome of one analysis.
type RunRecord struct {
	SessionID  string            `json:"session_id"`
	Query      string            `json:"query"`
	CreatedAt  time.Time         `json:"created_at"`
	Duration   time.Duration     `json:"duration"`
	Path       []string          `json:"path"`
	NodeErrors map[string]string `json:"node_errors,omitempty"`
	State      analysis.State    `json:"state"`
}

// envelope is the on-disk form. The checksum covers every other field.
type envelope struct {
	Version  string     `json:"version"`
	Record   *RunRecord `json:"record"`
	Checksum string     `json:"checksum"`
}

func checksum(version string, rec *RunRecord) (string, error) {
	data, err := json.Marshal(struct {
		Version string     `json:"version"`
		Record  *RunRecord `json:"record"`
	}{version, rec})
	if err != nil {
		return "", fmt.Errorf("marshal for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// RunStore persists analysis runs in a DB.
//
// Thread Safety:
//
//	Safe for concurrent use.
type RunStore struct {
	db  *DB
	ttl time.Duration
}

// NewRunStore creates a run store. A positive ttl expires old runs.
func NewRunStore(db *DB, ttl time.Duration) *RunStore {
	return &RunStore{db: db, ttl: ttl}
}

// Save writes rec, replacing any record with the same session ID.
func (s *RunStore) Save(ctx context.Context, rec *RunRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil {
		return errors.New("storage: nil run record")
	}
	if validation.ValidateSessionID(rec.SessionID) != nil {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, rec.SessionID)
	}

	sum, err := checksum(RunFormatVersion, rec)
	if err != nil {
		return err
	}
	data, err := json.Marshal(envelope{Version: RunFormatVersion, Record: rec, Checksum: sum})
	if err != nil {
		return fmt.Errorf("storage: marshal run: %w", err)
	}
	return s.db.Set([]byte(runPrefix+rec.SessionID), data, s.ttl)
}

// Get loads and verifies the run with the given session ID.
//
// Outputs:
//
//	*RunRecord - The stored run.
//	error - ErrNotFound, ErrChecksumMismatch, or a decode error.
func (s *RunStore) Get(ctx context.Context, sessionID string) (*RunRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if validation.ValidateSessionID(sessionID) != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	data, err := s.db.Get([]byte(runPrefix + sessionID))
	if err != nil {
		return nil, err
	}
	return decodeRun(data)
}

// List returns up to limit runs, newest first. Records failing verification
// are skipped. A limit of zero or less means no limit.
func (s *RunStore) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	var runs []*RunRecord
	err := s.db.Scan([]byte(runPrefix), func(_, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := decodeRun(value)
		if err != nil {
			return nil
		}
		runs = append(runs, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list runs: %w", err)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func decodeRun(data []byte) (*RunRecord, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("storage: decode run: %w", err)
	}
	if env.Record == nil {
		return nil, fmt.Errorf("storage: decode run: empty record")
	}
	want, err := checksum(env.Version, env.Record)
	if err != nil {
		return nil, err
	}
	if want != env.Checksum {
		return nil, ErrChecksumMismatch
	}
	return env.Record, nil
}

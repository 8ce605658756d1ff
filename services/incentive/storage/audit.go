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
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/tesvik/pkg/extensions"
)

const auditPrefix = "audit/"

// AuditStore is an extensions.AuditLogger backed by a DB.
//
// Keys are "audit/<unix nanos>/<id>" so a prefix scan yields events oldest
// first. A positive retention expires events.
type AuditStore struct {
	db        *DB
	retention time.Duration
	now       func() time.Time
}

// NewAuditStore creates an audit store.
func NewAuditStore(db *DB, retention time.Duration) *AuditStore {
	return &AuditStore{db: db, retention: retention, now: time.Now}
}

// Log implements extensions.AuditLogger.
func (s *AuditStore) Log(ctx context.Context, event extensions.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.EventType == "" {
		return errors.New("storage: audit event without type")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("storage: marshal audit event: %w", err)
	}
	key := fmt.Sprintf("%s%020d/%s", auditPrefix, event.Timestamp.UnixNano(), event.ID)
	return s.db.Set([]byte(key), data, s.retention)
}

// Query implements extensions.AuditLogger. Undecodable entries are skipped.
func (s *AuditStore) Query(ctx context.Context, filter extensions.AuditFilter) ([]extensions.AuditEvent, error) {
	events := []extensions.AuditEvent{}
	err := s.db.Scan([]byte(auditPrefix), func(_, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var e extensions.AuditEvent
		if err := json.Unmarshal(value, &e); err != nil {
			return nil
		}
		if filter.Matches(e) {
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: query audit events: %w", err)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})
	if filter.Limit > 0 && len(events) > filter.Limit {
		events = events[:filter.Limit]
	}
	return events, nil
}

var _ extensions.AuditLogger = (*AuditStore)(nil)

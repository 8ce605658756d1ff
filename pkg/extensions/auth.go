// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"slices"
)

// ErrUnauthorized is returned when a token is missing or invalid.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when a valid user lacks a required role.
var ErrForbidden = errors.New("forbidden")

// Roles.
const (
	RoleAnalyst = "analyst"
	RoleAuditor = "auditor"
	RoleAdmin   = "admin"
)

// LocalUserID is the identity of every request without authentication.
const LocalUserID = "local-user"

// AuthInfo is an authenticated caller.
type AuthInfo struct {
	// UserID is never empty.
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles,omitempty"`
}

// HasRole reports whether the user has role. Admins have every role.
func (a *AuthInfo) HasRole(role string) bool {
	if a == nil {
		return false
	}
	return slices.Contains(a.Roles, role) || slices.Contains(a.Roles, RoleAdmin)
}

// AuthProvider validates tokens and returns the caller's identity.
type AuthProvider interface {
	// Validate returns the identity for token, or an error wrapping
	// ErrUnauthorized.
	Validate(ctx context.Context, token string) (*AuthInfo, error)

	// Required reports whether requests without a token are rejected.
	Required() bool
}

// NopAuthProvider accepts any token as the local admin user.
type NopAuthProvider struct{}

// Validate always succeeds.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{UserID: LocalUserID, Roles: []string{RoleAdmin}}, nil
}

// Required is false.
func (p *NopAuthProvider) Required() bool { return false }

// TokenUser is one configured API token.
type TokenUser struct {
	Token  string   `yaml:"token" json:"token"`
	UserID string   `yaml:"user" json:"user"`
	Roles  []string `yaml:"roles" json:"roles"`
}

type tokenEntry struct {
	digest [sha256.Size]byte
	info   AuthInfo
}

// TokenAuthProvider validates static bearer tokens.
//
// Tokens are kept as SHA-256 digests and compared in constant time.
//
// Thread Safety:
//
//	Immutable after construction.
type TokenAuthProvider struct {
	entries []tokenEntry
}

// NewTokenAuthProvider builds a provider. Entries with an empty token or
// user are skipped; users without roles get RoleAnalyst.
func NewTokenAuthProvider(users []TokenUser) *TokenAuthProvider {
	p := &TokenAuthProvider{}
	for _, u := range users {
		if u.Token == "" || u.UserID == "" {
			continue
		}
		roles := slices.Clone(u.Roles)
		if len(roles) == 0 {
			roles = []string{RoleAnalyst}
		}
		p.entries = append(p.entries, tokenEntry{
			digest: sha256.Sum256([]byte(u.Token)),
			info:   AuthInfo{UserID: u.UserID, Roles: roles},
		})
	}
	return p
}

// Validate looks up token.
func (p *TokenAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	digest := sha256.Sum256([]byte(token))
	var found *AuthInfo
	for i := range p.entries {
		if subtle.ConstantTimeCompare(digest[:], p.entries[i].digest[:]) == 1 {
			info := p.entries[i].info
			found = &info
		}
	}
	if found == nil {
		return nil, ErrUnauthorized
	}
	return found, nil
}

// Required is true.
func (p *TokenAuthProvider) Required() bool { return true }

var (
	_ AuthProvider = (*NopAuthProvider)(nil)
	_ AuthProvider = (*TokenAuthProvider)(nil)
)

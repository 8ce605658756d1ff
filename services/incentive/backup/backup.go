// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package backup moves database snapshots to and from a local file or a
// Google Cloud Storage object.
//
// Destinations are written as "gs://bucket/path/to/object" or as a local
// path. Local writes go through a temporary file that is renamed into
// place on Close, so a failed backup never replaces a good one.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// ErrInvalidLocation is returned for an unusable destination.
var ErrInvalidLocation = errors.New("invalid backup location")

const gcsScheme = "gs://"

// Target is one backup location.
type Target interface {
	// Create opens the location for writing. The snapshot is committed
	// by Close.
	Create(ctx context.Context) (io.WriteCloser, error)

	// Open reads a committed snapshot.
	Open(ctx context.Context) (io.ReadCloser, error)

	// Close releases the client behind the target.
	Close() error

	// String is the location as the user wrote it.
	String() string
}

// Options configures remote targets.
type Options struct {
	// CredentialsFile is a service account key for GCS. Empty uses the
	// application default credentials.
	CredentialsFile string
}

// Parse resolves location to a target.
func Parse(ctx context.Context, location string, opts Options) (Target, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidLocation)
	}
	if !strings.HasPrefix(location, gcsScheme) {
		return &File{Path: location}, nil
	}
	bucket, object, err := splitGCS(location)
	if err != nil {
		return nil, err
	}
	return NewGCS(ctx, bucket, object, opts)
}

func splitGCS(location string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(location, gcsScheme)
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%w: %q needs gs://bucket/object", ErrInvalidLocation, location)
	}
	return bucket, object, nil
}

// File is a snapshot on the local filesystem.
type File struct {
	Path string
}

// Create implements Target.
func (f *File) Create(_ context.Context) (io.WriteCloser, error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("backup: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	return &atomicFile{File: tmp, dest: f.Path}, nil
}

// Open implements Target.
func (f *File) Open(_ context.Context) (io.ReadCloser, error) {
	r, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("backup: %w", err)
	}
	return r, nil
}

// Close implements Target.
func (f *File) Close() error { return nil }

func (f *File) String() string { return f.Path }

// atomicFile renames the temporary file over dest on Close.
type atomicFile struct {
	*os.File
	dest string
}

func (a *atomicFile) Close() error {
	name := a.File.Name()
	if err := a.File.Sync(); err != nil {
		_ = a.File.Close()
		_ = os.Remove(name)
		return fmt.Errorf("backup: sync: %w", err)
	}
	if err := a.File.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("backup: close: %w", err)
	}
	if err := os.Rename(name, a.dest); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("backup: commit: %w", err)
	}
	return nil
}

// GCS is a snapshot stored as one Cloud Storage object.
type GCS struct {
	client *gcs.Client
	bucket string
	object string
}

// NewGCS creates a Cloud Storage target.
func NewGCS(ctx context.Context, bucket, object string, opts Options) (*GCS, error) {
	var clientOpts []option.ClientOption
	if opts.CredentialsFile != "" {
		if _, err := os.Stat(opts.CredentialsFile); err != nil {
			return nil, fmt.Errorf("backup: service account key %s: %w", opts.CredentialsFile, err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	client, err := gcs.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("backup: create storage client: %w", err)
	}
	return &GCS{client: client, bucket: bucket, object: object}, nil
}

// Create implements Target.
func (g *GCS) Create(ctx context.Context) (io.WriteCloser, error) {
	w := g.client.Bucket(g.bucket).Object(g.object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	return w, nil
}

// Open implements Target.
func (g *GCS) Open(ctx context.Context) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("backup: read %s: %w", g, err)
	}
	return r, nil
}

// Close implements Target.
func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) String() string { return gcsScheme + g.bucket + "/" + g.object }

var (
	_ Target = (*File)(nil)
	_ Target = (*GCS)(nil)
)

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Local(t *testing.T) {
	target, err := Parse(context.Background(), " /tmp/tesvik.bak ", Options{})
	require.NoError(t, err)
	assert.Equal(t, &File{Path: "/tmp/tesvik.bak"}, target)

	_, err = Parse(context.Background(), "", Options{})
	assert.ErrorIs(t, err, ErrInvalidLocation)
}

func TestSplitGCS(t *testing.T) {
	tests := []struct {
		location       string
		bucket, object string
		wantErr        bool
	}{
		{"gs://yedek/tesvik/2024-05-01.bak", "yedek", "tesvik/2024-05-01.bak", false},
		{"gs://yedek/x", "yedek", "x", false},
		{"gs://yedek", "", "", true},
		{"gs://yedek/", "", "", true},
		{"gs:///x", "", "", true},
		{"gs://yedek/dir/", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			bucket, object, err := splitGCS(tt.location)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidLocation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.object, object)
		})
	}
}

func TestParse_GCSMissingKey(t *testing.T) {
	_, err := Parse(context.Background(), "gs://yedek/x.bak", Options{
		CredentialsFile: filepath.Join(t.TempDir(), "absent.json"),
	})
	assert.Error(t, err)
}

func TestFile_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "db.bak")
	target := &File{Path: path}

	w, err := target.Create(ctx)
	require.NoError(t, err)
	_, err = io.WriteString(w, "snapshot")
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is visible before Close")
	require.NoError(t, w.Close())

	r, err := target.Open(ctx)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file removed")
	assert.NoError(t, target.Close())
	assert.Equal(t, path, target.String())
}

func TestFile_OpenMissing(t *testing.T) {
	_, err := (&File{Path: filepath.Join(t.TempDir(), "none")}).Open(context.Background())
	assert.Error(t, err)
}

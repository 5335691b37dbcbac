// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestination(t *testing.T) {
	tests := []struct {
		raw     string
		want    Destination
		wantErr bool
	}{
		{raw: "gs://reports", want: Destination{Scheme: "gs", Bucket: "reports"}},
		{raw: "gs://reports/ci/main/", want: Destination{Scheme: "gs", Bucket: "reports", Prefix: "ci/main"}},
		{raw: " s3://audit/licenseguard ", want: Destination{Scheme: "s3", Bucket: "audit", Prefix: "licenseguard"}},
		{raw: "reports/ci", wantErr: true},
		{raw: "https://example.com/x", wantErr: true},
		{raw: "s3:///prefix-only", wantErr: true},
		{raw: "gs://%zz", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDestination(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDestination_StringAndKey(t *testing.T) {
	d := Destination{Scheme: "gs", Bucket: "b", Prefix: "ci"}
	assert.Equal(t, "gs://b/ci", d.String())
	assert.Equal(t, "ci/run-1/report.csv", d.ObjectKey("run-1", "/tmp/out/report.csv"))

	bare := Destination{Scheme: "s3", Bucket: "b"}
	assert.Equal(t, "s3://b", bare.String())
	assert.Equal(t, "run-1/findings.sarif", bare.ObjectKey("run-1", "findings.sarif"))
}

type recordingUploader struct {
	mu   sync.Mutex
	keys []string
	fail map[string]bool
}

func (r *recordingUploader) Upload(_ context.Context, localPath, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail[filepath.Base(localPath)] {
		return errors.New("denied")
	}
	r.keys = append(r.keys, key)
	return nil
}

func (r *recordingUploader) Close() error { return nil }

func TestUploadRun(t *testing.T) {
	up := &recordingUploader{fail: map[string]bool{"bad.json": true}}
	dest := Destination{Scheme: "gs", Bucket: "reports", Prefix: "ci"}

	urls, err := UploadRun(context.Background(), up, dest, "abc", []string{"out/report.csv", "out/bad.json", "out/report.sarif"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
	assert.Equal(t, []string{"gs://reports/ci/abc/report.csv", "gs://reports/ci/abc/report.sarif"}, urls)
	assert.Equal(t, []string{"ci/abc/report.csv", "ci/abc/report.sarif"}, up.keys)
}

func TestUploadRun_RequiresRunID(t *testing.T) {
	_, err := UploadRun(context.Background(), &recordingUploader{}, Destination{}, "", []string{"x"})
	assert.Error(t, err)
}

func TestS3ConfigFromEnv(t *testing.T) {
	t.Setenv("LICENSEGUARD_S3_ENDPOINT", "minio:9000")
	t.Setenv("LICENSEGUARD_S3_ACCESS_KEY", "ak")
	t.Setenv("LICENSEGUARD_S3_SECRET_KEY", "sk")
	t.Setenv("LICENSEGUARD_S3_REGION", "")
	t.Setenv("LICENSEGUARD_S3_USE_SSL", "false")

	cfg := S3ConfigFromEnv()
	assert.Equal(t, "minio:9000", cfg.Endpoint)
	assert.Equal(t, "ak", cfg.AccessKey)
	assert.False(t, cfg.UseSSL)

	t.Setenv("LICENSEGUARD_S3_USE_SSL", "not-a-bool")
	assert.True(t, S3ConfigFromEnv().UseSSL)
}

func TestNewS3Uploader_Validation(t *testing.T) {
	_, err := NewS3Uploader(S3Config{AccessKey: "a", SecretKey: "s", Bucket: "b"})
	assert.ErrorContains(t, err, "endpoint")
	_, err = NewS3Uploader(S3Config{Endpoint: "localhost:9000", Bucket: "b"})
	assert.ErrorContains(t, err, "access key")
	_, err = NewS3Uploader(S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"})
	assert.ErrorContains(t, err, "bucket")
}

func TestS3Uploader_Upload(t *testing.T) {
	var (
		mu       sync.Mutex
		requests []string
		body     string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		requests = append(requests, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			b, _ := io.ReadAll(r.Body)
			body = string(b)
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	local := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(local, []byte("file,line\n"), 0o644))

	up, err := NewS3Uploader(S3Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "ak",
		SecretKey: "sk",
		Bucket:    "audit",
	})
	require.NoError(t, err)
	defer up.Close()

	require.NoError(t, up.Upload(context.Background(), local, "ci/run/report.csv"))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, requests, "HEAD /audit/")
	assert.Contains(t, requests, "PUT /audit/ci/run/report.csv")
	// Plain-HTTP uploads are aws-chunked, so only containment is stable.
	assert.Contains(t, body, "file,line\n")
}

func TestNewGCSUploader_MissingKeyFile(t *testing.T) {
	_, err := NewGCSUploader(context.Background(), "b", filepath.Join(t.TempDir(), "sa.json"))
	assert.ErrorContains(t, err, "service account key")
}

func TestNew_UnsupportedScheme(t *testing.T) {
	_, err := New(context.Background(), Destination{Scheme: "ftp", Bucket: "b"}, Config{})
	assert.Error(t, err)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/csv", contentType("a.CSV"))
	assert.Equal(t, "application/json", contentType("a.sarif"))
	assert.Equal(t, "application/octet-stream", contentType("a.bin"))
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package upload copies report files to object storage. Destinations are
// URLs: gs://bucket/prefix for Google Cloud Storage and s3://bucket/prefix
// for any S3-compatible store.
package upload

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Schemes understood by ParseDestination.
const (
	SchemeGCS = "gs"
	SchemeS3  = "s3"
)

// Destination is a parsed upload target.
type Destination struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseDestination parses gs://bucket[/prefix] or s3://bucket[/prefix].
func ParseDestination(raw string) (Destination, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Destination{}, fmt.Errorf("parse upload destination %q: %w", raw, err)
	}
	switch u.Scheme {
	case SchemeGCS, SchemeS3:
	case "":
		return Destination{}, fmt.Errorf("upload destination %q has no scheme (want gs:// or s3://)", raw)
	default:
		return Destination{}, fmt.Errorf("unsupported upload scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Destination{}, fmt.Errorf("upload destination %q has no bucket", raw)
	}
	return Destination{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// String renders the destination back as a URL.
func (d Destination) String() string {
	if d.Prefix == "" {
		return fmt.Sprintf("%s://%s", d.Scheme, d.Bucket)
	}
	return fmt.Sprintf("%s://%s/%s", d.Scheme, d.Bucket, d.Prefix)
}

// ObjectKey is <prefix>/<runID>/<base name of localPath>.
func (d Destination) ObjectKey(runID, localPath string) string {
	return path.Join(d.Prefix, runID, filepath.Base(localPath))
}

// Uploader stores a local file under an object key.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) error
	Close() error
}

// Config carries credentials for both backends.
type Config struct {
	// GCSCredentialsFile is a service account key. Empty uses application
	// default credentials.
	GCSCredentialsFile string

	S3 S3Config
}

// New opens the uploader for dest.
func New(ctx context.Context, dest Destination, cfg Config) (Uploader, error) {
	switch dest.Scheme {
	case SchemeGCS:
		return NewGCSUploader(ctx, dest.Bucket, cfg.GCSCredentialsFile)
	case SchemeS3:
		s3 := cfg.S3
		s3.Bucket = dest.Bucket
		return NewS3Uploader(s3)
	default:
		return nil, fmt.Errorf("unsupported upload scheme %q", dest.Scheme)
	}
}

// UploadRun uploads files under dest for runID and returns the URLs of the
// objects written. All files are attempted; failures are joined.
func UploadRun(ctx context.Context, up Uploader, dest Destination, runID string, files []string) ([]string, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	var (
		written []string
		errs    []error
	)
	for _, f := range files {
		key := dest.ObjectKey(runID, f)
		if err := up.Upload(ctx, f, key); err != nil {
			errs = append(errs, fmt.Errorf("upload %s: %w", f, err))
			continue
		}
		written = append(written, fmt.Sprintf("%s://%s/%s", dest.Scheme, dest.Bucket, key))
	}
	return written, errors.Join(errs...)
}

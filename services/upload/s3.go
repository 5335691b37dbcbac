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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config describes an S3-compatible endpoint.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3ConfigFromEnv reads LICENSEGUARD_S3_ENDPOINT, _REGION, _ACCESS_KEY,
// _SECRET_KEY and _USE_SSL. SSL defaults to on.
func S3ConfigFromEnv() S3Config {
	cfg := S3Config{
		Endpoint:  strings.TrimSpace(os.Getenv("LICENSEGUARD_S3_ENDPOINT")),
		Region:    strings.TrimSpace(os.Getenv("LICENSEGUARD_S3_REGION")),
		AccessKey: strings.TrimSpace(os.Getenv("LICENSEGUARD_S3_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("LICENSEGUARD_S3_SECRET_KEY")),
		UseSSL:    true,
	}
	if raw := strings.TrimSpace(os.Getenv("LICENSEGUARD_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.UseSSL = v
		}
	}
	return cfg
}

// S3Uploader writes objects to one bucket, creating it on first use.
type S3Uploader struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// NewS3Uploader validates cfg and builds a client. No request is made until
// the first upload.
func NewS3Uploader(cfg S3Config) (*S3Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required (LICENSEGUARD_S3_ENDPOINT)")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Uploader{client: client, bucket: cfg.Bucket, region: region}, nil
}

func (u *S3Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if !exists {
			u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
		}
	})
	return u.initErr
}

// Upload writes localPath to key.
func (u *S3Uploader) Upload(ctx context.Context, localPath, key string) error {
	if err := u.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket %s: %w", u.bucket, err)
	}
	_, err := u.client.FPutObject(ctx, u.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType(localPath),
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", u.bucket, key, err)
	}
	return nil
}

// Close is a no-op; the minio client holds no resources that need release.
func (u *S3Uploader) Close() error { return nil }

func contentType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return "text/csv"
	case ".json", ".sarif":
		return "application/json"
	case ".prom", ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

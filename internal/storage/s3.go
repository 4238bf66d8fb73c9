// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package storage uploads editor images to an S3-compatible bucket. It wraps
// the AWS SDK v2; custom endpoints use path-style access so MinIO and other
// S3-compatible stores work unchanged.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Options configures the media bucket.
type Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// PublicURL is an optional CDN base for served files.
	PublicURL string
	// PublicRead sets the public-read ACL on uploads. Buckets fronted by a
	// CDN with origin access leave it off.
	PublicRead bool
}

// Client uploads media objects to a single bucket.
type Client struct {
	s3         *s3.Client
	bucket     string
	baseURL    string
	publicRead bool
}

// New creates a storage client. Returns (nil, nil) if no bucket is
// configured, allowing the app to start without media uploads. Without
// static keys the default AWS credential chain is used.
func New(opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, nil
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	s3opts := s3.Options{Region: opts.Region}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		s3opts.Credentials = credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
	}

	endpoint := strings.TrimRight(opts.Endpoint, "/")
	baseURL := strings.TrimRight(opts.PublicURL, "/")
	if endpoint != "" {
		s3opts.BaseEndpoint = aws.String(endpoint)
		s3opts.UsePathStyle = true
		if baseURL == "" {
			baseURL = endpoint + "/" + opts.Bucket
		}
	} else if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	}
	if s3opts.Credentials == nil {
		cfg, err := loadDefaultConfig(opts.Region)
		if err != nil {
			return nil, err
		}
		s3opts.Credentials = cfg.Credentials
	}

	return &Client{
		s3:         s3.New(s3opts),
		bucket:     opts.Bucket,
		baseURL:    baseURL,
		publicRead: opts.PublicRead,
	}, nil
}

// Upload stores an object under key and returns its public URL.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
		CacheControl:  aws.String("public, max-age=31536000, immutable"),
	}
	if c.publicRead {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload %s/%s: %w", c.bucket, key, err)
	}
	return c.FileURL(key), nil
}

// FileURL returns the public URL for an object key.
func (c *Client) FileURL(key string) string {
	return c.baseURL + "/" + key
}

// Bucket returns the name of the media bucket.
func (c *Client) Bucket() string {
	return c.bucket
}

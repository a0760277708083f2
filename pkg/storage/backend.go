// Package storage persists report artifacts to a local directory or an S3 bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("artifact not found")

// BlobStore is the sink for exported reports. Keys are slash separated.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Open resolves an output target. "s3://bucket/prefix" uses the default AWS
// credential chain; anything else is a local directory.
func Open(ctx context.Context, target string) (BlobStore, error) {
	if !strings.HasPrefix(target, "s3://") {
		if target == "" {
			target = "."
		}
		return NewLocalStore(target), nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid output target %q: %w", target, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid output target %q: missing bucket", target)
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	s := NewS3Store(cfg, u.Host)
	s.Prefix = strings.Trim(u.Path, "/")
	return s, nil
}

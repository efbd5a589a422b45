// Package s3 implements store.Store on Amazon S3 and S3-compatible object
// stores, adapted from an S3 block-store client.
package s3

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/coldvault/coldvault/internal/telemetry"
	"github.com/coldvault/coldvault/pkg/store"
)

// Config holds configuration for the S3 store.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	KeyPrefix      string
	ForcePathStyle bool
}

// Store is an S3-backed implementation of store.Store.
type Store struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// New creates an S3 store from an existing client.
func New(client *s3.Client, cfg Config) *Store {
	return &Store{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}
}

// NewFromConfig builds an S3 client from cfg and returns a Store using it.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 store: load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)
	return New(client, cfg), nil
}

func (s *Store) fullKey(name string) string {
	return s.keyPrefix + name
}

// Upload streams content to the named S3 key, reporting the size and sha1
// of what was written.
func (s *Store) Upload(ctx context.Context, name string, content io.Reader) (store.ObjectMetadata, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreUpload, "s3", name)
	defer span.End()

	data, err := io.ReadAll(content)
	if err != nil {
		return store.ObjectMetadata{}, fmt.Errorf("s3 store: read payload for %q: %w", name, err)
	}
	digest := sha1.Sum(data)

	input := &s3.PutObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(s.fullKey(name)), Body: strings.NewReader(string(data))}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		telemetry.RecordError(ctx, err)
		return store.ObjectMetadata{}, fmt.Errorf("s3 store: put object %q: %w", name, err)
	}
	return store.ObjectMetadata{Size: int64(len(data)), SHA1: hex.EncodeToString(digest[:])}, nil
}

// Download fetches the named object.
func (s *Store) Download(ctx context.Context, name string) (io.ReadCloser, store.ObjectMetadata, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreDownload, "s3", name)
	defer span.End()

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(name)),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, store.ObjectMetadata{}, store.ErrNotFound
		}
		telemetry.RecordError(ctx, err)
		return nil, store.ObjectMetadata{}, fmt.Errorf("s3 store: get object %q: %w", name, err)
	}
	meta := store.ObjectMetadata{}
	if resp.ContentLength != nil {
		meta.Size = *resp.ContentLength
	}
	return resp.Body, meta, nil
}

// Delete removes the named object. S3 reports success for a key that does
// not exist, so this never returns store.ErrNotFound.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(name)),
	})
	if err != nil {
		return fmt.Errorf("s3 store: delete object %q: %w", name, err)
	}
	return nil
}

// List enumerates every key under prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	fullPrefix := s.fullKey(prefix)
	var names []string

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(fullPrefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 store: list objects %q: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if s.keyPrefix != "" && strings.HasPrefix(key, s.keyPrefix) {
				key = key[len(s.keyPrefix):]
			}
			names = append(names, key)
		}
	}
	return names, nil
}

// DeleteBatch removes multiple keys in a single request, up to S3's 1000-key
// limit per call. It is not part of store.Store; the garbage collector
// deletes through Store.Delete, one object at a time.
func (s *Store) DeleteBatch(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	objects := make([]types.ObjectIdentifier, len(names))
	for i, name := range names {
		objects[i] = types.ObjectIdentifier{Key: aws.String(s.fullKey(name))}
	}

	_, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucket),
		Delete: &types.Delete{Objects: objects},
	})
	if err != nil {
		return fmt.Errorf("s3 store: batch delete: %w", err)
	}
	return nil
}

func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "NoSuchKey") ||
		strings.Contains(errStr, "NotFound") ||
		strings.Contains(errStr, "404")
}

var _ store.Store = (*Store)(nil)

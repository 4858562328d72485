// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package eviction

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v5"
)

// S3Sink archives evicted entries to S3, one object per entry, retried
// with exponential backoff since archival sits off the commit path and can
// afford to wait out transient failures.
type S3Sink struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Sink builds an S3Sink for bucket in region, keying objects under
// prefix. It loads credentials from the standard AWS chain.
func NewS3Sink(ctx context.Context, bucket, region, prefix string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return &S3Sink{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// Put uploads data as a new object, retrying transient failures with
// exponential backoff up to five attempts.
func (s *S3Sink) Put(ctx context.Context, data []byte) error {
	key := path.Join(s.prefix, objectKey())

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("uploading evicted entry to s3://%s/%s: %w", s.bucket, key, err)
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(5),
	)
	return err
}

// objectKey mints a time-ordered, collision-resistant object name so
// concurrent evictions never clobber each other.
func objectKey() string {
	var suffix [8]byte
	_, _ = rand.Read(suffix[:])
	return fmt.Sprintf("%s-%s.bin", time.Now().UTC().Format("20060102T150405.000000000Z"), hex.EncodeToString(suffix[:]))
}

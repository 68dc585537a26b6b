package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ProofStore persists proof artifacts outside the database.
type ProofStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// S3ProofStore stores proof artifacts in an S3 bucket.
type S3ProofStore struct {
	client *s3.Client
	bucket string
}

func NewS3ProofStore(client *s3.Client, bucket string) *S3ProofStore {
	return &S3ProofStore{client: client, bucket: bucket}
}

func (s *S3ProofStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload proof to s3: %w", err)
	}
	return nil
}

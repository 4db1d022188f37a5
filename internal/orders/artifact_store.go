package orders

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fieldserve/dispatch-ai-platform/pkg/logging"
)

// S3API is the subset of the S3 client used by ArtifactStore.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// ArtifactStore keeps before/after job photos in S3. If bucket is empty, all
// operations are no-ops so local runs work without object storage.
type ArtifactStore struct {
	bucket string
	client S3API
	logger *logging.Logger
}

// NewArtifactStore creates the store.
func NewArtifactStore(client S3API, bucket string, logger *logging.Logger) *ArtifactStore {
	if logger == nil {
		logger = logging.Default()
	}
	return &ArtifactStore{bucket: bucket, client: client, logger: logger.Component("artifacts")}
}

// Enabled reports whether artifact storage is configured.
func (s *ArtifactStore) Enabled() bool {
	return s != nil && s.bucket != "" && s.client != nil
}

// Put uploads one artifact and returns its storage key. Phase is "before" or
// "after".
func (s *ArtifactStore) Put(ctx context.Context, accountID, orderID, phase, filename, contentType string, data []byte) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if phase != "before" && phase != "after" {
		return "", fmt.Errorf("orders: unknown artifact phase %q", phase)
	}

	key := fmt.Sprintf("orders/%s/%s/%s/%d-%s",
		accountID, orderID, phase, time.Now().UTC().UnixMilli(), filename)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("orders: s3 put %s: %w", key, err)
	}

	s.logger.Info("stored order artifact",
		"order_id", orderID, "phase", phase, "s3_key", key, "bytes", len(data))
	return key, nil
}

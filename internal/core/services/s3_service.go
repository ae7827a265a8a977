package services

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	appconfig "github.com/agisfl/agisfl-server/internal/core/config"
	"github.com/agisfl/agisfl-server/pkg/logger"
)

type S3Service struct {
	client     *s3.Client
	bucketName string
}

func NewS3Service(cfg *appconfig.Config) (*S3Service, error) {
	if cfg.AWS.AccessKeyID == "" || cfg.AWS.SecretAccessKey == "" {
		return nil, fmt.Errorf("missing required AWS credentials")
	}

	if cfg.AWS.Region == "" {
		return nil, fmt.Errorf("AWS region must be specified")
	}

	if cfg.AWS.BucketName == "" {
		return nil, fmt.Errorf("AWS bucket name must be specified")
	}

	creds := credentials.NewStaticCredentialsProvider(
		cfg.AWS.AccessKeyID,
		cfg.AWS.SecretAccessKey,
		"", // Token is intentionally empty for long-term credentials
	)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWS.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &S3Service{
		client:     client,
		bucketName: cfg.AWS.BucketName,
	}, nil
}

// UploadCheckpoint mirrors a checkpoint artifact to the configured bucket
// under the checkpoints/ prefix and returns the object key.
func (s *S3Service) UploadCheckpoint(ctx context.Context, filename string, data []byte) (string, error) {
	log := logger.WithComponent("s3_service")

	key := path.Join("checkpoints", filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("application/json"),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		log.Error().Err(err).
			Str("bucket", s.bucketName).
			Str("key", key).
			Msg("Failed to upload checkpoint to S3")
		return "", fmt.Errorf("failed to upload checkpoint: %w", err)
	}

	log.Info().
		Str("bucket", s.bucketName).
		Str("key", key).
		Int("size", len(data)).
		Msg("Uploaded checkpoint to S3")

	return key, nil
}

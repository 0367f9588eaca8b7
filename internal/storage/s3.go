package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/aeo-platform/aeo/backend/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// UploadPrefix is the key prefix of archived catalog uploads.
const UploadPrefix = "uploads"

func NewS3Client(ctx context.Context) (*s3.Client, error) {
	region := util.GetEnv("AWS_REGION")
	endpoint := util.GetEnv("AWS_ENDPOINT")
	accessKey := util.GetEnv("AWS_ACCESS_KEY")
	secretKey := util.GetEnv("AWS_SECRET_KEY")

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			accessKey,
			secretKey,
			"",
		)),
	}
	if endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
	return client, nil
}

func PutFile(ctx context.Context, client *s3.Client, bucket string, key string, file io.ReadSeeker) error {
	mimeType := mime.TypeByExtension(path.Ext(key))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload file to S3: %w", err)
	}

	return nil
}

// UploadKey builds the object key of an archived upload. The original file
// name only contributes its extension; the id keeps keys unique.
func UploadKey(id string, name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		ext = ".csv"
	}
	return fmt.Sprintf("%s/%s%s", UploadPrefix, id, ext)
}

// UploadArchive keeps a copy of every ingested catalog file in a bucket.
type UploadArchive struct {
	client *s3.Client
	bucket string
}

// NewUploadArchive returns nil when AWS_BUCKET is not set, which disables
// archiving.
func NewUploadArchive(ctx context.Context) (*UploadArchive, error) {
	bucket := util.GetEnvString("AWS_BUCKET", "")
	if bucket == "" {
		return nil, nil
	}

	client, err := NewS3Client(ctx)
	if err != nil {
		return nil, err
	}
	return &UploadArchive{client: client, bucket: bucket}, nil
}

// ArchiveUpload stores content and returns its object key.
func (a *UploadArchive) ArchiveUpload(ctx context.Context, name string, content []byte) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}

	key := UploadKey(id, name)
	if err := PutFile(ctx, a.client, a.bucket, key, bytes.NewReader(content)); err != nil {
		return "", err
	}
	return key, nil
}

// Package images hands out presigned S3 URLs for submission images. The API
// never proxies image bytes; submissions store the object keys only.
package images

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/verimarket/backend/internal/config"
	"github.com/verimarket/backend/internal/models"
)

// Seams for tests.
var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}
	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

var extensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Upload is a presigned PUT the client uses to store one image.
type Upload struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Presigner struct {
	client *s3.PresignClient
	bucket string
	ttl    time.Duration
}

func NewPresigner(ctx context.Context, cfg config.S3Config) (*Presigner, error) {
	awsCfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			o.UsePathStyle = true
		}
	})
	return &Presigner{client: newS3PresignClient(client), bucket: cfg.Bucket, ttl: cfg.PresignTTL}, nil
}

// JobKeyPrefix is the object key prefix every image of a job lives under.
func JobKeyPrefix(jobID uuid.UUID) string {
	return "jobs/" + jobID.String() + "/"
}

// KeyBelongsToJob reports whether key was issued for jobID.
func KeyBelongsToJob(key string, jobID uuid.UUID) bool {
	rest, ok := strings.CutPrefix(key, JobKeyPrefix(jobID))
	return ok && rest != "" && !strings.Contains(rest, "/") && !strings.Contains(rest, "..")
}

// PresignUpload returns a PUT URL for a fresh key under the job's prefix.
func (p *Presigner) PresignUpload(ctx context.Context, jobID uuid.UUID, contentType string) (*Upload, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported content type %q", models.ErrInvalidInput, contentType)
	}
	key := JobKeyPrefix(jobID) + uuid.NewString() + "." + ext
	req, err := presignPutObject(p.client, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}
	return &Upload{Key: key, URL: req.URL, ExpiresAt: time.Now().Add(p.ttl).UTC()}, nil
}

// PresignDownload returns a GET URL for an existing key.
func (p *Presigner) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := presignGetObject(p.client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}

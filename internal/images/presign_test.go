package images

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verimarket/backend/internal/config"
)

var testS3Config = config.S3Config{
	Region:       "us-east-1",
	BaseEndpoint: "http://127.0.0.1:9000",
	AccessKey:    "minioadmin",
	SecretKey:    "minioadmin",
	Bucket:       "verimarket",
	PresignTTL:   15 * time.Minute,
}

// stubSeams replaces the AWS constructors and restores them when the test ends.
func stubSeams(t *testing.T) {
	t.Helper()
	origLoad := loadDefaultAWSConfig
	origNewS3 := newS3ClientFromConfig
	origNewPre := newS3PresignClient
	origPut := presignPutObject
	origGet := presignGetObject
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNewS3
		newS3PresignClient = origNewPre
		presignPutObject = origPut
		presignGetObject = origGet
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "us-east-1", lo.Region)
		return aws.Config{}, nil
	}
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		var opts s3.Options
		for _, fn := range optFns {
			fn(&opts)
		}
		require.NotNil(t, opts.BaseEndpoint)
		assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
		assert.True(t, opts.UsePathStyle)
		return &s3.Client{}
	}
	newS3PresignClient = func(*s3.Client) *s3.PresignClient { return &s3.PresignClient{} }
}

func TestPresignUpload(t *testing.T) {
	stubSeams(t)
	var gotBucket, gotKey, gotType string
	presignPutObject = func(_ *s3.PresignClient, _ context.Context, in *s3.PutObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		gotBucket, gotKey, gotType = *in.Bucket, *in.Key, *in.ContentType
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/put?sig=1"}, nil
	}

	p, err := NewPresigner(context.Background(), testS3Config)
	require.NoError(t, err)

	jobID := uuid.New()
	up, err := p.PresignUpload(context.Background(), jobID, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "verimarket", gotBucket)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, gotKey, up.Key)
	assert.True(t, strings.HasPrefix(up.Key, JobKeyPrefix(jobID)))
	assert.True(t, strings.HasSuffix(up.Key, ".png"))
	assert.True(t, KeyBelongsToJob(up.Key, jobID))
	assert.Equal(t, "https://s3.local/put?sig=1", up.URL)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), up.ExpiresAt, time.Minute)
}

func TestPresignUpload_UnsupportedType(t *testing.T) {
	stubSeams(t)
	p, err := NewPresigner(context.Background(), testS3Config)
	require.NoError(t, err)

	_, err = p.PresignUpload(context.Background(), uuid.New(), "application/pdf")
	require.Error(t, err)
}

func TestPresignUpload_SignerError(t *testing.T) {
	stubSeams(t)
	presignPutObject = func(*s3.PresignClient, context.Context, *s3.PutObjectInput, ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return nil, errors.New("no credentials")
	}
	p, err := NewPresigner(context.Background(), testS3Config)
	require.NoError(t, err)

	_, err = p.PresignUpload(context.Background(), uuid.New(), "image/jpeg")
	require.ErrorContains(t, err, "no credentials")
}

func TestPresignDownload(t *testing.T) {
	stubSeams(t)
	presignGetObject = func(_ *s3.PresignClient, _ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + *in.Key}, nil
	}
	p, err := NewPresigner(context.Background(), testS3Config)
	require.NoError(t, err)

	url, err := p.PresignDownload(context.Background(), "jobs/x/y.png")
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/jobs/x/y.png", url)
}

func TestNewPresigner_ConfigError(t *testing.T) {
	stubSeams(t)
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("bad profile")
	}
	_, err := NewPresigner(context.Background(), testS3Config)
	require.ErrorContains(t, err, "bad profile")
}

func TestKeyBelongsToJob(t *testing.T) {
	job := uuid.New()
	other := uuid.New()

	assert.True(t, KeyBelongsToJob(JobKeyPrefix(job)+"a.png", job))
	assert.False(t, KeyBelongsToJob(JobKeyPrefix(other)+"a.png", job))
	assert.False(t, KeyBelongsToJob(JobKeyPrefix(job), job))
	assert.False(t, KeyBelongsToJob(JobKeyPrefix(job)+"../x.png", job))
	assert.False(t, KeyBelongsToJob(JobKeyPrefix(job)+"nested/x.png", job))
	assert.False(t, KeyBelongsToJob("https://evil.example/a.png", job))
}

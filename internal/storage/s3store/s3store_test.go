package s3store

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	ac "github.com/dmitrijs2005/mediaingest/internal/config"
	"github.com/dmitrijs2005/mediaingest/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	S3API

	put      *s3.PutObjectInput
	putBody  string
	putErr   error
	created  *s3.CreateMultipartUploadInput
	parts    []*s3.UploadPartInput
	complete *s3.CompleteMultipartUploadInput
	aborted  *s3.AbortMultipartUploadInput
	deleted  *s3.DeleteObjectInput
	head     *s3.HeadBucketInput
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	b, _ := io.ReadAll(in.Body)
	f.putBody = string(b)
	return &s3.PutObjectOutput{}, f.putErr
}

func (f *fakeS3) CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	f.created = in
	return &s3.CreateMultipartUploadOutput{UploadId: aws.String("up-1")}, nil
}

func (f *fakeS3) UploadPart(ctx context.Context, in *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	f.parts = append(f.parts, in)
	return &s3.UploadPartOutput{ETag: aws.String("\"etag\"")}, nil
}

func (f *fakeS3) CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	f.complete = in
	return &s3.CompleteMultipartUploadOutput{}, nil
}

func (f *fakeS3) AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	f.aborted = in
	return &s3.AbortMultipartUploadOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = in
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.head = in
	return &s3.HeadBucketOutput{}, nil
}

func TestNewKey(t *testing.T) {
	orig := now
	t.Cleanup(func() { now = orig })
	now = func() time.Time { return time.Date(2025, 7, 4, 10, 0, 0, 0, time.UTC) }

	s := NewWithClient(&fakeS3{}, "media")
	key := s.NewKey("creator-1", "Beach.JPG")

	re := regexp.MustCompile(`^containers/creator-1/2025/7/4/[0-9a-f-]{36}\.jpg$`)
	assert.Regexp(t, re, key)
	assert.NotEqual(t, key, s.NewKey("creator-1", "Beach.JPG"))
}

func TestPut_BuffersNonSeekableBody(t *testing.T) {
	f := &fakeS3{}
	s := NewWithClient(f, "media")

	body := io.TeeReader(strings.NewReader("hello"), io.Discard)
	require.NoError(t, s.Put(context.Background(), "k", body, 5, "text/plain"))

	assert.Equal(t, "media", aws.ToString(f.put.Bucket))
	assert.Equal(t, "k", aws.ToString(f.put.Key))
	assert.Equal(t, "text/plain", aws.ToString(f.put.ContentType))
	assert.Equal(t, int64(5), aws.ToInt64(f.put.ContentLength))
	assert.Equal(t, "hello", f.putBody)
}

func TestPut_Error(t *testing.T) {
	f := &fakeS3{putErr: errors.New("denied")}
	s := NewWithClient(f, "media")
	assert.EqualError(t, s.Put(context.Background(), "k", strings.NewReader("x"), 1, "text/plain"), "denied")
}

func TestMultipartLifecycle(t *testing.T) {
	f := &fakeS3{}
	s := NewWithClient(f, "media")
	ctx := context.Background()

	id, err := s.CreateMultipart(ctx, "k", "video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "up-1", id)
	assert.Equal(t, "video/mp4", aws.ToString(f.created.ContentType))

	etag, err := s.UploadPart(ctx, "k", id, 1, []byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, "\"etag\"", etag)
	require.Len(t, f.parts, 1)
	assert.Equal(t, int32(1), aws.ToInt32(f.parts[0].PartNumber))
	assert.Equal(t, int64(4), aws.ToInt64(f.parts[0].ContentLength))

	require.NoError(t, s.CompleteMultipart(ctx, "k", id, []models.UploadedPart{{Number: 1, ETag: etag}, {Number: 2, ETag: "e2"}}))
	parts := f.complete.MultipartUpload.Parts
	require.Len(t, parts, 2)
	assert.Equal(t, int32(2), aws.ToInt32(parts[1].PartNumber))
	assert.Equal(t, "e2", aws.ToString(parts[1].ETag))

	require.NoError(t, s.AbortMultipart(ctx, "k", id))
	assert.Equal(t, "up-1", aws.ToString(f.aborted.UploadId))

	require.NoError(t, s.Delete(ctx, "k"))
	assert.Equal(t, "k", aws.ToString(f.deleted.Key))

	require.NoError(t, s.Ping(ctx))
	assert.Equal(t, "media", aws.ToString(f.head.Bucket))
}

func TestNew_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return &s3.Client{}
	}

	c := &ac.Config{S3Region: "eu-west-1", S3Bucket: "media", S3BaseEndpoint: "http://minio:9000"}
	s, err := New(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "media", s.bucket)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.True(t, opts.UsePathStyle)
}

func TestNew_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}

	_, err := New(context.Background(), &ac.Config{})
	assert.ErrorContains(t, err, "no creds")
}

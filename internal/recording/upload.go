package recording

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/swingsense/impact-detector/internal/config"
	"github.com/swingsense/impact-detector/internal/types"
	"github.com/swingsense/impact-detector/internal/util"
)

const uploadTimeout = 5 * time.Minute

// Uploader copies finished clips to an S3-compatible bucket.
type Uploader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewUploader creates an uploader from the S3 settings, or nil when S3 is
// not configured.
func NewUploader(cfg *config.S3Config) *Uploader {
	if cfg == nil || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil
	}

	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	options := []func(*s3.Options){
		func(o *s3.Options) {
			o.Credentials = creds
			o.Region = cfg.Region
			if o.Region == "" {
				o.Region = "auto"
			}
		},
	}

	if cfg.Endpoint != "" {
		options = append(options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	return &Uploader{
		client: s3.New(s3.Options{}, options...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
}

// UploadClip uploads a clip and records the result on the ClipInfo.
func (u *Uploader) UploadClip(ctx context.Context, clip *types.ClipInfo) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	f, err := os.Open(clip.Path)
	if err != nil {
		clip.UploadErr = util.WrapError("open clip", err).Error()
		return
	}
	defer util.SafeCloseFunc(f, "clip file")()

	key := clip.Filename
	if u.prefix != "" {
		key = u.prefix + "/" + key
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(clip.SizeBytes),
		ContentType:   aws.String("audio/wav"),
	})
	if err != nil {
		clip.UploadErr = util.WrapError("upload clip", err).Error()
		slog.Error("clip upload failed", "key", key, "error", err)
		return
	}

	clip.S3Key = key
	slog.Info("clip uploaded", "key", key, "size", clip.SizeBytes)
}

// TestConnection verifies bucket access by uploading and deleting a test object.
func (u *Uploader) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	testKey := fmt.Sprintf("test-connection-%d.txt", time.Now().UnixNano())
	body := []byte("impact detector connection test")

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(testKey),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("upload test file: %w", err)
	}

	_, err = u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(testKey),
	})
	if err != nil {
		slog.Warn("failed to delete test file", "key", testKey, "error", err)
	}

	return nil
}

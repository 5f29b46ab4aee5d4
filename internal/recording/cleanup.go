package recording

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/swingsense/impact-detector/internal/util"
)

// clipPrefix is the filename prefix for session clips.
const clipPrefix = "session-"

// StartCleanupScheduler runs retention cleanup daily at 03:00 local time
// until stopCh closes.
func StartCleanupScheduler(dir string, retentionDays int, uploader *Uploader, stopCh <-chan struct{}) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}

			slog.Info("cleanup scheduler: next run scheduled", "at", next.Format(time.DateTime))

			select {
			case <-time.After(next.Sub(now)):
				CleanupLocal(dir, retentionDays)
				if uploader != nil {
					uploader.CleanupS3(retentionDays)
				}
			case <-stopCh:
				slog.Info("cleanup scheduler stopped")
				return
			}
		}
	}()
}

// CleanupLocal removes session clips older than retentionDays.
// A retention of 0 keeps clips forever.
func CleanupLocal(dir string, retentionDays int) {
	if dir == "" || retentionDays == 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("cleanup: failed to read clip directory", "path", dir, "error", err)
		return
	}

	var deleted int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if !strings.HasPrefix(name, clipPrefix) {
			continue
		}

		fileDate, ok := util.ExtractDateFromFilename(name)
		if !ok {
			continue
		}

		if fileDate.Before(cutoff) {
			clipPath := filepath.Join(dir, name)
			if err := os.Remove(clipPath); err != nil {
				slog.Warn("cleanup: failed to delete clip", "path", clipPath, "error", err)
			} else {
				deleted++
				slog.Debug("cleanup: deleted clip", "file", name)
			}
		}
	}

	if deleted > 0 {
		slog.Info("cleanup: deleted local clips", "count", deleted)
	}
}

// CleanupS3 removes uploaded clips older than retentionDays.
func (u *Uploader) CleanupS3(retentionDays int) {
	if retentionDays == 0 {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	prefix := ""
	if u.prefix != "" {
		prefix = u.prefix + "/"
	}

	ctx, cancel := context.WithTimeoutCause(
		context.Background(),
		5*time.Minute,
		errors.New("s3 cleanup timeout"),
	)
	defer cancel()

	var deleted int
	var continuationToken *string

	for {
		input := &s3.ListObjectsV2Input{
			Bucket: aws.String(u.bucket),
			Prefix: aws.String(prefix),
		}
		if continuationToken != nil {
			input.ContinuationToken = continuationToken
		}

		output, err := u.client.ListObjectsV2(ctx, input)
		if err != nil {
			slog.Warn("cleanup: failed to list S3 objects", "bucket", u.bucket, "error", err)
			return
		}

		for _, obj := range output.Contents {
			key := aws.ToString(obj.Key)
			filename := filepath.Base(key)

			if !strings.HasPrefix(filename, clipPrefix) {
				continue
			}

			fileDate, ok := util.ExtractDateFromFilename(filename)
			if !ok {
				continue
			}

			if fileDate.Before(cutoff) {
				_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
					Bucket: aws.String(u.bucket),
					Key:    obj.Key,
				})
				if err != nil {
					slog.Warn("cleanup: failed to delete S3 object", "key", key, "error", err)
				} else {
					deleted++
					slog.Debug("cleanup: deleted S3 object", "key", key)
				}
			}
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		continuationToken = output.NextContinuationToken
	}

	if deleted > 0 {
		slog.Info("cleanup: deleted S3 objects", "count", deleted)
	}
}

package persister

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/gabriel-vasile/mimetype"

	"sjsage522/catalogworker/logger"
	"sjsage522/catalogworker/pkg/errors"
)

// Uploader copies a written snapshot somewhere durable
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// BucketUploader uploads snapshots to a Google Cloud Storage bucket.
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS.
type BucketUploader struct {
	bucket string
	prefix string
	now    func() time.Time
}

// NewBucketUploader creates an uploader for bucket. Objects are named
// prefix/<date>/<snapshot file name>.
func NewBucketUploader(bucket, prefix string) *BucketUploader {
	return &BucketUploader{bucket: bucket, prefix: prefix, now: time.Now}
}

// ObjectName returns the destination object for a local snapshot path
func (u *BucketUploader) ObjectName(localPath string) string {
	return path.Join(u.prefix, u.now().UTC().Format("2006-01-02"), filepath.Base(localPath))
}

// Upload streams the file at localPath into the bucket
func (u *BucketUploader) Upload(ctx context.Context, localPath string) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return errors.NewPersistence(u.bucket, "failed to create storage client", err)
	}
	defer client.Close()

	file, err := os.Open(localPath)
	if err != nil {
		return errors.NewPersistence(localPath, "failed to open snapshot", err)
	}
	defer file.Close()

	object := u.ObjectName(localPath)
	writer := client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = detectContentType(localPath)

	if _, err := io.Copy(writer, file); err != nil {
		writer.Close()
		return errors.NewPersistence(u.bucket, "failed to copy snapshot", err)
	}
	if err := writer.Close(); err != nil {
		return errors.NewPersistence(u.bucket, "failed to finish upload", err)
	}

	logger.ForPersister().Info().
		Str("bucket", u.bucket).
		Str("object", object).
		Dur("took", time.Since(start)).
		Msg("snapshot uploaded")
	return nil
}

func detectContentType(filePath string) string {
	mime, err := mimetype.DetectFile(filePath)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}

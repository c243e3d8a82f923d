package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/quaylabs/obindexer/internal/domain"
)

// minPartSize is the smallest part size S3 accepts for multipart uploads.
const minPartSize = 5 * 1024 * 1024

// Writer implements domain.BlobWriter on top of the S3 client.
type Writer struct {
	client *Client
}

var _ domain.BlobWriter = (*Writer)(nil)

// NewWriter creates a Writer.
func NewWriter(client *Client) *Writer {
	return &Writer{client: client}
}

// Put uploads an object in a single request. Suitable for objects up to a
// few hundred megabytes; use PutMultipart for anything larger.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.client.Bucket()),
		Key:    aws.String(path),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := w.client.S3().PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", path, err)
	}
	return nil
}

// PutMultipart uploads an object using the SDK upload manager, which splits
// the stream into concurrent parts.
func (w *Writer) PutMultipart(ctx context.Context, path string, data io.Reader, contentType string) error {
	uploader := manager.NewUploader(w.client.S3(), func(u *manager.Uploader) {
		u.PartSize = minPartSize
	})

	input := &s3.PutObjectInput{
		Bucket: aws.String(w.client.Bucket()),
		Key:    aws.String(path),
		Body:   data,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := uploader.Upload(ctx, input); err != nil {
		return fmt.Errorf("s3blob: multipart put %s: %w", path, err)
	}
	return nil
}

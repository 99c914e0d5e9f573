package objectstore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/klauspost/compress/gzip"

	"github.com/V4T54L/csv-indexer/internal/domain"
)

// NewSession builds the AWS session shared by S3 and Secrets Manager.
// A non-empty endpoint targets an S3-compatible store such as MinIO.
func NewSession(region, endpoint string, forcePathStyle bool) (*session.Session, error) {
	cfg := aws.NewConfig().WithRegion(region)
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	if forcePathStyle {
		cfg = cfg.WithS3ForcePathStyle(true)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return sess, nil
}

// S3Store implements domain.ObjectStore on top of the S3 API.
type S3Store struct {
	client  s3iface.S3API
	maxSize int64
	logger  *slog.Logger
}

// NewS3Store creates a new S3-backed object store.
func NewS3Store(client s3iface.S3API, maxSize int64, logger *slog.Logger) *S3Store {
	return &S3Store{
		client:  client,
		maxSize: maxSize,
		logger:  logger.With("component", "s3_store"),
	}
}

// GetObject downloads the whole object, inflating gzip content on the way.
func (s *S3Store) GetObject(ctx context.Context, ref domain.ObjectRef) (*domain.Object, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(ref.Bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) {
			switch aerr.Code() {
			case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket:
				return nil, fmt.Errorf("%w: s3://%s/%s", domain.ErrObjectNotFound, ref.Bucket, ref.Key)
			}
		}
		return nil, fmt.Errorf("failed to get s3://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	defer out.Body.Close()

	encoding := aws.StringValue(out.ContentEncoding)
	body := bufio.NewReader(out.Body)

	var src io.Reader = body
	if wantsGzip(ref.Key, encoding) && hasGzipMagic(body) {
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip stream for s3://%s/%s: %w", ref.Bucket, ref.Key, err)
		}
		defer zr.Close()
		src = zr
		s.logger.Debug("inflating gzip object", "bucket", ref.Bucket, "key", ref.Key)
	}

	data, err := io.ReadAll(io.LimitReader(src, s.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", ref.Bucket, ref.Key, err)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: s3://%s/%s is larger than %d bytes", domain.ErrObjectTooLarge, ref.Bucket, ref.Key, s.maxSize)
	}

	if ref.ETag == "" {
		ref.ETag = strings.Trim(aws.StringValue(out.ETag), `"`)
	}

	return &domain.Object{
		Ref:             ref,
		Body:            data,
		ContentType:     aws.StringValue(out.ContentType),
		ContentEncoding: encoding,
	}, nil
}

func wantsGzip(key, encoding string) bool {
	return strings.EqualFold(encoding, "gzip") || strings.HasSuffix(strings.ToLower(key), ".gz")
}

// hasGzipMagic guards against transports that already inflated the body.
func hasGzipMagic(r *bufio.Reader) bool {
	magic, err := r.Peek(2)
	return err == nil && magic[0] == 0x1f && magic[1] == 0x8b
}

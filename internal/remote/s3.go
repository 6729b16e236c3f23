package remote

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/juju/errors"

	"github.com/raoulx24/wandering-echo/internal/config"
	"github.com/raoulx24/wandering-echo/internal/logging"
)

// S3Destination stores streams in AWS S3 or an S3-compatible store.
type S3Destination struct {
	bucket   string
	prefix   string
	log      logging.Logger
	client   *s3.S3
	uploader *s3manager.Uploader
}

func NewS3(prefix string, cfg config.S3Config, log logging.Logger) (*S3Destination, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be set")
	}
	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	// MinIO, Ceph RGW and friends
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}

	client := s3.New(sess)
	log.Debug("s3 destination ready", "bucket", cfg.Bucket, "region", cfg.Region)
	return &S3Destination{
		bucket: cfg.Bucket,
		prefix: strings.Trim(prefix, "/"),
		log:    log,
		client: client,
		uploader: s3manager.NewUploaderWithClient(client, func(u *s3manager.Uploader) {
			u.PartSize = 64 * 1024 * 1024
		}),
	}, nil
}

func (d *S3Destination) key(name string) string {
	return path.Join(d.prefix, name)
}

// countingReader lets Upload report the stream size; s3manager does not.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// Upload streams r as a multipart upload; the object only appears once the
// upload completes.
func (d *S3Destination) Upload(ctx context.Context, name string, r io.Reader) (int64, error) {
	body := &countingReader{r: r}
	out, err := d.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key(name)),
		Body:        body,
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return body.n, errors.Annotatef(err, "uploading s3://%s/%s", d.bucket, d.key(name))
	}
	d.log.Debug("s3 upload complete", "location", out.Location, "bytes", body.n)
	return body.n, nil
}

func (d *S3Destination) Delete(ctx context.Context, name string) error {
	_, err := d.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(name)),
	})
	return errors.Annotatef(err, "deleting s3://%s/%s", d.bucket, d.key(name))
}

func (d *S3Destination) List(ctx context.Context) ([]File, error) {
	prefix := d.prefix
	if prefix != "" {
		prefix += "/"
	}
	var files []File
	err := d.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			files = append(files, File{
				Name:     strings.TrimPrefix(aws.StringValue(obj.Key), prefix),
				Size:     aws.Int64Value(obj.Size),
				Modified: aws.TimeValue(obj.LastModified),
			})
		}
		return true
	})
	if err != nil {
		return nil, errors.Annotatef(err, "listing s3://%s/%s", d.bucket, prefix)
	}
	return files, nil
}

func (d *S3Destination) Type() string { return "s3" }

func (d *S3Destination) Close() error { return nil }

package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"ustar-go/internal/ustar"
)

// errAborted is handed to the upload when a destination is aborted.
var errAborted = errors.New("archive aborted")

// Uploader is the subset of manager.Uploader used by S3Sink.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Options configures an S3Sink.
type S3Options struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string // for S3-compatible stores; enables path-style addressing
	AccessKeyID     string // static credentials; the default chain is used when empty
	SecretAccessKey string
}

// S3Sink streams archives to S3 as multipart uploads. The archive is piped
// straight into the uploader, so nothing is buffered beyond one part. An
// aborted archive fails the upload, and the uploader discards the parts
// already sent.
type S3Sink struct {
	name     string
	bucket   string
	prefix   string
	uploader Uploader
}

// NewS3Sink loads AWS configuration and creates a sink for opts.Bucket.
func NewS3Sink(ctx context.Context, name string, opts S3Options) (*S3Sink, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 output requires s3_bucket to be set")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewS3SinkWithUploader(name, opts.Bucket, opts.Prefix, manager.NewUploader(client)), nil
}

// NewS3SinkWithUploader creates a sink around an existing uploader.
func NewS3SinkWithUploader(name, bucket, prefix string, uploader Uploader) *S3Sink {
	return &S3Sink{name: name, bucket: bucket, prefix: prefix, uploader: uploader}
}

func (s *S3Sink) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Location returns the s3:// URL of an archive.
func (s *S3Sink) Location(name string) string {
	return "s3://" + s.bucket + "/" + s.key(name)
}

// Begin starts the upload in the background, fed by the returned destination.
func (s *S3Sink) Begin(ctx context.Context, name string) (ustar.Destination, error) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	d := &s3Destination{
		location: s.Location(name),
		pw:       pw,
		cancel:   cancel,
		result:   make(chan error, 1),
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        pr,
		ContentType: aws.String("application/x-tar"),
	}
	go func() {
		_, err := s.uploader.Upload(ctx, input)
		// Unblock the writer if the upload stops reading early.
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.Close()
		}
		d.result <- err
	}()

	return d, nil
}

type s3Destination struct {
	location string
	pw       *io.PipeWriter
	cancel   context.CancelFunc
	result   chan error
	finished bool
}

func (d *s3Destination) Write(p []byte) (int, error) {
	return d.pw.Write(p)
}

// Commit ends the stream and waits for the upload to complete.
func (d *s3Destination) Commit() error {
	if d.finished {
		return fmt.Errorf("archive %s already finished", d.location)
	}
	d.pw.Close()
	err := <-d.result
	d.finished = true
	d.cancel()
	if err != nil {
		return fmt.Errorf("uploading %s: %w", d.location, err)
	}
	return nil
}

// Abort fails the stream so the upload is abandoned, and waits for it.
func (d *s3Destination) Abort() error {
	if d.finished {
		return nil
	}
	d.pw.CloseWithError(errAborted)
	d.cancel()
	<-d.result
	d.finished = true
	return nil
}

// Compile-time check that S3Sink implements ustar.Sink interface
var _ ustar.Sink = (*S3Sink)(nil)

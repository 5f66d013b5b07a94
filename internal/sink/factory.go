package sink

import (
	"context"
	"fmt"

	"ustar-go/internal/config"
	"ustar-go/internal/ustar"
)

// NewSinkFromConfig creates a Sink implementation based on the output config type.
func NewSinkFromConfig(ctx context.Context, cfg config.OutputConfig) (ustar.Sink, error) {
	switch cfg.Type {
	case "memory":
		return NewMemorySink("memory"), nil
	case "s3":
		s, err := NewS3Sink(ctx, "s3", S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "filesystem", "":
		dir := cfg.Dir
		if dir == "" {
			dir = "."
		}
		s, err := NewFileSystemSink("filesystem", dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown output type: %s", cfg.Type)
	}
}

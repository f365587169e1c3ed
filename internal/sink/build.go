package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/iconidentify/dispatcher/internal/config"
	"github.com/iconidentify/dispatcher/pkg/crypto"
)

// New builds the sink selected by cfg. A configured password wraps it in
// a Sealed sink.
func New(ctx context.Context, cfg config.SinkConfig, logger *slog.Logger) (Sink, error) {
	var s Sink
	switch cfg.Kind {
	case config.SinkS3:
		s3, err := NewS3(ctx, S3Config{
			Endpoint:     cfg.S3.Endpoint,
			Region:       cfg.S3.Region,
			Bucket:       cfg.S3.Bucket,
			Prefix:       cfg.S3.Prefix,
			AccessKey:    cfg.S3.AccessKey,
			SecretKey:    cfg.S3.SecretKey,
			UsePathStyle: cfg.S3.UsePathStyle,
			MaxElapsed:   cfg.S3.MaxElapsed,
		}, logger)
		if err != nil {
			return nil, err
		}
		s = s3
	case config.SinkDesktop, "":
		dir := cfg.DesktopDir
		if dir == "" {
			var err error
			if dir, err = DesktopDir(); err != nil {
				return nil, err
			}
		}
		s = NewDesktop(dir, logger)
	default:
		return nil, fmt.Errorf("unknown sink kind %q", cfg.Kind)
	}

	if cfg.EncryptPassword != "" {
		s = NewSealed(s, cfg.EncryptPassword, crypto.DefaultParams)
	}
	return s, nil
}

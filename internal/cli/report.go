package cli

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/graphbeam"
	"github.com/hupe1980/graphbeam/blobstore"
	"github.com/hupe1980/graphbeam/blobstore/minio"
	"github.com/hupe1980/graphbeam/blobstore/s3"
	"github.com/hupe1980/graphbeam/codec"
	"github.com/hupe1980/graphbeam/config"
)

// openStore connects to the report backend. It returns nil when exporting
// is disabled.
func openStore(ctx context.Context, cfg *config.Report) (blobstore.Store, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "local":
		path := cfg.Path
		if path == "" {
			path = "."
		}
		return blobstore.NewLocalStore(path), nil
	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return s3.NewStore(awss3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Prefix), nil
	case "minio":
		client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.Secure,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown report backend %q", cfg.Backend)
	}
}

func publish(ctx context.Context, cfg *config.Report, res *graphbeam.Result, logger *graphbeam.Logger) error {
	store, err := openStore(ctx, cfg)
	if err != nil || store == nil {
		return err
	}
	c, ok := codec.ByName(cfg.Codec)
	if !ok {
		return fmt.Errorf("unknown report codec %q", cfg.Codec)
	}
	err = res.Publish(ctx, store, cfg.Name, c)
	logger.LogPublish(ctx, cfg.Name, err)
	return err
}

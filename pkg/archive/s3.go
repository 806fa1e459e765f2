package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const (
	DefaultRegion = "us-east-1"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver keeps a copy of every published workbook under
// s3://<bucket>/<prefix>/<last sunday>/<file>.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

func LoadConfig(ctx context.Context, profile, region string) (*awssdk.Config, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithDefaultRegion(DefaultRegion),
	}
	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}
	return &awsCfg, nil
}

func New(client ObjectPutter, bucket, prefix string) (*Archiver, error) {
	if client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is not set")
	}
	return &Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func NewFromConfig(cfg awssdk.Config, bucket, prefix string) (*Archiver, error) {
	return New(s3.NewFromConfig(cfg), bucket, prefix)
}

func (a *Archiver) Key(period, file string) string {
	return path.Join(a.prefix, period, filepath.Base(file))
}

// Upload stores the workbook at file and returns its object key.
func (a *Archiver) Upload(ctx context.Context, period, file string) (string, error) {
	f, err := os.Open(file)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("file", file).Msg("failed to close archived file")
		}
	}()

	key := a.Key(period, file)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awssdk.String(a.bucket),
		Key:         awssdk.String(key),
		Body:        f,
		ContentType: awssdk.String(xlsxContentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", a.bucket, key, err)
	}

	zerolog.Ctx(ctx).Info().Str("bucket", a.bucket).Str("key", key).Msg("workbook archived")
	return key, nil
}

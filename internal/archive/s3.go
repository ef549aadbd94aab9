package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/JesseWaas/fs-audit/internal/audit"
	"github.com/JesseWaas/fs-audit/internal/config"
)

// S3Store keeps archives as JSON documents in an S3 bucket, one object per
// archive under the configured key prefix. It shares the document format
// with FileStore, so archives can be mirrored between local disk and S3.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates an S3-backed archive store from configuration.
// When an access key is configured it is used as a static credentials
// provider; otherwise the default AWS credential chain applies.
func NewS3Store(ctx context.Context, cfg config.ArchiveConfig) (*S3Store, error) {
	if cfg.S3Bucket == "" {
		return nil, audit.NewConfigError("s3 archive store requires s3_bucket to be set")
	}

	var optFns []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		optFns = append(optFns, awsconfig.WithRegion(cfg.S3Region))
	}
	if cfg.S3AccessKeyID != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   cfg.S3Bucket,
		prefix:   strings.Trim(cfg.S3Prefix, "/"),
	}, nil
}

// Save stores snap under name, replacing any existing archive of that name.
func (s *S3Store) Save(ctx context.Context, name string, snap *audit.Snapshot) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	var doc bytes.Buffer
	if err := encodeSnapshot(&doc, snap); err != nil {
		return err
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(doc.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading archive %s: %w", name, err)
	}
	return nil
}

// Load retrieves the snapshot stored under name.
func (s *S3Store) Load(ctx context.Context, name string) (*audit.Snapshot, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("downloading archive %s: %w", name, err)
	}
	defer out.Body.Close()

	return decodeSnapshot(out.Body)
}

// List returns the stored archive names, sorted.
func (s *S3Store) List(ctx context.Context) ([]string, error) {
	listPrefix := ""
	if s.prefix != "" {
		listPrefix = s.prefix + "/"
	}

	var names []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing archives: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			base := path.Base(key)
			if strings.HasSuffix(base, plainSuffix) {
				names = append(names, strings.TrimSuffix(base, plainSuffix))
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op for the S3 store.
func (s *S3Store) Close() error { return nil }

func (s *S3Store) key(name string) string {
	if s.prefix == "" {
		return name + plainSuffix
	}
	return s.prefix + "/" + name + plainSuffix
}

package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// Options configures the S3 client.
type Options struct {
	Bucket          string
	Region          string
	Prefix          string
	AccessKeyID     string
	SecretAccessKey string
}

// S3Client wraps the AWS S3 client with transfer managers for scans and split outputs.
type S3Client struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucketName string
	prefix     string
}

// NewS3Client creates a new S3 client. Static credentials are used when both
// key and secret are set, otherwise the default provider chain.
func NewS3Client(ctx context.Context, opts Options) (*S3Client, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awscfg.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awscfg.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	cli := s3.NewFromConfig(cfg)
	return &S3Client{
		client:     cli,
		uploader:   manager.NewUploader(cli),
		downloader: manager.NewDownloader(cli),
		bucketName: opts.Bucket,
		prefix:     strings.Trim(opts.Prefix, "/"),
	}, nil
}

// Bucket returns the configured bucket name.
func (s *S3Client) Bucket() string { return s.bucketName }

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(s3url string) (bucket, key string, err error) {
	p, ok := strings.CutPrefix(s3url, "s3://")
	if !ok {
		return "", "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	slash := strings.Index(p, "/")
	if slash <= 0 || slash == len(p)-1 {
		return "", "", fmt.Errorf("invalid s3 url: %s", s3url)
	}
	return p[:slash], p[slash+1:], nil
}

// DownloadToTemp fetches s3://bucket/key into a temp file that keeps the key's extension.
// The caller removes the file.
func (s *S3Client) DownloadToTemp(ctx context.Context, s3url string) (string, error) {
	bucket, key, err := ParseS3URL(s3url)
	if err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "s3scan-*"+filepath.Ext(key))
	if err != nil {
		return "", err
	}
	defer f.Close()

	n, err := s.downloader.Download(ctx, f, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to download from S3: %w", err)
	}
	log.Info().Str("bucket", bucket).Str("key", key).Int64("bytes", n).Str("file", filepath.Base(f.Name())).Msg("downloaded s3 scan to temp")
	return f.Name(), nil
}

// ObjectKey places name under the configured prefix and the given folder.
func (s *S3Client) ObjectKey(folder, name string) string {
	return path.Join(s.prefix, folder, name)
}

// UploadFile uploads a local file with the given content type and metadata.
func (s *S3Client) UploadFile(ctx context.Context, key, localPath, contentType string, metadata map[string]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
		Metadata:    metadata,
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("UploadFile: upload failed")
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	log.Debug().Str("key", key).Str("location", out.Location).Msg("UploadFile: upload successful")
	return nil
}

// UploadText stores a small text object, e.g. a description sidecar.
func (s *S3Client) UploadText(ctx context.Context, key, text string, metadata map[string]string) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
		Metadata:    metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to upload text to S3: %w", err)
	}
	return nil
}

// HeadBucket checks that the bucket exists and is reachable.
func (s *S3Client) HeadBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	return err
}

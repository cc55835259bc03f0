package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// artifactDir is the key segment CSV artifacts live under.
const artifactDir = "csv/"

// S3Config holds configuration for S3Store.
type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // Optional custom endpoint (MinIO, LocalStack)
	Prefix   string `yaml:"prefix"`   // Optional key prefix, e.g. "signups/"
}

// S3Store keeps the ledger as one object and artifacts under <prefix>csv/.
// The object ETag is the revision; Save uses conditional writes.
type S3Store struct {
	client   *s3.Client
	bucket   string
	prefix   string
	dataFile string
}

// NewS3Store creates an S3-backed store using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg S3Config, dataFile string) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if dataFile == "" {
		dataFile = DefaultDataFile
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	})

	return &S3Store{
		client:   client,
		bucket:   cfg.Bucket,
		prefix:   normalizePrefix(cfg.Prefix),
		dataFile: dataFile,
	}, nil
}

func (s *S3Store) dataKey() string {
	return s.prefix + s.dataFile
}

func (s *S3Store) artifactKey(name string) string {
	return s.prefix + artifactDir + name
}

// Load fetches the ledger object.
func (s *S3Store) Load(ctx context.Context) (Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.dataKey()),
	})
	if err != nil {
		if isS3NotFound(err) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("s3 get failed: %w", err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("s3 read failed: %w", err)
	}
	return Snapshot{Data: data, Revision: aws.ToString(out.ETag)}, nil
}

// Save uploads the ledger object if the stored ETag still matches.
func (s *S3Store) Save(ctx context.Context, data []byte, expectedRevision string) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.dataKey()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	switch expectedRevision {
	case Unconditional:
	case "":
		in.IfNoneMatch = aws.String("*")
	default:
		in.IfMatch = aws.String(expectedRevision)
	}

	out, err := s.client.PutObject(ctx, in)
	if err != nil {
		if isS3PreconditionFailed(err) {
			return "", ErrRevisionMismatch
		}
		return "", fmt.Errorf("s3 put failed: %w", err)
	}
	return aws.ToString(out.ETag), nil
}

// PutArtifact uploads a CSV artifact.
func (s *S3Store) PutArtifact(ctx context.Context, name string, data []byte) error {
	if !ValidArtifactName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.artifactKey(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return fmt.Errorf("s3 put failed for %s: %w", name, err)
	}
	return nil
}

// ListArtifacts lists CSV artifacts, newest first. S3 keeps no creation
// time separate from the last write, so Created equals Modified.
func (s *S3Store) ListArtifacts(ctx context.Context) ([]ArtifactInfo, error) {
	keyPrefix := s.prefix + artifactDir
	infos := []ArtifactInfo{}

	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(keyPrefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list failed: %w", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), keyPrefix)
			if !ValidArtifactName(name) {
				continue
			}
			modified := aws.ToTime(obj.LastModified)
			infos = append(infos, ArtifactInfo{
				Filename: name,
				Size:     aws.ToInt64(obj.Size),
				Created:  modified,
				Modified: modified,
			})
		}
	}
	sortArtifacts(infos)
	return infos, nil
}

// GetArtifact downloads a CSV artifact.
func (s *S3Store) GetArtifact(ctx context.Context, name string) ([]byte, error) {
	if !ValidArtifactName(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.artifactKey(name)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get failed for %s: %w", name, err)
	}
	defer func() { _ = out.Body.Close() }()

	return io.ReadAll(out.Body)
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *S3Store) Close() error {
	return nil
}

func isS3NotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func isS3PreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

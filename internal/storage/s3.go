package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Config configures an S3-compatible bucket (AWS, MinIO, Supabase storage).
type S3Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	PublicBaseURL  string
	ForcePathStyle bool
	PresignTTL     time.Duration
}

// S3 stores photos in an S3 bucket. Versions are the bucket's version id when
// versioning is enabled, otherwise the object's ETag.
type S3 struct {
	client     *s3.S3
	bucket     string
	publicBase string
	presignTTL time.Duration
}

// NewS3 creates an S3 backend.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket required")
	}
	awsCfg := &aws.Config{
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(cfg.ForcePathStyle),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("s3: session: %w", err)
	}
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3{
		client:     s3.New(sess),
		bucket:     cfg.Bucket,
		publicBase: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
		presignTTL: ttl,
	}, nil
}

// Put writes data under key, replacing any previous object.
func (s *S3) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if key == "" {
		return Object{}, ErrEmptyKey
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	out, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String(contentType),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	})
	if err != nil {
		return Object{}, fmt.Errorf("s3: put %s: %w", key, err)
	}
	return Object{Key: key, Version: s3Version(out.VersionId, out.ETag), Size: int64(len(data))}, nil
}

// Delete removes key. S3 reports success for missing keys.
func (s *S3) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3: delete %s: %w", key, err)
	}
	return nil
}

// URL returns a public URL carrying the version when a public base is
// configured, otherwise a short-lived presigned GET.
func (s *S3) URL(key, version string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if s.publicBase != "" {
		if version == "" {
			return "", ErrNoVersion
		}
		return s.publicBase + "/" + key + "?v=" + url.QueryEscape(version), nil
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	signed, err := req.Presign(s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("s3: presign %s: %w", key, err)
	}
	return signed, nil
}

func s3Version(versionID, etag *string) string {
	if v := aws.StringValue(versionID); v != "" && v != "null" {
		return v
	}
	return strings.Trim(aws.StringValue(etag), `"`)
}

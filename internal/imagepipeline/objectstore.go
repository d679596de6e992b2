// Copyright 2025 James Ross
package imagepipeline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// ObjectStoreConfig configures the S3-compatible backing store.
type ObjectStoreConfig struct {
	Endpoint  string
	KeyID     string
	Secret    string
	Bucket    string
	Region    string
	PublicURL string
	PathStyle bool
}

// ObjectStore uploads product images under products/<uuid>.<ext> and
// exposes their public URL.
type ObjectStore struct {
	cfg      ObjectStoreConfig
	uploader *s3manager.Uploader
	client   *s3.S3
}

func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	} else if cfg.PathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	if cfg.KeyID != "" && cfg.Secret != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.KeyID, cfg.Secret, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("imagepipeline: new aws session: %w", err)
	}
	return &ObjectStore{
		cfg:      cfg,
		uploader: s3manager.NewUploader(sess),
		client:   s3.New(sess),
	}, nil
}

// PutProductImage uploads re-encoded JPEG bytes to products/<key>.jpeg
// with long public cache headers and provenance metadata, and returns
// the canonical public URL.
func (s *ObjectStore) PutProductImage(key string, data []byte, sourceURL string) (string, error) {
	objectKey := fmt.Sprintf("products/%s.jpeg", key)
	_, err := s.uploader.Upload(&s3manager.UploadInput{
		Bucket:       aws.String(s.cfg.Bucket),
		Key:          aws.String(objectKey),
		Body:         bytes.NewReader(data),
		ContentType:  aws.String("image/jpeg"),
		CacheControl: aws.String("public, max-age=31536000, immutable"),
		Metadata: map[string]*string{
			"source-url": aws.String(sourceURL),
		},
	})
	if err != nil {
		return "", fmt.Errorf("imagepipeline: upload %s: %w", objectKey, err)
	}
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + objectKey, nil
}

// Health lists the bucket to confirm connectivity, used by the health
// check endpoint.
func (s *ObjectStore) Health() error {
	_, err := s.client.ListObjectsV2(&s3.ListObjectsV2Input{
		Bucket:  aws.String(s.cfg.Bucket),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return fmt.Errorf("imagepipeline: object store health: %w", err)
	}
	return nil
}

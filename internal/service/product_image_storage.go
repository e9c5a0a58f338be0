package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sandeepkv93/crowdprice-backend/internal/observability"
)

const productImagePathPrefix = "products"

var (
	ErrStorageDisabled      = errors.New("object storage is disabled")
	ErrFileTooBig           = errors.New("file exceeds the product image size limit")
	ErrInvalidFileType      = errors.New("invalid file type, only JPEG and PNG images are allowed")
	ErrBucketCreationFailed = errors.New("failed to create storage bucket")
	ErrUploadFailed         = errors.New("failed to upload file")
	ErrDeleteFailed         = errors.New("failed to delete file")
	ErrURLGenerationFailed  = errors.New("failed to generate presigned URL")
	ErrUnauthorizedAccess   = errors.New("object key does not belong to product")

	allowedContentTypes = map[string]struct{}{
		"image/jpeg": {},
		"image/png":  {},
	}
)

// ProductImageStorage stores product images in an object store.
type ProductImageStorage interface {
	// UploadProductImage stores the image and returns its object key.
	UploadProductImage(ctx context.Context, productID uint, file io.Reader, fileSize int64) (string, error)
	// DeleteProductImage removes an object previously stored for productID.
	DeleteProductImage(ctx context.Context, productID uint, objectKey string) error
	// GenerateImageURL returns a time-limited GET URL for objectKey.
	GenerateImageURL(ctx context.Context, objectKey string) (string, error)
}

// NewMinIOClient builds an S3 client. No request is made until first use.
func NewMinIOClient(endpoint, accessKey, secretKey, region string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return client, nil
}

type MinIOProductImageStorage struct {
	client     *minio.Client
	bucketName string
	maxBytes   int64
	urlTTL     time.Duration
	initOnce   sync.Once
	initErr    error
}

// NewMinIOProductImageStorage defers bucket creation to the first upload so
// startup does not block on the object store.
func NewMinIOProductImageStorage(client *minio.Client, bucketName string, maxBytes int64, urlTTL time.Duration) *MinIOProductImageStorage {
	return &MinIOProductImageStorage{
		client:     client,
		bucketName: bucketName,
		maxBytes:   maxBytes,
		urlTTL:     urlTTL,
	}
}

func (s *MinIOProductImageStorage) lazyInit(ctx context.Context) error {
	s.initOnce.Do(func() {
		s.initErr = s.ensureBucketExists(ctx)
	})
	return s.initErr
}

func (s *MinIOProductImageStorage) ensureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
		}
	}
	return nil
}

// UploadProductImage sniffs the content type from the leading bytes; the
// client supplied Content-Type is ignored.
func (s *MinIOProductImageStorage) UploadProductImage(ctx context.Context, productID uint, file io.Reader, fileSize int64) (string, error) {
	outcome := "success"
	defer func() { observability.RecordStorageOperation(ctx, "put", outcome) }()

	if fileSize > s.maxBytes {
		outcome = "too_large"
		return "", ErrFileTooBig
	}

	buf := make([]byte, 512)
	n, err := io.ReadFull(file, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		outcome = "error"
		return "", fmt.Errorf("%w: read file for content detection: %v", ErrUploadFailed, err)
	}
	buf = buf[:n]

	detected := strings.ToLower(strings.TrimSpace(http.DetectContentType(buf)))
	if _, allowed := allowedContentTypes[detected]; !allowed {
		outcome = "invalid_type"
		return "", ErrInvalidFileType
	}

	if err := s.lazyInit(ctx); err != nil {
		outcome = "error"
		return "", err
	}

	objectKey := fmt.Sprintf("%s/product-%d/%s%s", productImagePathPrefix, productID, uuid.New().String(), contentTypeToExtension(detected))
	metadata := map[string]string{
		"Detected-Content-Type": detected,
		"Product-ID":            fmt.Sprintf("%d", productID),
		"Uploaded-At":           time.Now().UTC().Format(time.RFC3339),
	}
	_, err = s.client.PutObject(ctx, s.bucketName, objectKey, io.MultiReader(bytes.NewReader(buf), file), fileSize, minio.PutObjectOptions{
		ContentType:  detected,
		UserMetadata: metadata,
	})
	if err != nil {
		outcome = "error"
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return objectKey, nil
}

func (s *MinIOProductImageStorage) DeleteProductImage(ctx context.Context, productID uint, objectKey string) error {
	if strings.TrimSpace(objectKey) == "" {
		return nil
	}
	outcome := "success"
	defer func() { observability.RecordStorageOperation(ctx, "delete", outcome) }()

	if strings.Contains(objectKey, "..") || !strings.HasPrefix(objectKey, productImagePrefix(productID)) {
		outcome = "rejected"
		return ErrUnauthorizedAccess
	}
	if err := s.lazyInit(ctx); err != nil {
		outcome = "error"
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, objectKey, minio.RemoveObjectOptions{}); err != nil {
		outcome = "error"
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// GenerateImageURL signs locally; with a configured region no request reaches
// the object store.
func (s *MinIOProductImageStorage) GenerateImageURL(ctx context.Context, objectKey string) (string, error) {
	outcome := "success"
	defer func() { observability.RecordStorageOperation(ctx, "presign", outcome) }()

	if strings.TrimSpace(objectKey) == "" {
		outcome = "rejected"
		return "", fmt.Errorf("%w: empty object key", ErrURLGenerationFailed)
	}
	presigned, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey, s.urlTTL, url.Values{})
	if err != nil {
		outcome = "error"
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	return presigned.String(), nil
}

func productImagePrefix(productID uint) string {
	return fmt.Sprintf("%s/product-%d/", productImagePathPrefix, productID)
}

func contentTypeToExtension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}

// Package storage provides durable artifact storage for uploaded PDFs,
// cover images and generated page audio.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArtifactStore stores local files under namespaced keys and returns stable
// retrieval URLs. Storing an existing key overwrites it.
type ArtifactStore interface {
	Store(ctx context.Context, localPath, namespace, key string) (string, error)
	Delete(ctx context.Context, namespace, key string) error
}

// MinioStore implements ArtifactStore on MinIO/S3-compatible storage.
type MinioStore struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
	presignExpiry time.Duration
}

// NewMinioStore connects to the object store and ensures the bucket exists.
// When publicBaseURL is non-empty, retrieval URLs are built from it;
// otherwise long-lived presigned URLs are issued.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, publicBaseURL string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &MinioStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		presignExpiry: 7 * 24 * time.Hour,
	}, nil
}

// Store uploads the local file under namespace/key and returns its URL.
func (m *MinioStore) Store(ctx context.Context, localPath, namespace, key string) (string, error) {
	objectName := objectName(namespace, key)

	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := m.client.FPutObject(ctx, m.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", objectName, err)
	}

	if m.publicBaseURL != "" {
		return m.publicBaseURL + "/" + m.bucket + "/" + objectName, nil
	}

	url, err := m.client.PresignedGetObject(ctx, m.bucket, objectName, m.presignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", objectName, err)
	}
	return url.String(), nil
}

// Delete removes an object.
func (m *MinioStore) Delete(ctx context.Context, namespace, key string) error {
	objectName := objectName(namespace, key)
	if err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object %s: %w", objectName, err)
	}
	return nil
}

func objectName(namespace, key string) string {
	namespace = strings.Trim(namespace, "/")
	key = strings.TrimLeft(key, "/")
	if namespace == "" {
		return key
	}
	return namespace + "/" + key
}

// AudioKey builds the canonical object key for one page's audio artifact.
func AudioKey(bookID uint, pageNumber int) (namespace, key string) {
	return fmt.Sprintf("audio/book_%d", bookID), fmt.Sprintf("page_%04d.mp3", pageNumber)
}

// PDFKey builds the canonical object key for a book's source document.
func PDFKey(bookID uint) (namespace, key string) {
	return fmt.Sprintf("pdfs/book_%d", bookID), "original.pdf"
}

// CoverKey builds the canonical object key for a book's cover image.
// ext carries the dot, e.g. ".jpg".
func CoverKey(bookID uint, ext string) (namespace, key string) {
	return fmt.Sprintf("covers/book_%d", bookID), "cover" + ext
}

package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage keeps the corpus in a MinIO bucket, one object per
// catalog filename.
type MinioStorage struct {
	client     *minio.Client
	bucketName string
}

// MinioConfig holds MinIO connection settings.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// NewMinioStorage creates a MinIO-backed corpus store, creating the
// bucket if needed.
func NewMinioStorage(cfg MinioConfig) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %v", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %v", err)
		}
	}

	return &MinioStorage{
		client:     client,
		bucketName: cfg.Bucket,
	}, nil
}

// Put stores a file under the given name, replacing any previous version.
func (s *MinioStorage) Put(reader io.Reader, filename string) (FileInfo, error) {
	if filename == "" {
		return FileInfo{}, fmt.Errorf("filename cannot be empty")
	}

	contentType := getMimeType(filename)
	// Size -1 streams the upload without buffering the whole file.
	info, err := s.client.PutObject(
		context.Background(),
		s.bucketName,
		filename,
		reader,
		-1,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to upload file: %v", err)
	}

	return FileInfo{
		Name:     filename,
		Size:     info.Size,
		MimeType: contentType,
	}, nil
}

// Open returns the content of the named file.
func (s *MinioStorage) Open(filename string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(
		context.Background(),
		s.bucketName,
		filename,
		minio.GetObjectOptions{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %v", err)
	}

	// GetObject is lazy, stat to surface missing objects now.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("file %s not found", filename)
		}
		return nil, fmt.Errorf("failed to stat object: %v", err)
	}

	return obj, nil
}

// Delete removes the named file.
func (s *MinioStorage) Delete(filename string) error {
	err := s.client.RemoveObject(
		context.Background(),
		s.bucketName,
		filename,
		minio.RemoveObjectOptions{},
	)
	if err != nil {
		return fmt.Errorf("failed to delete object: %v", err)
	}
	return nil
}

// List returns all files in the store.
func (s *MinioStorage) List() ([]FileInfo, error) {
	var files []FileInfo

	objectCh := s.client.ListObjects(
		context.Background(),
		s.bucketName,
		minio.ListObjectsOptions{Recursive: true},
	)

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("error listing objects: %v", object.Err)
		}
		files = append(files, FileInfo{
			Name:     object.Key,
			Size:     object.Size,
			MimeType: getMimeType(object.Key),
		})
	}

	return files, nil
}

// Exists reports whether the named file is in the store.
func (s *MinioStorage) Exists(filename string) (bool, error) {
	_, err := s.client.StatObject(
		context.Background(),
		s.bucketName,
		filename,
		minio.StatObjectOptions{},
	)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %v", err)
	}
	return true, nil
}

package managers

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

// StorageMgr outlines the contract for object storage. Profile pictures are
// the only objects the server stores.
type StorageMgr interface {
	UploadProfilePicture(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}

// StorageManager stores objects in a MinIO (S3-compatible) bucket and hands
// out public URLs for them.
type StorageManager struct {
	client        *minio.Client
	bucket        string
	publicBaseURL string
}

// UploadProfilePicture uploads the picture under the given key and returns
// the public URL it is reachable at.
func (sm *StorageManager) UploadProfilePicture(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := sm.client.PutObject(ctx, sm.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%s/%s", sm.publicBaseURL, sm.bucket, key), nil
}

// NewStorageManager connects to MinIO using the MINIO_* environment
// variables and makes sure the profile picture bucket exists.
func NewStorageManager() (StorageMgr, error) {
	log.Info("Initializing storage manager")

	endpoint := os.Getenv("MINIO_ENDPOINT")
	accessKey := os.Getenv("MINIO_ACCESS_KEY")
	secretKey := os.Getenv("MINIO_SECRET_KEY")
	useSSL := os.Getenv("MINIO_USE_SSL") == "true"

	bucket := os.Getenv("MINIO_BUCKET")
	if bucket == "" {
		bucket = "profile-pictures"
	}

	publicBaseURL := os.Getenv("MINIO_PUBLIC_URL")
	if publicBaseURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicBaseURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}
	publicBaseURL = strings.TrimRight(publicBaseURL, "/")

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	sm := &StorageManager{
		client:        client,
		bucket:        bucket,
		publicBaseURL: publicBaseURL,
	}

	if err := sm.ensureBucket(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Initialized storage manager")
	return sm, nil
}

func (sm *StorageManager) ensureBucket(ctx context.Context) error {
	exists, err := sm.client.BucketExists(ctx, sm.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return sm.client.MakeBucket(ctx, sm.bucket, minio.MakeBucketOptions{})
}

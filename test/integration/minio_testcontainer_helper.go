package integration

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sandeepkv93/crowdprice-backend/internal/service"
)

const (
	minioImageEnv     = "MINIO_TEST_IMAGE"
	minioDefaultImage = "docker.io/minio/minio:RELEASE.2025-09-07T16-13-09Z"
	minioRootUser     = "crowdprice"
	minioRootPassword = "crowdprice-secret"
)

// objectStore is a throwaway MinIO container plus the product image storage
// wired against a fresh bucket.
type objectStore struct {
	client  *minio.Client
	bucket  string
	storage *service.MinIOProductImageStorage
}

func startObjectStore(t *testing.T) *objectStore {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	image := os.Getenv(minioImageEnv)
	if image == "" {
		image = minioDefaultImage
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			Env:          map[string]string{"MINIO_ROOT_USER": minioRootUser, "MINIO_ROOT_PASSWORD": minioRootPassword},
			ExposedPorts: []string{"9000/tcp"},
			Cmd:          []string{"server", "/data"},
			WaitingFor:   wait.ForHTTP("/minio/health/ready").WithPort("9000/tcp").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	endpoint, err := container.PortEndpoint(ctx, "9000/tcp", "")
	if err != nil {
		t.Fatalf("resolve minio endpoint: %v", err)
	}
	if _, _, err := net.SplitHostPort(endpoint); err != nil {
		t.Fatalf("unexpected minio endpoint %q: %v", endpoint, err)
	}

	client, err := service.NewMinIOClient(endpoint, minioRootUser, minioRootPassword, "us-east-1", false)
	if err != nil {
		t.Fatalf("create minio client: %v", err)
	}
	bucket := fmt.Sprintf("product-images-it-%d", time.Now().UnixNano())
	return &objectStore{
		client:  client,
		bucket:  bucket,
		storage: service.NewMinIOProductImageStorage(client, bucket, 1<<20, 5*time.Minute),
	}
}

func (s *objectStore) stat(t *testing.T, key string) (minio.ObjectInfo, bool) {
	t.Helper()
	info, err := s.client.StatObject(context.Background(), s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return info, true
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return minio.ObjectInfo{}, false
	}
	t.Fatalf("stat object %q: %v", key, err)
	return minio.ObjectInfo{}, false
}

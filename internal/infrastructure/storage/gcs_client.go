package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"neighborly/pkg/errors"
)

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName, credentialsPath string) (*CloudStorageClient, error) {
	var opts []option.ClientOption
	if credentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsPath))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Upload writes the object privately and returns its gs:// URI. Readers get
// access through SignedReadURL.
func (c *CloudStorageClient) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	wc := c.client.Bucket(c.bucketName).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	wc.CacheControl = "private, max-age=86400"

	if _, err := io.Copy(wc, r); err != nil {
		wc.Close()
		return "", errors.DependencyUnavailable("Failed to upload file", err)
	}
	if err := wc.Close(); err != nil {
		return "", errors.DependencyUnavailable("Failed to upload file", err)
	}

	return c.uri(objectPath), nil
}

// SignedReadURL accepts a gs:// URI from this bucket or a bare object path.
func (c *CloudStorageClient) SignedReadURL(uri string, ttl time.Duration) (string, error) {
	objectPath, ok := c.objectPath(uri)
	if !ok {
		return "", errors.Validation(fmt.Sprintf("%s is not stored in this bucket", uri), nil)
	}

	url, err := c.client.Bucket(c.bucketName).SignedURL(objectPath, &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	})
	if err != nil {
		return "", errors.DependencyUnavailable("Failed to sign read URL", err)
	}
	return url, nil
}

func (c *CloudStorageClient) uri(objectPath string) string {
	return fmt.Sprintf("gs://%s/%s", c.bucketName, objectPath)
}

func (c *CloudStorageClient) objectPath(uri string) (string, bool) {
	if !strings.HasPrefix(uri, "gs://") {
		return uri, uri != ""
	}
	objectPath := strings.TrimPrefix(uri, c.uri(""))
	return objectPath, objectPath != uri && objectPath != ""
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}

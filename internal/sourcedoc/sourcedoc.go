// Package sourcedoc loads raw report documents from the local filesystem or
// from Cloud Storage, keyed by a gs:// prefix.
package sourcedoc

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsPrefix = "gs://"

// Load reads the document at path. Paths starting with gs:// are fetched
// from Cloud Storage, everything else from the local filesystem.
func Load(ctx context.Context, path string) ([]byte, error) {
	if strings.HasPrefix(path, gcsPrefix) {
		bucket, object, err := splitGCSPath(path)
		if err != nil {
			return nil, err
		}
		return downloadObject(ctx, bucket, object)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("Load: reading %s: %w", path, err)
	}
	return data, nil
}

func splitGCSPath(path string) (bucket, object string, err error) {
	rest := strings.TrimPrefix(path, gcsPrefix)
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("splitGCSPath: %q is not a gs://bucket/object path", path)
	}
	return bucket, object, nil
}

func downloadObject(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	r, err := client.Bucket(bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open GCS object reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}

	return data, nil
}

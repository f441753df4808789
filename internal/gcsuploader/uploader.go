package gcsuploader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/storage"
)

const uploadTimeout = 2 * time.Minute

// Artifact is one named output file of an analysis.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadFile uploads a local file to a GCS bucket under the given object name.
// It assumes Application Default Credentials are configured (gcloud auth application-default login).
func UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	return uploadWithClient(ctx, client, bucketName, objectName, "", f)
}

// UploadBytes writes data to bucketName/objectName.
func UploadBytes(ctx context.Context, bucketName, objectName, contentType string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	return uploadWithClient(ctx, client, bucketName, objectName, contentType, bytes.NewReader(data))
}

// PublishArtifacts uploads every artifact under analyses/<sessionID>/ and
// returns their gs:// URIs in name order.
func PublishArtifacts(ctx context.Context, bucketName, sessionID string, artifacts []Artifact) ([]string, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("PublishArtifacts: create storage client: %w", err)
	}
	defer client.Close()

	sorted := append([]Artifact(nil), artifacts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	uris := make([]string, 0, len(sorted))
	for _, a := range sorted {
		object := ArtifactObject(sessionID, a.Name)
		if err := uploadWithClient(ctx, client, bucketName, object, a.ContentType, bytes.NewReader(a.Data)); err != nil {
			return uris, fmt.Errorf("PublishArtifacts: %w", err)
		}
		uris = append(uris, ObjectURI(bucketName, object))
	}
	return uris, nil
}

func uploadWithClient(ctx context.Context, client *storage.Client, bucketName, objectName, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	defer func() {
		// Ensure the writer is closed even on early returns
		_ = w.Close()
	}()

	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copy to GCS writer %s/%s: %w", bucketName, objectName, err)
	}

	// Close to finalize the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %s/%s: %w", bucketName, objectName, err)
	}
	return nil
}

package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/disintegration/imaging"
	"google.golang.org/api/option"
)

// UploadedFile is the metadata contract the upload collaborator returns.
// Mutations persist exactly these fields on the owning record.
type UploadedFile struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	StoragePath string `json:"storage_path"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

const profilePhotoMaxEdge = 512

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func bucketName() (string, error) {
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucket, nil
}

func publicObjectURL(bucket, objectPath string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, objectPath)
}

// UploadDocument writes the payload to GCS and returns the stored metadata.
// Failure here is a hard error: callers must abort the mutation, never write
// a record pointing at an object that does not exist.
func UploadDocument(ctx context.Context, objectPath, contentType string, payload []byte) (*UploadedFile, error) {
	bucket, err := bucketName()
	if err != nil {
		return nil, err
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	wc := client.Bucket(bucket).Object(objectPath).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(payload); err != nil {
		return nil, err
	}
	if err := wc.Close(); err != nil {
		return nil, err
	}

	return &UploadedFile{
		Name:        path.Base(objectPath),
		URL:         publicObjectURL(bucket, objectPath),
		StoragePath: objectPath,
		ContentType: contentType,
		SizeBytes:   int64(len(payload)),
	}, nil
}

// UploadProfilePhoto downscales the image before storing it. Tenant profile
// photos are rendered small everywhere; storing originals wastes space.
func UploadProfilePhoto(ctx context.Context, objectPath, contentType string, payload []byte) (*UploadedFile, error) {
	resized, err := resizeImage(payload, contentType)
	if err != nil {
		// Not decodable as an image: surface the error, photo fields are image-only.
		return nil, fmt.Errorf("invalid profile photo: %w", err)
	}
	return UploadDocument(ctx, objectPath, contentType, resized)
}

func resizeImage(payload []byte, contentType string) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	if bounds.Dx() > profilePhotoMaxEdge || bounds.Dy() > profilePhotoMaxEdge {
		img = imaging.Fit(img, profilePhotoMaxEdge, profilePhotoMaxEdge, imaging.Lanczos)
	}

	format := imaging.JPEG
	if strings.Contains(contentType, "png") {
		format = imaging.PNG
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadAllLimited guards multipart reads against oversized payloads.
func ReadAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d byte limit", limit)
	}
	return data, nil
}

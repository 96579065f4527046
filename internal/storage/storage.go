package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/andreyvolkau/airtrail/internal/config"
)

// Storage provides object storage operations for channel audio clips
type Storage struct {
	client     *minio.Client
	bucketName string
	urlExpiry  time.Duration
}

// New creates a new storage client
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	// Ensure bucket exists
	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{
			Region: cfg.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	urlExpiry := cfg.URLExpiry
	if urlExpiry <= 0 {
		urlExpiry = time.Hour
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		urlExpiry:  urlExpiry,
	}, nil
}

// ClipKey builds the deterministic object key for a segment's audio clip.
// The key doubles as the segment's stable natural identity, so it must be
// a pure function of channel and time span.
func (s *Storage) ClipKey(channelSlug string, start, end time.Time) string {
	day := start.UTC().Format("2006-01-02")
	return fmt.Sprintf("channels/%s/%s/%s-%s.mp3",
		channelSlug, day,
		start.UTC().Format("150405"), end.UTC().Format("150405"))
}

// ClipExists checks whether a clip object exists
func (s *Storage) ClipExists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat clip: %w", err)
	}
	return true, nil
}

// UploadClip uploads a recorded audio clip
func (s *Storage) UploadClip(ctx context.Context, key string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucketName, key, reader, size, minio.PutObjectOptions{
		ContentType: getContentType(key),
	})
	if err != nil {
		return fmt.Errorf("failed to upload clip: %w", err)
	}

	return nil
}

// DownloadClip downloads a clip for local processing
func (s *Storage) DownloadClip(ctx context.Context, key string) (io.ReadCloser, error) {
	object, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to download clip: %w", err)
	}

	return object, nil
}

// PresignClip returns a presigned GET URL for a clip, suitable for
// attaching to a transcription job.
func (s *Storage) PresignClip(ctx context.Context, key string) (string, error) {
	url, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign clip: %w", err)
	}

	return url.String(), nil
}

// DeleteClip deletes a clip from storage
func (s *Storage) DeleteClip(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete clip: %w", err)
	}

	return nil
}

// ListClips lists the clip keys under a channel-day prefix
func (s *Storage) ListClips(ctx context.Context, channelSlug, day string) ([]string, error) {
	prefix := fmt.Sprintf("channels/%s/%s/", channelSlug, day)

	var keys []string
	for object := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list clips: %w", object.Err)
		}
		keys = append(keys, object.Key)
	}

	return keys, nil
}

// getContentType returns the content type based on file extension
func getContentType(key string) string {
	switch filepath.Ext(key) {
	case ".mp3":
		return "audio/mpeg"
	case ".aac":
		return "audio/aac"
	case ".m4a":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

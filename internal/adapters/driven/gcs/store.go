package gcs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/custodia-labs/athena-core/internal/core/domain"
	"github.com/custodia-labs/athena-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ArtifactStore = (*ArtifactStore)(nil)

const (
	clipContentType      = "video/mp4"
	defaultUploadTimeout = 2 * time.Minute
	maxSignedURLTTL      = 7 * 24 * time.Hour
)

// Config holds configuration for the GCS artifact store
type Config struct {
	Bucket string

	// GoogleAccessID and PrivateKey sign URLs locally. When empty the
	// credentials the client was created with are used.
	GoogleAccessID string
	PrivateKey     []byte

	// ClientOptions are passed to storage.NewClient.
	ClientOptions []option.ClientOption

	UploadTimeout time.Duration
	Logger        *slog.Logger
}

// ArtifactStore publishes rendered clips to a Cloud Storage bucket.
type ArtifactStore struct {
	client         *storage.Client
	bucket         string
	googleAccessID string
	privateKey     []byte
	uploadTimeout  time.Duration
	logger         *slog.Logger
}

// NewArtifactStore creates a storage client for the configured bucket.
func NewArtifactStore(ctx context.Context, cfg Config) (*ArtifactStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: bucket is required", domain.ErrInvalidInput)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.UploadTimeout
	if timeout <= 0 {
		timeout = defaultUploadTimeout
	}

	opts := append([]option.ClientOption{option.WithScopes(storage.ScopeReadWrite)}, cfg.ClientOptions...)
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &ArtifactStore{
		client:         client,
		bucket:         cfg.Bucket,
		googleAccessID: cfg.GoogleAccessID,
		privateKey:     cfg.PrivateKey,
		uploadTimeout:  timeout,
		logger:         logger,
	}, nil
}

// Upload copies the local clip to objectName.
func (s *ArtifactStore) Upload(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, s.uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = clipContentType
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("%w: write %s: %v", domain.ErrProvider, objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: close writer for %s: %v", domain.ErrProvider, objectName, err)
	}

	s.logger.Debug("clip uploaded", "bucket", s.bucket, "object", objectName)
	return nil
}

// SignedURL returns a V4 signed GET URL valid for ttl. V4 URLs cannot
// outlive seven days so longer TTLs are capped.
func (s *ArtifactStore) SignedURL(_ context.Context, objectName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: ttl must be positive", domain.ErrInvalidInput)
	}
	if ttl > maxSignedURLTTL {
		ttl = maxSignedURLTTL
	}
	opts := &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         http.MethodGet,
		Expires:        time.Now().Add(ttl),
		GoogleAccessID: s.googleAccessID,
		PrivateKey:     s.privateKey,
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("%w: sign %s: %v", domain.ErrProvider, objectName, err)
	}
	return url, nil
}

// Close releases the storage client.
func (s *ArtifactStore) Close() error {
	return s.client.Close()
}

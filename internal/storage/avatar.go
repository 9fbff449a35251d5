// Package storage presigns avatar downloads from S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/kafedra/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrNotConfigured is returned when no storage endpoint is set
	ErrNotConfigured = errors.New("storage endpoint not configured")
	// ErrHostNotAllowed is returned when the endpoint host is outside the allow-list
	ErrHostNotAllowed = errors.New("storage host not allowed")
)

// ValidateEndpoint parses endpoint, with or without a scheme, and returns its
// host when the hostname ends with one of the allowed suffixes.
func ValidateEndpoint(endpoint string, allowedSuffixes []string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", ErrNotConfigured
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	u, err := url.Parse(endpoint)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid storage endpoint: %w", ErrHostNotAllowed)
	}
	if u.User != nil {
		return "", ErrHostNotAllowed
	}

	hostname := strings.ToLower(u.Hostname())
	for _, suffix := range allowedSuffixes {
		suffix = strings.ToLower(strings.TrimSpace(suffix))
		if suffix != "" && strings.HasSuffix(hostname, suffix) && hostname != strings.TrimPrefix(suffix, ".") {
			return u.Host, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrHostNotAllowed, hostname)
}

// AvatarStore hands out short-lived download links for user avatars
type AvatarStore struct {
	client *minio.Client
	bucket string
	expiry time.Duration
	host   string
}

// NewAvatarStore validates the endpoint against the allow-list and creates
// the client. No network call is made.
func NewAvatarStore(cfg config.StorageConfig) (*AvatarStore, error) {
	host, err := ValidateEndpoint(cfg.Endpoint, cfg.AllowedSuffixes)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &AvatarStore{
		client: client,
		bucket: cfg.Bucket,
		expiry: expiry,
		host:   host,
	}, nil
}

// Host returns the storage host, used for the content security policy
func (s *AvatarStore) Host() string {
	return s.host
}

// AvatarURL presigns a GET for the object key
func (s *AvatarStore) AvatarURL(ctx context.Context, key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid avatar key %q", key)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign avatar: %w", err)
	}
	return u.String(), nil
}

package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// LocalStore keeps media on a filesystem rooted at the media directory.
// Uploads are published under /uploads, everything else under /static.
type LocalStore struct {
	fs      afero.Fs
	baseURL string
}

func NewLocalStore(fs afero.Fs, baseURL string) *LocalStore {
	return &LocalStore{
		fs:      fs,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Upload writes body under key and returns its public URL
func (s *LocalStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(path.Dir(key), 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	f, err := s.fs.Create(key)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", key, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", key, err)
	}

	return s.GetPublicURL(key), nil
}

// Delete removes key; a missing file is not an error
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// GetSignedURL returns the public URL; local media needs no signing
func (s *LocalStore) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return s.GetPublicURL(key), nil
}

func (s *LocalStore) GetPublicURL(key string) string {
	if strings.HasPrefix(key, DirUploads+"/") {
		return s.baseURL + "/" + key
	}
	return s.baseURL + "/static/" + key
}

func (s *LocalStore) Open(key string) (afero.File, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	return s.fs.Open(key)
}

func (s *LocalStore) Exists(key string) bool {
	if validKey(key) != nil {
		return false
	}
	ok, err := afero.Exists(s.fs, key)
	return err == nil && ok
}

func (s *LocalStore) Stat(key string) (os.FileInfo, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	return s.fs.Stat(key)
}

// KeyForURL maps a URL published by this store (absolute or root-relative)
// back to its key. Remote URLs return false.
func (s *LocalStore) KeyForURL(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	p := raw
	if s.baseURL != "" && strings.HasPrefix(raw, s.baseURL) {
		p = strings.TrimPrefix(raw, s.baseURL)
	} else if u, err := url.Parse(raw); err == nil && u.IsAbs() {
		return "", false
	}

	var key string
	switch {
	case strings.HasPrefix(p, "/static/"):
		key = strings.TrimPrefix(p, "/static/")
	case strings.HasPrefix(p, "/"+DirUploads+"/"):
		key = strings.TrimPrefix(p, "/")
	default:
		return "", false
	}
	if validKey(key) != nil {
		return "", false
	}
	return key, true
}

func validKey(key string) error {
	if key == "" || path.IsAbs(key) || strings.Contains(key, "..") {
		return fmt.Errorf("invalid media key %q", key)
	}
	return nil
}

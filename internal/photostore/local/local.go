package local

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/vbonduro/shelfshot/internal/photostore"
)

const jpegQuality = 90

type LocalPhotoStore struct {
	basePath string
}

func NewLocalPhotoStore(basePath string) (*LocalPhotoStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &LocalPhotoStore{basePath: basePath}, nil
}

// Root returns the directory keys are resolved against.
func (s *LocalPhotoStore) Root() string {
	return s.basePath
}

// Save writes r to key and returns the absolute path. A partially written
// file is removed on failure.
func (s *LocalPhotoStore) Save(ctx context.Context, key string, r io.Reader) (string, error) {
	filePath, err := s.safeJoin(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		if cerr := f.Close(); cerr != nil {
			slog.Error("failed to close file after write error", "error", cerr)
		}
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after write error", "error", rerr)
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		if rerr := os.Remove(filePath); rerr != nil {
			slog.Error("failed to remove file after close error", "error", rerr)
		}
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return filePath, nil
}

// SaveImage encodes img according to the key's extension (.png or JPEG)
// and stores it.
func (s *LocalPhotoStore) SaveImage(ctx context.Context, key string, img image.Image) (string, error) {
	pr, pw := io.Pipe()
	go func() {
		bw := bufio.NewWriter(pw)
		var err error
		if extToMimeType(key) == "image/png" {
			err = png.Encode(bw, img)
		} else {
			err = jpeg.Encode(bw, img, &jpeg.Options{Quality: jpegQuality})
		}
		if err == nil {
			err = bw.Flush()
		}
		pw.CloseWithError(err)
	}()
	path, err := s.Save(ctx, key, pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return path, nil
}

func (s *LocalPhotoStore) Get(ctx context.Context, key string) (io.ReadCloser, string, error) {
	filePath, err := s.safeJoin(key)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", photostore.ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}
	return f, extToMimeType(filePath), nil
}

// Copy duplicates srcKey to dstKey. The source is left untouched.
func (s *LocalPhotoStore) Copy(ctx context.Context, srcKey, dstKey string) error {
	src, _, err := s.Get(ctx, srcKey)
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := s.Save(ctx, dstKey, src); err != nil {
		return fmt.Errorf("failed to copy %s: %w", srcKey, err)
	}
	return nil
}

func (s *LocalPhotoStore) Delete(ctx context.Context, key string) error {
	filePath, err := s.safeJoin(key)
	if err != nil {
		return err
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return photostore.ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// Path returns the absolute path for key.
func (s *LocalPhotoStore) Path(key string) (string, error) {
	return s.safeJoin(key)
}

// safeJoin resolves key relative to basePath and rejects directory traversal.
func (s *LocalPhotoStore) safeJoin(key string) (string, error) {
	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, key))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal attempt")
	}
	return absPath, nil
}

func extToMimeType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

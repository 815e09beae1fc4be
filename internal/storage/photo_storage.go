package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/h2non/filetype"

	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// Proof photos come from phone cameras; only raster image formats are
// accepted.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heif": true,
}

// PhotoStorage keeps proof-of-delivery photos on the local filesystem.
// Files are written to a temp name and renamed into place so a crashed
// upload never leaves a partial file behind a served path.
type PhotoStorage struct {
	rootPath       string
	maxUploadBytes int64
}

func NewPhotoStorage(rootPath string, maxUploadMB int64) (*PhotoStorage, error) {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", rootPath, err)
	}

	return &PhotoStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Save sniffs the content, enforces the size limit and returns the relative
// path of the stored photo. The stored name and extension come from the
// magic bytes; the client's declared filename is ignored.
func (s *PhotoStorage) Save(ctx context.Context, uploaderID uuid.UUID, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", 0, fmt.Errorf("storage: read upload: %w", err)
	}
	head = head[:n]

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedImageTypes[kind.MIME.Value] {
		return "", 0, apperror.New(apperror.ErrCodeValidation,
			"proof photo must be a jpeg, png, webp or heif image")
	}

	fileName := fmt.Sprintf("%s_%d.%s", uploaderID.String(), time.Now().UnixNano(), kind.Extension)

	uploaderDir := filepath.Join(s.rootPath, uploaderID.String())
	if err := os.MkdirAll(uploaderDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("storage: create uploader dir: %w", err)
	}

	targetPath := filepath.Join(uploaderDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("storage: create file: %w", err)
	}
	defer f.Close()

	limited := io.LimitedReader{R: io.MultiReader(bytes.NewReader(head), r), N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limited)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", 0, fmt.Errorf("storage: write file: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", 0, apperror.Newf(apperror.ErrCodeValidation,
			"photo exceeds the %d byte upload limit", s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		return "", 0, fmt.Errorf("storage: close file: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", 0, fmt.Errorf("storage: rename file: %w", err)
	}

	return filepath.Join(uploaderID.String(), fileName), written, nil
}

// Delete removes a stored photo. A missing file is not an error.
func (s *PhotoStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, filepath.Clean(relativePath))
	if !strings.HasPrefix(target, s.rootPath) {
		return apperror.New(apperror.ErrCodeValidation, "path escapes the storage root")
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

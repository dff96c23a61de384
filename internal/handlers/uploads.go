package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/cinevo/backend/internal/media"
)

// maxUploadBytes caps multipart request bodies. Video files dominate; the
// limit is generous but finite.
const maxUploadBytes = 512 << 20

// saveUpload streams one multipart file into the blob store under the given
// folder and returns its public URL. The stored name is a fresh UUID with
// the original extension, so uploads never collide.
func saveUpload(ctx context.Context, store media.BlobStore, folder string, r *http.Request, field string) (string, error) {
	if store == nil {
		return "", media.ErrStoreUnavailable
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return storeFile(ctx, store, folder, file, header)
}

func storeFile(ctx context.Context, store media.BlobStore, folder string, file multipart.File, header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	name := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)

	url, err := store.Save(ctx, name, file)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", folder, err)
	}
	return url, nil
}

// hasUpload reports whether the multipart form carries a file for the field.
func hasUpload(r *http.Request, field string) bool {
	if r.MultipartForm == nil {
		return false
	}
	return len(r.MultipartForm.File[field]) > 0
}

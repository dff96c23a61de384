package media

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrStoreUnavailable indicates no blob store is configured.
	ErrStoreUnavailable = errors.New("blob store unavailable")
)

// Folders group uploads inside the bucket by purpose.
const (
	FolderVideos     = "videos"
	FolderThumbnails = "thumbnails"
	FolderAvatars    = "avatars"
	FolderCovers     = "covers"
)

// BlobStore persists uploaded bytes and returns a public URL for them.
// Uploads may fail transiently; callers decide whether a failure is fatal
// (primary media) or degradable (thumbnails).
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

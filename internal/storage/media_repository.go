package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"

	domerrors "github.com/garyellow/lessonbot-go/internal/errors"
)

// UploadMedia stores data under "<lessonID>/<filename>" and returns its public URL.
func (db *DB) UploadMedia(ctx context.Context, lessonID, filename string, data []byte, mimeType string) (string, error) {
	if db.objects == nil {
		return "", domerrors.NewWrapper(module, "upload_media").Wrap(domerrors.ErrMediaUnavailable, "media storage is not configured")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	key := MediaKey(lessonID, filename)
	if _, err := db.objects.Upload(ctx, key, bytes.NewReader(data), mimeType); err != nil {
		return "", fail(ctx, "upload_media", err, "key", key, "size", len(data))
	}
	return db.objects.PublicURL(key), nil
}

// MediaKey builds the object key for an attachment. The file name is reduced
// to its base name; an unusable name is replaced by a random one.
func MediaKey(lessonID, filename string) string {
	name := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		name = uuid.NewString()
	}
	return fmt.Sprintf("%s/%s", lessonID, name)
}

package objstore

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"time"
)

// Archiver moves processed files into the dated archive layout:
// archive/<yyyymmdd>/<success|failed>/<name>_<timestamp><ext>.
type Archiver struct {
	store  Store
	prefix string
	now    func() time.Time
}

// NewArchiver creates an archiver writing under the given prefix
// ("archive" by default).
func NewArchiver(store Store, prefix string) *Archiver {
	if prefix == "" {
		prefix = "archive"
	}
	return &Archiver{store: store, prefix: prefix, now: time.Now}
}

// Archive copies the object to its archive key and deletes the original.
// Returns the archive key. A copy failure leaves the original in place.
func (a *Archiver) Archive(ctx context.Context, key string, success bool) (string, error) {
	archiveKey := a.archiveKey(key, success)

	if err := a.store.Copy(ctx, key, archiveKey); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", key, err)
	}
	if err := a.store.Delete(ctx, key); err != nil {
		log.Printf("[Archiver] WARNING: archived %s but failed to delete original: %v", key, err)
	}
	log.Printf("[Archiver] archived %s to %s", key, archiveKey)
	return archiveKey, nil
}

func (a *Archiver) archiveKey(key string, success bool) string {
	now := a.now()
	folder := "failed"
	if success {
		folder = "success"
	}

	base := path.Base(key)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)
	stamped := fmt.Sprintf("%s_%s%s", name, now.Format("20060102_150405"), ext)

	return path.Join(a.prefix, now.Format("20060102"), folder, stamped)
}

package objstore

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeObject(t *testing.T, root, key, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	ctx := context.Background()
	writeObject(t, root, "input/report.xlsx", "payload")

	p, err := store.Download(ctx, "input/report.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(p)
	if err != nil || string(data) != "payload" {
		t.Fatalf("download content = %q, err %v", data, err)
	}

	if err := store.Copy(ctx, "input/report.xlsx", "archive/report.xlsx"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "input/report.xlsx"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Download(ctx, "input/report.xlsx"); err == nil {
		t.Fatal("deleted object should not download")
	}

	meta, err := store.Head(ctx, "archive/report.xlsx")
	if err != nil {
		t.Fatal(err)
	}
	if meta.SizeBytes != int64(len("payload")) || meta.ETag == "" {
		t.Fatalf("metadata = %+v", meta)
	}
}

func TestLocalStoreListFiltersByPrefix(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	writeObject(t, root, "input/a.xlsx", "a")
	writeObject(t, root, "input/b.xlsx", "b")
	writeObject(t, root, "archive/c.xlsx", "c")

	keys, err := store.List(context.Background(), "input/")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(keys, []string{"input/a.xlsx", "input/b.xlsx"}) {
		t.Fatalf("keys = %v", keys)
	}
}

func TestArchiverBuildsDatedKeyAndRemovesOriginal(t *testing.T) {
	root := t.TempDir()
	store := NewLocalStore(root)
	writeObject(t, root, "input/דוח קנסות.xlsx", "data")

	archiver := NewArchiver(store, "archive")
	archiver.now = func() time.Time {
		return time.Date(2025, 7, 13, 8, 30, 0, 0, time.UTC)
	}

	key, err := archiver.Archive(context.Background(), "input/דוח קנסות.xlsx", true)
	if err != nil {
		t.Fatal(err)
	}
	want := "archive/20250713/success/דוח קנסות_20250713_083000.xlsx"
	if key != want {
		t.Fatalf("archive key = %q, want %q", key, want)
	}
	if _, err := store.Download(context.Background(), key); err != nil {
		t.Fatalf("archived object missing: %v", err)
	}
	if _, err := store.Download(context.Background(), "input/דוח קנסות.xlsx"); err == nil {
		t.Fatal("original should be deleted after archiving")
	}
}

func TestArchiverFailedFolder(t *testing.T) {
	archiver := NewArchiver(NewLocalStore(t.TempDir()), "")
	archiver.now = func() time.Time {
		return time.Date(2025, 7, 13, 8, 30, 0, 0, time.UTC)
	}
	key := archiver.archiveKey("input/x.xlsx", false)
	if !strings.Contains(key, "/failed/") || !strings.HasPrefix(key, "archive/") {
		t.Fatalf("key = %q", key)
	}
}

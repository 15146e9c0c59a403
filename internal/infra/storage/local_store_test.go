//go:build !integration

package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-pipeline/internal/domain"
	"media-pipeline/internal/infra/storage"
)

func TestLocalStore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := storage.NewLocalStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	t.Run("should write the object under root", func(t *testing.T) {
		obj, err := s.Put(ctx, "p1/scene_01.png", strings.NewReader("png"), 3, "image/png")
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		if obj.Size != 3 || obj.Path != filepath.Join(s.Root(), "p1", "scene_01.png") {
			t.Fatalf("got %+v", obj)
		}
		b, err := os.ReadFile(obj.Path)
		if err != nil || string(b) != "png" {
			t.Fatalf("read back %q %v", b, err)
		}
		u, err := s.URL(ctx, "p1/scene_01.png")
		if err != nil || u != "file://"+obj.Path {
			t.Fatalf("URL %q %v", u, err)
		}
	})

	t.Run("should keep traversal inside root", func(t *testing.T) {
		obj, err := s.Put(ctx, "../../escape.txt", strings.NewReader("x"), 1, "")
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(obj.Path, s.Root()) {
			t.Fatalf("escaped root: %s", obj.Path)
		}
	})

	t.Run("should report missing objects", func(t *testing.T) {
		if _, err := s.URL(ctx, "nope.png"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("should reject empty keys", func(t *testing.T) {
		if _, err := s.Put(ctx, " ", strings.NewReader("x"), 1, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestContentType(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"a.JPG":  "image/jpeg",
		"b.png":  "image/png",
		"c.mp4":  "video/mp4",
		"d.mp3":  "audio/mpeg",
		"e.data": "application/octet-stream",
	}
	for key, want := range cases {
		if got := storage.ContentType(key); got != want {
			t.Errorf("%s: got %s want %s", key, got, want)
		}
	}
	if storage.Extension("image/png") != ".png" || storage.Extension("video/mp4; codecs=avc1") != ".mp4" {
		t.Fatal("extension mapping")
	}
}

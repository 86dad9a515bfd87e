package admin_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/glaretechnologies/substrata-sub005/internal/admin"
	"github.com/glaretechnologies/substrata-sub005/internal/domain"
	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/world"
)

func getPage(s *admin.Server, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestPhotoMidsizeAndThumbImageServeDerivedFiles(t *testing.T) {
	all := world.NewAllWorldsState(t.TempDir())
	photoDir := t.TempDir()
	s := admin.NewServer(all, t.TempDir(), t.TempDir(), t.TempDir(), photoDir, []byte("test-signing-key"))

	if err := os.WriteFile(filepath.Join(photoDir, "1_t.jpg"), []byte("thumb-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile(thumb): %v", err)
	}
	if err := os.WriteFile(filepath.Join(photoDir, "1_m.jpg"), []byte("midsize-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile(midsize): %v", err)
	}
	all.InsertPhoto(&domain.Photo{
		ID:                     idgen.PhotoID(1),
		LocalFilename:          "1.jpg",
		LocalThumbnailFilename: "1_t.jpg",
		LocalMidsizeFilename:   "1_m.jpg",
		State:                  domain.StatePublished,
	})

	rec := getPage(s, "/photo_thumb_image/1")
	if rec.Code != http.StatusOK || rec.Body.String() != "thumb-bytes" {
		t.Fatalf("thumb image: got code=%d body=%q", rec.Code, rec.Body.String())
	}

	rec = getPage(s, "/photo_midsize_image/1")
	if rec.Code != http.StatusOK || rec.Body.String() != "midsize-bytes" {
		t.Fatalf("midsize image: got code=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestPhotoMidsizeImageMissingPhotoReturnsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec := getPage(s, "/photo_midsize_image/999")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("got code=%d, want 404 for a missing photo", rec.Code)
	}
}

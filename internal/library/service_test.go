package library

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/hearth_tv/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.MediaItem{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return New(db, zerolog.Nop())
}

func seed(t *testing.T, s *Service, items ...models.MediaItem) {
	t.Helper()
	for i := range items {
		if err := s.db.Create(&items[i]).Error; err != nil {
			t.Fatalf("seed %s: %v", items[i].ID, err)
		}
	}
}

func strptr(v string) *string { return &v }

func TestGetInterludesFiltersSeasonalWindows(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	seed(t, s,
		models.MediaItem{ID: "i-always", Path: "/m/interludes/a.mp4", Filename: "a.mp4", MediaType: models.MediaTypeInterlude},
		models.MediaItem{ID: "i-spring", Path: "/m/interludes/b.mp4", Filename: "b.mp4", MediaType: models.MediaTypeInterlude, DateStart: strptr("03-01"), DateEnd: strptr("05-31")},
		models.MediaItem{ID: "i-winter", Path: "/m/interludes/c.mp4", Filename: "c.mp4", MediaType: models.MediaTypeInterlude, DateStart: strptr("12-01"), DateEnd: strptr("02-28")},
		models.MediaItem{ID: "v-main", Path: "/m/videos/d.mp4", Filename: "d.mp4", MediaType: models.MediaTypeVideo},
	)

	got, err := s.GetInterludes(context.Background(), "04-15")
	if err != nil {
		t.Fatalf("get interludes: %v", err)
	}
	ids := map[string]bool{}
	for _, item := range got {
		ids[item.ID] = true
	}
	if !ids["i-always"] || !ids["i-spring"] || ids["i-winter"] || ids["v-main"] {
		t.Fatalf("unexpected interlude set on 04-15: %v", ids)
	}

	got, err = s.GetInterludes(context.Background(), "12-31")
	if err != nil {
		t.Fatalf("get interludes: %v", err)
	}
	ids = map[string]bool{}
	for _, item := range got {
		ids[item.ID] = true
	}
	if !ids["i-always"] || !ids["i-winter"] || ids["i-spring"] {
		t.Fatalf("unexpected interlude set on 12-31: %v", ids)
	}
}

func TestGetByTypeMissingReturnsNil(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	item, err := s.GetByType(context.Background(), models.MediaTypeIntro)
	if err != nil {
		t.Fatalf("get by type: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil for missing intro, got %+v", item)
	}
}

func TestGetByIDEmptyIsNil(t *testing.T) {
	t.Parallel()
	s := newTestService(t)

	item, err := s.GetByID(context.Background(), "")
	if err != nil || item != nil {
		t.Fatalf("empty id should resolve to nil, got %+v err=%v", item, err)
	}
}

func TestImportManifestUpsertsAndPrunes(t *testing.T) {
	t.Parallel()
	s := newTestService(t)
	seed(t, s,
		models.MediaItem{ID: "keep", Path: "/m/videos/keep.mp4", Filename: "keep.mp4", MediaType: models.MediaTypeVideo, DurationSeconds: 100},
		models.MediaItem{ID: "gone", Path: "/m/videos/gone.mp4", Filename: "gone.mp4", MediaType: models.MediaTypeVideo},
	)

	manifest := &Manifest{
		Version: 1,
		Files: []FileEntry{
			{Path: "/m/videos/keep.mp4", Filename: "keep.mp4", MediaType: models.MediaTypeVideo, DurationSeconds: 123},
			{Path: "/m/videos/new.mp4", Filename: "new.mp4", MediaType: models.MediaTypeVideo, DurationSeconds: 456},
		},
	}

	result, err := s.ImportManifest(context.Background(), manifest)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 || result.Pruned != 1 {
		t.Fatalf("unexpected import result: %+v", result)
	}

	kept, err := s.GetByID(context.Background(), "keep")
	if err != nil || kept == nil {
		t.Fatalf("kept item missing: %v", err)
	}
	if kept.DurationSeconds != 123 {
		t.Fatalf("duration not updated, got %v", kept.DurationSeconds)
	}

	all, err := s.GetAll(context.Background())
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 items after prune, got %d", len(all))
	}
	for _, item := range all {
		if item.Path == "/m/videos/gone.mp4" {
			t.Fatal("pruned item still present")
		}
	}
}

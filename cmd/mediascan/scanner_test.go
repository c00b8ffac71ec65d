package main

import (
	"path/filepath"
	"testing"

	"github.com/friendsincode/hearth_tv/internal/models"
)

func TestClassifyBySubdirectory(t *testing.T) {
	root := filepath.Join("/srv", "media")
	cases := []struct {
		path string
		want models.MediaType
	}{
		{filepath.Join(root, "videos", "show.mp4"), models.MediaTypeVideo},
		{filepath.Join(root, "interludes", "clip.mp4"), models.MediaTypeInterlude},
		{filepath.Join(root, "intro", "open.mp4"), models.MediaTypeIntro},
		{filepath.Join(root, "outro", "close.mp4"), models.MediaTypeOutro},
		{filepath.Join(root, "offair", "loop.mp4"), models.MediaTypeOffAir},
		{filepath.Join(root, "loose.mp4"), models.MediaTypeVideo},
		{filepath.Join(root, "Interludes", "clip.mp4"), models.MediaTypeInterlude},
	}
	for _, tc := range cases {
		if got := classify(root, tc.path); got != tc.want {
			t.Errorf("classify(%s) = %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestParseSeasonalWindow(t *testing.T) {
	start, end, ok := parseSeasonalWindow("snow day (12-01..02-28).mp4")
	if !ok || start != "12-01" || end != "02-28" {
		t.Fatalf("got %q..%q ok=%v", start, end, ok)
	}

	if _, _, ok := parseSeasonalWindow("plain clip.mp4"); ok {
		t.Fatal("untagged filename should not parse a window")
	}

	if _, _, ok := parseSeasonalWindow("bad tag (1-1..2-2).mp4"); ok {
		t.Fatal("unpadded tag should not parse")
	}
}

func TestIsVideoFile(t *testing.T) {
	for _, name := range []string{"a.mp4", "b.MKV", "c.webm"} {
		if !isVideoFile(name) {
			t.Errorf("%s should be a video file", name)
		}
	}
	for _, name := range []string{"cover.jpg", "notes.txt", "clip.mp3"} {
		if isVideoFile(name) {
			t.Errorf("%s should not be a video file", name)
		}
	}
}

package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestTarget(t *testing.T) {
	target := Target{Type: TargetEvent, ID: "623", Section: SectionAll}

	if got := target.DocumentID(false); got != "event-623-all" {
		t.Errorf("expected event-623-all, got %s", got)
	}
	if got := target.DocumentID(true); got != "event-623-all-compact" {
		t.Errorf("expected event-623-all-compact, got %s", got)
	}
}

func TestSectionIncludes(t *testing.T) {
	tc := []struct {
		section Section
		other   Section
		want    bool
	}{
		{SectionAll, SectionMusic, true},
		{SectionAll, SectionGender, true},
		{SectionMusic, SectionMusic, true},
		{SectionMusic, SectionLikes, false},
		{SectionGender, SectionMusic, false},
	}

	for _, tt := range tc {
		if got := tt.section.Includes(tt.other); got != tt.want {
			t.Errorf("%s.Includes(%s) = %v, want %v", tt.section, tt.other, got, tt.want)
		}
	}
}

func TestDocumentJSON(t *testing.T) {
	t.Run("empty lists publish as arrays", func(t *testing.T) {
		likes := []*Like{}
		doc := Document{
			ID:   "brand-1-likes",
			Type: TargetBrand,
			Data: DocumentData{Likes: &likes},
		}

		data, err := json.Marshal(doc)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		out := string(data)
		if !strings.Contains(out, `"likes":[]`) {
			t.Errorf("expected empty likes array, got %s", out)
		}
		if strings.Contains(out, "_rev") || strings.Contains(out, "gender") || strings.Contains(out, "musicstreaming") {
			t.Errorf("unset fields should be omitted, got %s", out)
		}
	})

	t.Run("revision and gender", func(t *testing.T) {
		doc := Document{ID: "event-2-gender", Rev: "3-abc", Type: TargetEvent, Data: DocumentData{Gender: &Gender{Male: 1, Female: 2}}}

		data, _ := json.Marshal(doc)
		out := string(data)
		if !strings.Contains(out, `"_rev":"3-abc"`) || !strings.Contains(out, `"gender":{"male":1,"female":2}`) {
			t.Errorf("unexpected document json %s", out)
		}
	})
}

func TestConstructors(t *testing.T) {
	track := NewTrack("t1", "c1")
	if track.Count != 1 || track.Customers.Len() != 1 || !track.Customers.Has("c1") {
		t.Errorf("unexpected track %+v", track)
	}

	artist := NewArtist("a1", "Artist", "https://api.spotify.com/v1/artists/a1", "t1")
	if artist.Count != 1 || !artist.Tracks.Has("t1") {
		t.Errorf("unexpected artist %+v", artist)
	}
}

func TestRunDuration(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	run := &Run{StartedAt: start}
	if run.Duration() != 0 {
		t.Error("unfinished run should have zero duration")
	}

	end := start.Add(90 * time.Second)
	run.FinishedAt = &end
	if run.Duration() != 90*time.Second {
		t.Errorf("expected 90s, got %v", run.Duration())
	}
}

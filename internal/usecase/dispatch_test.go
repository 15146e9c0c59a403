//go:build !integration

package usecase

import (
	"testing"

	"media-pipeline/internal/config"
	"media-pipeline/internal/domain/model"
)

func TestDispatchPolicy_Decide(t *testing.T) {
	t.Parallel()
	p := NewDispatchPolicy(config.DefaultCinematicKeywords)

	cases := []struct {
		name string
		s    model.SceneStep
		want Branch
	}{
		{"cinematic video mood animates a still", scene(1, 0, 5, model.MediaVideo, "epic cathedral"), BranchImageThenAnimate},
		{"plain video goes direct", scene(2, 0, 5, model.MediaVideo, "quiet dialogue"), BranchDirectVideo},
		{"image ignores mood", scene(3, 0, 5, model.MediaImage, "epic cathedral"), BranchDirectImage},
		{"mood match is case-insensitive", scene(4, 0, 5, model.MediaVideo, "An EPIC reveal"), BranchImageThenAnimate},
		{"empty mood goes direct", scene(5, 0, 5, model.MediaVideo, ""), BranchDirectVideo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := p.Decide(tc.s); got != tc.want {
				t.Fatalf("Decide(%q) = %s, want %s", tc.s.Mood, got, tc.want)
			}
		})
	}
}

func TestDispatchPolicy_Pure(t *testing.T) {
	t.Parallel()
	p := NewDispatchPolicy([]string{"epic"})
	s := scene(1, 0, 5, model.MediaVideo, "epic")
	first := p.Decide(s)
	for i := 0; i < 10; i++ {
		if got := p.Decide(s); got != first {
			t.Fatalf("decision changed on call %d: %s != %s", i, got, first)
		}
	}
}

func TestDispatchPolicy_ConfigurableKeywords(t *testing.T) {
	t.Parallel()

	t.Run("should normalize keywords", func(t *testing.T) {
		p := NewDispatchPolicy([]string{"  Storm ", "", "NEON"})
		kw := p.Keywords()
		if len(kw) != 2 || kw[0] != "storm" || kw[1] != "neon" {
			t.Fatalf("unexpected keywords %v", kw)
		}
		if got := p.Decide(scene(1, 0, 5, model.MediaVideo, "neon alley")); got != BranchImageThenAnimate {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("should never animate with no keywords", func(t *testing.T) {
		p := NewDispatchPolicy(nil)
		if got := p.Decide(scene(1, 0, 5, model.MediaVideo, "epic cathedral")); got != BranchDirectVideo {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("should not leak internal slice", func(t *testing.T) {
		p := NewDispatchPolicy([]string{"epic"})
		kw := p.Keywords()
		kw[0] = "calm"
		if got := p.Decide(scene(1, 0, 5, model.MediaVideo, "calm")); got != BranchDirectVideo {
			t.Fatalf("policy changed through Keywords(): %s", got)
		}
	})
}

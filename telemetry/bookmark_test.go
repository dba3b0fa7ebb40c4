package telemetry

import (
	"testing"
)

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, b := range bookmarks {
		if b.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_FirstSuccess(t *testing.T) {
	bd := NewBookmarkDetector(10)

	if got := bd.Check(WindowStats{WindowEndTick: 500, Agents: 2, Alive: 2}); hasBookmark(got, BookmarkFirstSuccess) {
		t.Error("no success yet, bookmark should not fire")
	}
	got := bd.Check(WindowStats{WindowEndTick: 1000, Agents: 2, Alive: 2, Successes: 1})
	if !hasBookmark(got, BookmarkFirstSuccess) {
		t.Error("expected first_success bookmark")
	}

	bd.NewEpisode()
	got = bd.Check(WindowStats{WindowEndTick: 500, Agents: 2, Alive: 2, Successes: 2})
	if hasBookmark(got, BookmarkFirstSuccess) {
		t.Error("first_success should fire once per run")
	}
}

func TestBookmarkDetector_ProgressBreakthrough(t *testing.T) {
	bd := NewBookmarkDetector(10)

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: i * 500, Agents: 1, Alive: 1, MaxX: 20 + float64(i)})
	}

	got := bd.Check(WindowStats{WindowEndTick: 3000, Agents: 1, Alive: 1, MaxX: 60})
	if !hasBookmark(got, BookmarkProgressBreakthrough) {
		t.Error("expected progress_breakthrough bookmark")
	}
}

func TestBookmarkDetector_Wipeout(t *testing.T) {
	bd := NewBookmarkDetector(10)

	bd.Check(WindowStats{WindowEndTick: 500, Agents: 3, Alive: 3})
	got := bd.Check(WindowStats{WindowEndTick: 1000, Agents: 3, Alive: 0})
	if !hasBookmark(got, BookmarkPopulationWipeout) {
		t.Error("expected population_wipeout bookmark")
	}

	got = bd.Check(WindowStats{WindowEndTick: 1500, Agents: 3, Alive: 0})
	if hasBookmark(got, BookmarkPopulationWipeout) {
		t.Error("wipeout should not repeat while the population stays dead")
	}
}

func TestBookmarkDetector_Stagnation(t *testing.T) {
	bd := NewBookmarkDetector(10)

	fired := 0
	for i := 0; i < 12; i++ {
		got := bd.Check(WindowStats{WindowEndTick: i * 500, Agents: 1, Alive: 1, MaxX: 40})
		if hasBookmark(got, BookmarkStagnation) {
			fired++
		}
	}
	if fired != 1 {
		t.Errorf("stagnation fired %d times, want 1", fired)
	}
}

package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstSuccess         BookmarkType = "first_success"
	BookmarkProgressBreakthrough BookmarkType = "progress_breakthrough"
	BookmarkPopulationWipeout    BookmarkType = "population_wipeout"
	BookmarkStagnation           BookmarkType = "stagnation"
)

// stagnationWindows is the number of consecutive flat windows before a
// stagnation bookmark fires.
const stagnationWindows = 5

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int          `csv:"tick"`
	Episode     int          `csv:"episode"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"episode", b.Episode,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments of a run.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	seenSuccess bool
	lastAlive   int
	flatWindows int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < stagnationWindows {
		historySize = stagnationWindows
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
		lastAlive:   -1,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkFirstSuccess(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkWipeout(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkProgressBreakthrough(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkStagnation(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)
	bd.lastAlive = stats.Alive
	return bookmarks
}

// NewEpisode clears per-episode state. The success flag spans the whole run.
func (bd *BookmarkDetector) NewEpisode() {
	bd.historyIdx = 0
	bd.historyFull = false
	bd.lastAlive = -1
	bd.flatWindows = 0
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) previous() WindowStats {
	idx := (bd.historyIdx - 1 + bd.historySize) % bd.historySize
	return bd.history[idx]
}

func (bd *BookmarkDetector) checkFirstSuccess(stats WindowStats) *Bookmark {
	if bd.seenSuccess || stats.Successes == 0 {
		return nil
	}
	bd.seenSuccess = true
	return &Bookmark{
		Type:        BookmarkFirstSuccess,
		Tick:        stats.WindowEndTick,
		Episode:     stats.Episode,
		Description: fmt.Sprintf("%d agent(s) crossed the success threshold", stats.Successes),
	}
}

func (bd *BookmarkDetector) checkWipeout(stats WindowStats) *Bookmark {
	if stats.Agents == 0 || stats.Alive > 0 || bd.lastAlive == 0 {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkPopulationWipeout,
		Tick:        stats.WindowEndTick,
		Episode:     stats.Episode,
		Description: fmt.Sprintf("All %d agents are dead", stats.Agents),
	}
}

func (bd *BookmarkDetector) checkProgressBreakthrough(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total float64
	for _, h := range history {
		total += h.MaxX
	}
	avg := total / float64(len(history))
	if avg <= 0 {
		return nil
	}

	if stats.MaxX > avg*1.5 {
		return &Bookmark{
			Type:        BookmarkProgressBreakthrough,
			Tick:        stats.WindowEndTick,
			Episode:     stats.Episode,
			Description: fmt.Sprintf("Max x %.1f is %.1fx average (%.1f)", stats.MaxX, stats.MaxX/avg, avg),
		}
	}
	return nil
}

func (bd *BookmarkDetector) checkStagnation(stats WindowStats) *Bookmark {
	prev := bd.previous()
	if stats.Alive == 0 || math.Abs(stats.MaxX-prev.MaxX) > 0.01*math.Max(1, math.Abs(prev.MaxX)) {
		bd.flatWindows = 0
		return nil
	}
	bd.flatWindows++
	if bd.flatWindows != stagnationWindows {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkStagnation,
		Tick:        stats.WindowEndTick,
		Episode:     stats.Episode,
		Description: fmt.Sprintf("Max x stuck at %.1f for %d windows", stats.MaxX, stagnationWindows),
	}
}

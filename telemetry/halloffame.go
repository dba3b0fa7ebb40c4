package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
)

// HallEntry is a terrain latent vector and the score it earned.
type HallEntry struct {
	Latent     []float64          `json:"latent"`
	Fitness    float64            `json:"fitness"`
	Returns    map[string]float64 `json:"returns,omitempty"`
	Evaluation int                `json:"evaluation"`
}

// HallOfFame keeps the best-scoring terrains of a search, highest fitness first.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
}

// NewHallOfFame creates a hall holding at most maxSize entries.
func NewHallOfFame(maxSize int) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		entries: make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Consider inserts the entry if it beats the weakest one or the hall has room.
// Returns true if the entry was added.
func (hof *HallOfFame) Consider(entry HallEntry) bool {
	if len(hof.entries) >= hof.maxSize && entry.Fitness <= hof.entries[len(hof.entries)-1].Fitness {
		return false
	}
	entry.Latent = slices.Clone(entry.Latent)

	idx, _ := slices.BinarySearchFunc(hof.entries, entry.Fitness, func(e HallEntry, f float64) int {
		// Descending order; equal fitness keeps insertion order.
		switch {
		case e.Fitness >= f:
			return -1
		default:
			return 1
		}
	})
	hof.entries = slices.Insert(hof.entries, idx, entry)
	if len(hof.entries) > hof.maxSize {
		hof.entries = hof.entries[:hof.maxSize]
	}
	return true
}

// Best returns the highest scoring entry.
func (hof *HallOfFame) Best() (HallEntry, bool) {
	if len(hof.entries) == 0 {
		return HallEntry{}, false
	}
	return hof.entries[0], true
}

// Entries returns the entries ordered by fitness, best first.
func (hof *HallOfFame) Entries() []HallEntry {
	return slices.Clone(hof.entries)
}

// Len returns the number of entries.
func (hof *HallOfFame) Len() int {
	return len(hof.entries)
}

// MarshalJSON serializes the hall as an ordered entry list.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.entries, "", "  ")
}

// LoadHallOfFame reads a hall written by OutputManager.WriteHallOfFame.
func LoadHallOfFame(path string, maxSize int) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}
	var entries []HallEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing hall of fame: %w", err)
	}
	hof := NewHallOfFame(maxSize)
	for _, e := range entries {
		hof.Consider(e)
	}
	return hof, nil
}

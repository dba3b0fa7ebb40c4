package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/accelagent/parkour/systems"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// LevelSnapshot holds a generated level and the agents on it, enough to
// reload the terrain in drawn mode or hand it to an external renderer.
type LevelSnapshot struct {
	Version int    `json:"version"`
	RunID   string `json:"run_id"`
	Episode int    `json:"episode"`
	Tick    int    `json:"tick"`
	Seed    int64  `json:"seed"`

	Mode   string    `json:"mode"`
	Latent []float64 `json:"latent,omitempty"`

	Level  systems.LevelDescription `json:"level"`
	Agents []AgentState             `json:"agents"`

	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// AgentState is one agent's summary at snapshot time.
type AgentState struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	Morphology string  `json:"morphology"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Return     float64 `json:"return"`
	Dead       bool    `json:"dead"`
}

// SnapshotName returns the file name used for an episode snapshot.
func SnapshotName(episode int, b *Bookmark) string {
	if b != nil {
		return fmt.Sprintf("level_ep%04d_%s.json.zst", episode, strings.ToLower(string(b.Type)))
	}
	return fmt.Sprintf("level_ep%04d.json.zst", episode)
}

// WriteLevelSnapshot writes snap as zstd-compressed JSON.
func WriteLevelSnapshot(path string, snap *LevelSnapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)
	if err := json.NewEncoder(bw).Encode(snap); err != nil {
		enc.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	return f.Close()
}

// ReadLevelSnapshot loads a snapshot written by WriteLevelSnapshot.
func ReadLevelSnapshot(path string) (*LevelSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer dec.Close()

	var snap LevelSnapshot
	if err := json.NewDecoder(bufio.NewReader(dec)).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, SnapshotVersion)
	}
	return &snap, nil
}

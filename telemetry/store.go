package telemetry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for a run that the store does not hold.
var ErrNotFound = errors.New("not found")

// Run describes one runner invocation.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	Seed      int64     `json:"seed"`
	Mode      string    `json:"mode"`
	Episodes  int       `json:"episodes"`
}

// EpisodeRecord is one agent's outcome of one episode.
type EpisodeRecord struct {
	RunID      string  `csv:"run_id" json:"run_id"`
	Episode    int     `csv:"episode" json:"episode"`
	AgentID    uint64  `csv:"agent_id" json:"agent_id"`
	Name       string  `csv:"name" json:"name"`
	Age        string  `csv:"age" json:"age"`
	Morphology string  `csv:"morphology" json:"morphology"`
	Return     float64 `csv:"return" json:"return"`
	Ticks      int     `csv:"ticks" json:"ticks"`
	MaxX       float64 `csv:"max_x" json:"max_x"`
	FinalX     float64 `csv:"final_x" json:"final_x"`
	Reason     string  `csv:"reason" json:"reason"`
	Success    bool    `csv:"success" json:"success"`
}

// NewEpisodeRecord flattens a lifetime record.
func NewEpisodeRecord(runID string, episode int, s *LifetimeStats) EpisodeRecord {
	return EpisodeRecord{
		RunID:      runID,
		Episode:    episode,
		AgentID:    s.AgentID,
		Name:       s.Name,
		Age:        s.Age,
		Morphology: s.Morphology,
		Return:     s.Return,
		Ticks:      s.Ticks,
		MaxX:       s.MaxX,
		FinalX:     s.FinalX,
		Reason:     s.Reason(),
		Success:    s.SuccessTick >= 0,
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// EpisodeStore persists runs and their episode results.
type EpisodeStore interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	Runs(ctx context.Context) ([]Run, error)
	SaveEpisode(ctx context.Context, records []EpisodeRecord) error
	Episodes(ctx context.Context, runID string) ([]EpisodeRecord, error)
	Close() error
}

// NewStore opens the store backend named by kind.
func NewStore(kind, path string) (EpisodeStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     map[string]Run
	episodes map[string][]EpisodeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = make(map[string]Run)
	s.episodes = make(map[string][]EpisodeRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, nil
}

func (s *MemoryStore) Runs(_ context.Context) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Run, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Run) int { return a.StartedAt.Compare(b.StartedAt) })
	return out, nil
}

func (s *MemoryStore) SaveEpisode(_ context.Context, records []EpisodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.episodes[r.RunID] = append(s.episodes[r.RunID], r)
	}
	return nil
}

func (s *MemoryStore) Episodes(_ context.Context, runID string) ([]EpisodeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.runs[runID]; !ok {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	return slices.Clone(s.episodes[runID]), nil
}

func (s *MemoryStore) Close() error { return nil }

// Package telemetry provides episode tracking, window statistics, bookmarks,
// performance timing, the episode store and level snapshots.
package telemetry

// EventType identifies telemetry events.
type EventType uint8

const (
	EventSpawn EventType = iota
	EventDeath
	EventDone
	EventSuccess
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventSpawn:
		return "spawn"
	case EventDeath:
		return "death"
	case EventDone:
		return "done"
	case EventSuccess:
		return "success"
	case EventRemoved:
		return "removed"
	}
	return "unknown"
}

// Event represents a single agent lifecycle event.
type Event struct {
	Type    EventType
	Tick    int
	AgentID uint64
	Name    string

	// Value is the x position for deaths and the episodic return for
	// done and success events.
	Value float64
}

// NewSpawnEvent creates a spawn event.
func NewSpawnEvent(tick int, agentID uint64, name string) Event {
	return Event{Type: EventSpawn, Tick: tick, AgentID: agentID, Name: name}
}

// NewDeathEvent creates a death event at position x.
func NewDeathEvent(tick int, agentID uint64, name string, x float64) Event {
	return Event{Type: EventDeath, Tick: tick, AgentID: agentID, Name: name, Value: x}
}

// NewDoneEvent creates an episode termination event.
func NewDoneEvent(tick int, agentID uint64, name string, ret float64) Event {
	return Event{Type: EventDone, Tick: tick, AgentID: agentID, Name: name, Value: ret}
}

// NewSuccessEvent creates an event for an agent crossing the success threshold.
func NewSuccessEvent(tick int, agentID uint64, name string, ret float64) Event {
	return Event{Type: EventSuccess, Tick: tick, AgentID: agentID, Name: name, Value: ret}
}

// NewRemovedEvent creates an event for an agent deleted mid-run.
func NewRemovedEvent(tick int, agentID uint64, name string) Event {
	return Event{Type: EventRemoved, Tick: tick, AgentID: agentID, Name: name}
}

// Package observer streams the simulation to external renderers over a
// read-only websocket.
package observer

import (
	"github.com/accelagent/parkour/components"
	"github.com/accelagent/parkour/game"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

// Version is bumped on incompatible message changes.
const Version = "1"

// Message types.
const (
	TypeLevel = "LEVEL"
	TypeFrame = "FRAME"
)

// LevelMsg is sent at each reset and to every client on connect.
type LevelMsg struct {
	Type            string                   `json:"type"`
	ProtocolVersion string                   `json:"protocol_version"`
	Episode         int                      `json:"episode"`
	Level           systems.LevelDescription `json:"level"`

	Fields []components.FieldDescriptor `json:"fields"`
	Groups []string                     `json:"groups"`
}

func newLevel(episode int, level systems.LevelDescription) LevelMsg {
	return LevelMsg{
		Type:            TypeLevel,
		ProtocolVersion: Version,
		Episode:         episode,
		Level:           level,
		Fields:          components.AgentFieldDescriptors(),
		Groups:          components.AgentGroups(),
	}
}

// FrameMsg carries the transforms of one tick.
type FrameMsg struct {
	Type   string           `json:"type"`
	Tick   int              `json:"tick"`
	Agents []AgentFrame     `json:"agents"`
	Assets []game.AssetView `json:"assets"`
}

// AgentFrame is the drawable state of one agent.
type AgentFrame struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Morphology string          `json:"morphology"`
	Position   physics.Vec2    `json:"position"`
	Angle      float64         `json:"angle"`
	Bodies     []game.BodyPose `json:"bodies"`
	Lidars     []LidarFrame    `json:"lidars"`
	Dead       bool            `json:"dead"`
	Return     float64         `json:"return"`

	Fields map[string]float64 `json:"fields,omitempty"`
}

// LidarFrame is one ray from its origin to the hit point or full range.
type LidarFrame struct {
	P1       physics.Vec2 `json:"p1"`
	P2       physics.Vec2 `json:"p2"`
	Fraction float64      `json:"fraction"`
	Surface  float64      `json:"surface"`
}

func newFrame(tick int, agents []game.AgentView, assets []game.AssetView) FrameMsg {
	f := FrameMsg{
		Type:   TypeFrame,
		Tick:   tick,
		Agents: make([]AgentFrame, 0, len(agents)),
		Assets: assets,
	}
	for _, a := range agents {
		if !a.Visible {
			continue
		}
		af := AgentFrame{
			ID:         a.ID,
			Name:       a.Name,
			Morphology: a.Morphology.String(),
			Position:   a.Position,
			Angle:      a.Angle,
			Bodies:     a.Bodies,
			Lidars:     make([]LidarFrame, len(a.Lidars)),
			Dead:       a.Dead,
			Return:     a.Return,
			Fields:     a.Fields,
		}
		for i, l := range a.Lidars {
			af.Lidars[i] = LidarFrame{P1: l.P1, P2: l.P2, Fraction: l.Fraction, Surface: l.Surface()}
		}
		f.Agents = append(f.Agents, af)
	}
	return f
}

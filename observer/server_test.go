package observer

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/accelagent/parkour/game"
	"github.com/accelagent/parkour/morphology"
	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
}

func TestLevelSentOnConnect(t *testing.T) {
	s, url := newTestServer(t)
	s.PublishLevel(3, systems.LevelDescription{
		Ground: []physics.Vec2{physics.V(0, 1), physics.V(1, 1)},
		WaterY: -5,
	})

	conn := dial(t, url)
	var msg LevelMsg
	readJSON(t, conn, &msg)
	if msg.Type != TypeLevel || msg.Episode != 3 || msg.ProtocolVersion != Version {
		t.Errorf("level message = %+v", msg)
	}
	if len(msg.Level.Ground) != 2 || msg.Level.WaterY != -5 {
		t.Errorf("level = %+v", msg.Level)
	}
	if len(msg.Fields) == 0 || len(msg.Groups) == 0 {
		t.Errorf("level message carries no field metadata: %+v", msg)
	}
}

func TestFrameStream(t *testing.T) {
	s, url := newTestServer(t)
	conn := dial(t, url)
	if s.Clients() != 1 {
		t.Fatalf("Clients() = %d, want 1", s.Clients())
	}

	agents := []game.AgentView{
		{
			ID:         7,
			Name:       "accel",
			Morphology: morphology.Bipedal,
			Visible:    true,
			Position:   physics.V(4, 2),
			Fields:     map[string]float64{"return": 1.5},
			Lidars: []systems.LidarReading{
				{P1: physics.V(4, 2), P2: physics.V(4, 0), Fraction: 0.4, Water: true},
			},
		},
		{ID: 8, Name: "hidden", Visible: false},
	}
	s.PublishFrame(12, agents, []game.AssetView{{ID: 1, Radius: 0.5}})

	var msg FrameMsg
	readJSON(t, conn, &msg)
	if msg.Type != TypeFrame || msg.Tick != 12 {
		t.Fatalf("frame = %+v", msg)
	}
	if len(msg.Agents) != 1 {
		t.Fatalf("got %d agents, want only the visible one", len(msg.Agents))
	}
	a := msg.Agents[0]
	if a.ID != 7 || a.Morphology != "bipedal" || a.Position != physics.V(4, 2) {
		t.Errorf("agent = %+v", a)
	}
	if a.Fields["return"] != 1.5 {
		t.Errorf("fields = %v", a.Fields)
	}
	if len(a.Lidars) != 1 || a.Lidars[0].Fraction != 0.4 || a.Lidars[0].Surface != -1 {
		t.Errorf("lidars = %+v", a.Lidars)
	}
	if len(msg.Assets) != 1 || msg.Assets[0].Radius != 0.5 {
		t.Errorf("assets = %+v", msg.Assets)
	}
}

func TestSlowClientDropsFrames(t *testing.T) {
	s, url := newTestServer(t)
	dial(t, url)

	// Nothing reads, so the writer blocks once the socket buffers fill and
	// the queue overflows.
	agents := make([]game.AgentView, 50)
	for i := range agents {
		agents[i] = game.AgentView{ID: uint64(i), Visible: true, Lidars: make([]systems.LidarReading, 10)}
	}
	for tick := 0; tick < 2000; tick++ {
		s.PublishFrame(tick, agents, nil)
	}
	if s.Dropped() == 0 {
		t.Error("no frame dropped for a client that never reads")
	}
}

func TestLevelDeliveredToFullQueue(t *testing.T) {
	s := NewServer(nil)
	id, ch := s.join()
	defer s.leave(id)

	for tick := 0; tick < 2*clientBuffer; tick++ {
		s.PublishFrame(tick, nil, nil)
	}
	if len(ch) != clientBuffer {
		t.Fatalf("queue holds %d messages, want it full at %d", len(ch), clientBuffer)
	}
	s.PublishLevel(7, systems.LevelDescription{WaterY: -5})

	var last []byte
	for len(ch) > 0 {
		last = <-ch
	}
	var msg LevelMsg
	if err := json.Unmarshal(last, &msg); err != nil {
		t.Fatalf("decode %s: %v", last, err)
	}
	if msg.Type != TypeLevel || msg.Episode != 7 {
		t.Errorf("last queued message = %+v, want the level", msg)
	}
	if s.Dropped() != clientBuffer+1 {
		t.Errorf("dropped %d, want %d", s.Dropped(), clientBuffer+1)
	}
}

func TestPublishWithoutClients(t *testing.T) {
	s := NewServer(nil)
	s.PublishFrame(1, nil, nil)
	if s.Dropped() != 0 || s.Clients() != 0 {
		t.Errorf("dropped %d, clients %d", s.Dropped(), s.Clients())
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:5000", true},
		{"[::1]:80", true},
		{"10.0.0.2:80", false},
		{"garbage", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			if got := isLoopbackRemote(tt.addr); got != tt.want {
				t.Errorf("isLoopbackRemote(%q) = %v, want %v", tt.addr, got, tt.want)
			}
		})
	}
}

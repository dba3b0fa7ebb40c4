package game

import (
	"fmt"

	"github.com/accelagent/parkour/physics"
	"github.com/accelagent/parkour/systems"
)

const assetDensity = 5.0

type asset struct {
	id     uint64
	body   physics.Body
	radius float64
}

// AssetView is a read-only copy of a placed asset.
type AssetView struct {
	ID       uint64       `json:"id"`
	Position physics.Vec2 `json:"position"`
	Angle    float64      `json:"angle"`
	Radius   float64      `json:"radius"`
}

// CreateCircleAsset drops a dynamic ball between ground and ceiling at pos.x.
// Assets live until the next reset.
func (e *Engine) CreateCircleAsset(pos physics.Vec2, radius float64) (uint64, error) {
	if !e.ready {
		return 0, ErrNotReset
	}
	if radius <= 0 {
		return 0, fmt.Errorf("asset radius must be positive, got %v", radius)
	}
	y := e.assetHeight(pos, radius)
	b := e.world.CreateBody(
		physics.BodyDef{Type: physics.Dynamic, Position: physics.V(pos.X, y)},
		physics.FixtureDef{
			Shape:    physics.Circle(radius),
			Density:  assetDensity,
			Friction: e.cfg.Physics.Friction,
			Filter:   physics.TerrainFilter,
		},
	)
	b.SetUserData(&physics.UserData{Name: "circle", Kind: physics.KindAsset})

	e.nextAssetID++
	a := &asset{id: e.nextAssetID, body: b, radius: radius}
	e.assets[a.id] = a
	e.assetOrder = append(e.assetOrder, a.id)
	return a.id, nil
}

// SetAssetPosition teleports an asset and gives it a slight downward push so
// it settles.
func (e *Engine) SetAssetPosition(id uint64, pos physics.Vec2) error {
	a, ok := e.assets[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAsset, id)
	}
	y := e.assetHeight(pos, a.radius)
	a.body.SetTransform(physics.V(pos.X, y), a.body.Angle())
	a.body.SetLinearVelocity(physics.V(0, -0.1))
	return nil
}

// DeleteAsset destroys an asset.
func (e *Engine) DeleteAsset(id uint64) error {
	a, ok := e.assets[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownAsset, id)
	}
	e.world.DestroyBody(a.body)
	delete(e.assets, id)
	for i, aid := range e.assetOrder {
		if aid == id {
			e.assetOrder = append(e.assetOrder[:i], e.assetOrder[i+1:]...)
			break
		}
	}
	return nil
}

// Assets returns views of every asset in creation order.
func (e *Engine) Assets() []AssetView {
	views := make([]AssetView, 0, len(e.assetOrder))
	for _, id := range e.assetOrder {
		a := e.assets[id]
		views = append(views, AssetView{
			ID:       id,
			Position: a.body.Position(),
			Angle:    a.body.Angle(),
			Radius:   a.radius,
		})
	}
	return views
}

func (e *Engine) assetHeight(pos physics.Vec2, radius float64) float64 {
	return systems.SpawnHeight(pos.X, pos.Y, radius, e.terrain.Ground, e.terrain.Ceiling, radius)
}

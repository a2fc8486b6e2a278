package game

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"remote-pong/internal/physics"
	"remote-pong/logging"
)

// Variant selects the rule set and table layout of a session.
type Variant uint8

const (
	VariantPlay Variant = iota
	VariantPractice
)

func (v Variant) String() string {
	if v == VariantPractice {
		return "practice"
	}
	return "play"
}

// Role tags a body with its meaning in the game.
type Role uint8

const (
	RoleNone Role = iota
	RoleBall
	RolePaddle
	RoleTable
	RoleNet
)

func (r Role) String() string {
	switch r {
	case RoleBall:
		return "ball"
	case RolePaddle:
		return "paddle"
	case RoleTable:
		return "table"
	case RoleNet:
		return "net"
	default:
		return "none"
	}
}

var (
	// RestPoint is where the base rules snap the ball after a reset.
	RestPoint = mgl32.Vec3{0.9, 1.0, 0}

	paddleSpawn = mgl32.Vec3{1, 1, 0}
	ballSpawn   = mgl32.Vec3{0.95, 1.05, 0}
)

const (
	ballRadius = float32(0.02)
)

// Scene records the bodies spawned for a session.
type Scene struct {
	Variant Variant
	Table   physics.EntityID
	Net     physics.EntityID
	Paddles []physics.EntityID
	Ball    physics.EntityID
	roles   map[physics.EntityID]Role
}

// Spawned reports whether the scene currently owns any bodies.
func (s *Scene) Spawned() bool {
	return s != nil && len(s.roles) > 0
}

// Role looks up the role of a body. Unknown bodies are RoleNone.
func (s *Scene) Role(id physics.EntityID) Role {
	if s == nil {
		return RoleNone
	}
	return s.roles[id]
}

// Ref builds the log reference for a body.
func (s *Scene) Ref(id physics.EntityID) logging.EntityRef {
	kind := logging.EntityKindUnknown
	switch s.Role(id) {
	case RoleBall:
		kind = logging.EntityKindBall
	case RolePaddle:
		kind = logging.EntityKindPaddle
	case RoleTable, RoleNet:
		kind = logging.EntityKindTable
	}
	return logging.EntityRef{ID: fmt.Sprintf("%s-%d", s.Role(id), id), Kind: kind}
}

type tableLayout struct {
	tableHalf   mgl32.Vec3
	netCenter   mgl32.Vec3
	netHalf     mgl32.Vec3
	netBounce   float32
	ballBounce  float32
	tableBounce float32
}

func layoutFor(variant Variant) tableLayout {
	if variant == VariantPractice {
		return tableLayout{
			tableHalf:   mgl32.Vec3{1.3, 0.74, 0.8},
			netCenter:   mgl32.Vec3{0, 0.74, 0},
			netHalf:     mgl32.Vec3{0.02, 0.1, 0.8},
			netBounce:   0.9,
			ballBounce:  1.0,
			tableBounce: 0.9,
		}
	}
	return tableLayout{
		tableHalf:   mgl32.Vec3{1.2, 0.75, 1.0},
		netCenter:   mgl32.Vec3{0, 0.75, 0},
		netHalf:     mgl32.Vec3{0.1, 0.1, 1.0},
		ballBounce:  0.4,
		tableBounce: 0.9,
	}
}

// SpawnScene builds the table, net, paddle and ball for variant.
func SpawnScene(world *physics.World, variant Variant) Scene {
	layout := layoutFor(variant)
	scene := Scene{Variant: variant, roles: make(map[physics.EntityID]Role, 4)}

	table := physics.Cuboid(layout.tableHalf[0], layout.tableHalf[1], layout.tableHalf[2])
	table.Restitution = layout.tableBounce
	table.RestitutionCombine = physics.CombineMax
	scene.Table = world.Spawn(physics.BodyDesc{
		Name:      "table",
		Kind:      physics.BodyFixed,
		Transform: physics.TransformFromTranslation(0, 0, 0),
		Collider:  table,
	})
	scene.roles[scene.Table] = RoleTable

	paddle := physics.Cuboid(0.07, 0.01, 0.12)
	paddle.RestitutionCombine = physics.CombineMax
	paddleID := world.Spawn(physics.BodyDesc{
		Name: "paddle",
		Kind: physics.BodyKinematicPositionBased,
		Transform: physics.Transform{
			Translation: paddleSpawn,
			Rotation:    mgl32.QuatRotate(-math32.Pi/2, mgl32.Vec3{0, 1, 0}),
		},
		Collider: paddle,
	})
	scene.Paddles = append(scene.Paddles, paddleID)
	scene.roles[paddleID] = RolePaddle

	ball := physics.Ball(ballRadius)
	ball.Restitution = layout.ballBounce
	ball.Friction = 0.6
	scene.Ball = world.Spawn(physics.BodyDesc{
		Name:           "ball",
		Kind:           physics.BodyDynamic,
		Transform:      physics.TransformFromTranslation(ballSpawn[0], ballSpawn[1], ballSpawn[2]),
		GravityScale:   0,
		LinearDamping:  0.3,
		AngularDamping: 0.1,
		Collider:       ball,
	})
	scene.roles[scene.Ball] = RoleBall

	net := physics.Cuboid(layout.netHalf[0], layout.netHalf[1], layout.netHalf[2])
	net.Restitution = layout.netBounce
	scene.Net = world.Spawn(physics.BodyDesc{
		Name:      "net",
		Kind:      physics.BodyFixed,
		Transform: physics.TransformFromTranslation(layout.netCenter[0], layout.netCenter[1], layout.netCenter[2]),
		Collider:  net,
	})
	scene.roles[scene.Net] = RoleNet

	return scene
}

// Despawn removes every body the scene owns and empties it.
func (s *Scene) Despawn(world *physics.World) {
	if s == nil {
		return
	}
	for _, id := range s.bodies() {
		world.Despawn(id)
	}
	*s = Scene{Variant: s.Variant}
}

// bodies lists the spawned bodies, ball first and table last.
func (s *Scene) bodies() []physics.EntityID {
	ids := append([]physics.EntityID{s.Ball}, s.Paddles...)
	ids = append(ids, s.Net, s.Table)
	out := ids[:0]
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	return out
}

package game

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/zeebo/xxh3"

	"remote-pong/internal/physics"
)

// BodyView is the published pose and motion of one body.
type BodyView struct {
	Translation  mgl32.Vec3 `json:"translation"`
	Rotation     [4]float32 `json:"rotation"`
	Linear       mgl32.Vec3 `json:"linear"`
	GravityScale float32    `json:"gravityScale"`
}

// Snapshot is the immutable state published after every tick. Readers on
// other goroutines get it through Engine.Snapshot.
type Snapshot struct {
	Tick        uint64      `json:"tick"`
	State       string      `json:"state"`
	Mode        Mode        `json:"mode"`
	Session     SessionView `json:"session"`
	Readout     string      `json:"readout"`
	Ball        *BodyView   `json:"ball,omitempty"`
	Paddle      *BodyView   `json:"paddle,omitempty"`
	QueueDepth  int         `json:"queueDepth"`
	Bodies      int         `json:"bodies"`
	Fingerprint string      `json:"fingerprint"`
}

func viewBody(world physics.Backend, id physics.EntityID) *BodyView {
	pose, ok := world.Transform(id)
	if !ok {
		return nil
	}
	vel, _ := world.Velocity(id)
	scale, _ := world.GravityScale(id)
	return &BodyView{
		Translation:  pose.Translation,
		Rotation:     [4]float32{pose.Rotation.V[0], pose.Rotation.V[1], pose.Rotation.V[2], pose.Rotation.W},
		Linear:       vel.Linear,
		GravityScale: scale,
	}
}

// fingerprint hashes the simulation-relevant part of a snapshot so two runs
// can be compared tick by tick.
func fingerprint(s *Snapshot) string {
	h := xxh3.New()
	var buf [8]byte
	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	writeF32 := func(values ...float32) {
		for _, v := range values {
			binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
			_, _ = h.Write(buf[:4])
		}
	}
	writeBody := func(b *BodyView) {
		if b == nil {
			writeU64(0)
			return
		}
		writeU64(1)
		writeF32(b.Translation[:]...)
		writeF32(b.Rotation[:]...)
		writeF32(b.Linear[:]...)
		writeF32(b.GravityScale)
	}

	_, _ = h.WriteString(s.State)
	writeU64(uint64(s.Session.Bounces))
	if s.Session.Launched {
		writeU64(1)
	} else {
		writeU64(0)
	}
	if s.Session.PendingReset {
		writeF32(s.Session.PreviewTarget[:]...)
	}
	writeBody(s.Ball)
	writeBody(s.Paddle)
	return strconv.FormatUint(h.Sum64(), 16)
}

package game

import (
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"remote-pong/internal/physics"
	"remote-pong/internal/sim"
)

var (
	axisY = mgl32.Vec3{0, 1, 0}
	axisZ = mgl32.Vec3{0, 0, 1}

	// launchedPaddleOffset places the paddle near the rest point once the
	// ball is in flight.
	launchedPaddleOffset = mgl32.Vec3{0.9, 1.0, 0}
)

// PaddlePose maps a controller rotation to a paddle pose. The x component
// acts as the swing angle about Y and w as the tilt about Z. ball is the
// current ball translation.
func PaddlePose(rotation mgl32.Quat, ball mgl32.Vec3, launched bool) physics.Transform {
	angle := rotation.V[0]
	orientation := mgl32.QuatRotate(-math32.Pi/2+angle, axisY).Mul(mgl32.QuatRotate(rotation.W, axisZ))

	translation := mgl32.Vec3{-math32.Cos(math32.Abs(angle))/4 + 0.1, -0.03, 0}
	if angle < 0 {
		translation[2] += 0.05
	} else {
		translation[2] -= 0.05
	}

	if launched {
		translation = translation.Add(launchedPaddleOffset)
	} else {
		translation[2] += ball[2]
		if ball[0] > 0 {
			translation[0] += ball[0]
			translation[1] += ball[1]
		}
	}
	return physics.Transform{Translation: translation, Rotation: orientation}
}

// FormatReadout renders the swing angle for the speed readout in its
// shortest round-trip form. Whole numbers keep a trailing ".0" and very large
// or small magnitudes switch to exponent notation.
func FormatReadout(angle float32) string {
	switch {
	case math32.IsNaN(angle):
		return "NaN"
	case math32.IsInf(angle, 1):
		return "inf"
	case math32.IsInf(angle, -1):
		return "-inf"
	}
	if abs := math32.Abs(angle); abs >= 1e16 || (abs != 0 && abs < 1e-4) {
		mantissa, exp, _ := strings.Cut(strconv.FormatFloat(float64(angle), 'e', -1, 32), "e")
		n, _ := strconv.Atoi(exp)
		return mantissa + "e" + strconv.Itoa(n)
	}
	text := strconv.FormatFloat(float64(angle), 'f', -1, 32)
	if !strings.Contains(text, ".") {
		text += ".0"
	}
	return text
}

// applyCommands drains the command queue and poses every paddle. Without a
// ball the queue is left untouched.
func applyCommands(f *Frame) {
	ball, ok := f.ball()
	if !ok {
		return
	}
	commands := f.Commands.Drain()
	if len(commands) == 0 {
		return
	}
	paddles := f.paddles()
	for _, cmd := range commands {
		switch cmd.Type {
		case sim.CommandRotation:
			ballPose, _ := f.World.Transform(ball)
			pose := PaddlePose(cmd.Rotation, ballPose.Translation, f.Session.Launched)
			for _, paddle := range paddles {
				f.World.SetTransform(paddle, pose)
			}
			f.Session.Readout = FormatReadout(cmd.Rotation.V[0])
		case sim.CommandPosition:
			// Position deltas are accepted on the wire but do not move the paddle.
		}
	}
}

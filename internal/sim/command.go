package sim

import "github.com/go-gl/mathgl/mgl32"

// CommandType enumerates the supported paddle commands.
type CommandType string

const (
	CommandRotation CommandType = "rotation"
	CommandPosition CommandType = "position"
)

// Command is a paddle pose update received from a controller. Only the field
// matching Type is meaningful. Commands are values and are never mutated after
// construction.
type Command struct {
	Type     CommandType `json:"type"`
	Rotation mgl32.Quat  `json:"rotation"`
	Position mgl32.Vec3  `json:"position"`
}

// RotationCommand builds a rotation command from quaternion components in x, y, z, w order.
func RotationCommand(x, y, z, w float32) Command {
	return Command{
		Type:     CommandRotation,
		Rotation: mgl32.Quat{W: w, V: mgl32.Vec3{x, y, z}},
	}
}

// PositionCommand builds a position delta command.
func PositionCommand(x, y, z float32) Command {
	return Command{
		Type:     CommandPosition,
		Position: mgl32.Vec3{x, y, z},
	}
}

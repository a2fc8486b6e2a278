// Package proto decodes the controller text protocol.
//
// A frame is `kind:v1,v2,...` where kind is "rotation" (x,y,z,w) or
// "position" (x,y,z) and each value is a decimal float literal.
package proto

import (
	"errors"
	"strconv"
	"strings"

	"remote-pong/internal/sim"
)

const (
	KindRotation = "rotation"
	KindPosition = "position"
)

// ParseFrame decodes a single text frame. Frames with an unknown kind, the
// wrong number of fields or a field that is not a float produce no command.
// Literals beyond the float32 range decode to signed infinity.
func ParseFrame(text string) (sim.Command, bool) {
	kind, rest, found := strings.Cut(text, ":")
	if !found {
		return sim.Command{}, false
	}
	switch kind {
	case KindRotation:
		values, ok := parseFields(rest, 4)
		if !ok {
			return sim.Command{}, false
		}
		return sim.RotationCommand(values[0], values[1], values[2], values[3]), true
	case KindPosition:
		values, ok := parseFields(rest, 3)
		if !ok {
			return sim.Command{}, false
		}
		return sim.PositionCommand(values[0], values[1], values[2]), true
	default:
		return sim.Command{}, false
	}
}

func parseFields(raw string, arity int) ([]float32, bool) {
	fields := strings.Split(raw, ",")
	if len(fields) != arity {
		return nil, false
	}
	values := make([]float32, arity)
	for i, field := range fields {
		value, err := strconv.ParseFloat(field, 32)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return nil, false
		}
		values[i] = float32(value)
	}
	return values, true
}

// FormatRotation encodes a rotation frame. Controllers and tests use it to
// produce frames the server accepts.
func FormatRotation(x, y, z, w float32) string {
	return KindRotation + ":" + joinFloats(x, y, z, w)
}

// FormatPosition encodes a position frame.
func FormatPosition(x, y, z float32) string {
	return KindPosition + ":" + joinFloats(x, y, z)
}

func joinFloats(values ...float32) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, ",")
}

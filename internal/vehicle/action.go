package vehicle

import "fmt"

// Action is a discrete control command. Values match controller output indices.
type Action int

const (
	TurnLeft Action = iota
	TurnRight
	Accelerate
	Brake
)

// ActionCount is the length of a controller's output vector.
const ActionCount = 4

func (a Action) String() string {
	switch a {
	case TurnLeft:
		return "turn_left"
	case TurnRight:
		return "turn_right"
	case Accelerate:
		return "accelerate"
	case Brake:
		return "brake"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	return a >= TurnLeft && a <= Brake
}

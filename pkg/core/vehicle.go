// pkg/core/vehicle.go
package core

// Position2D is a point in track-local pixel coordinates.
type Position2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tile is a cell coordinate in a road grid.
type Tile struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Pose is a spawn position and heading (degrees, clockwise positive on screen).
type Pose struct {
	Position Position2D
	Heading  float64
	Size     float64
}

// VehicleState represents a vehicle at a point in time.
type VehicleState struct {
	Center           Position2D
	Heading          float64
	Speed            float64
	Alive            bool
	Finished         bool
	DistanceTraveled float64
	SpeedPenalty     float64
	Sensors          [5]int
}

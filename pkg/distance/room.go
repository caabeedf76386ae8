package distance

// Room size classes
const (
	RoomSmall   = "small"
	RoomMedium  = "medium"
	RoomLarge   = "large"
	RoomUnknown = "unknown"
)

// roomSlack lets objects sit a little beyond the average wall distance
const roomSlack = 1.2

// Walls measured during calibration
var Walls = []string{"front", "right", "back", "left"}

// RoomCalibration holds wall distances measured by the user
type RoomCalibration struct {
	Walls       map[string]float64 `json:"walls"` // Meters, missing = skipped
	AvgDistance float64            `json:"avgDistance"`
	Size        string             `json:"roomSize"`
}

// NewRoomCalibration builds a calibration from measured wall distances.
// Non-positive entries are treated as skipped.
func NewRoomCalibration(walls map[string]float64) *RoomCalibration {
	rc := &RoomCalibration{Walls: make(map[string]float64, len(walls))}

	var sum float64
	var n int
	for name, d := range walls {
		if !positive(d) {
			continue
		}
		rc.Walls[name] = d
		sum += d
		n++
	}
	if n > 0 {
		rc.AvgDistance = sum / float64(n)
	}

	switch {
	case n == 0:
		rc.Size = RoomUnknown
	case rc.AvgDistance < 2:
		rc.Size = RoomSmall
	case rc.AvgDistance < 4:
		rc.Size = RoomMedium
	default:
		rc.Size = RoomLarge
	}
	return rc
}

// Calibrated reports whether at least one wall was measured
func (rc *RoomCalibration) Calibrated() bool {
	return rc != nil && rc.AvgDistance > 0
}

// MaxDistance is the farthest plausible object distance in the room (0 = unbounded)
func (rc *RoomCalibration) MaxDistance() float64 {
	if !rc.Calibrated() {
		return 0
	}
	return rc.AvgDistance * roomSlack
}

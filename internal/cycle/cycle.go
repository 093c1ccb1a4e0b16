package cycle

import (
	"errors"
	"fmt"
	"math"
)

const (
	CycleHours     = 500
	CyclesPerRound = 12
	RoundHours     = CycleHours * CyclesPerRound
)

// ErrInvalidInput is returned for negative hours or an out-of-range cycle index.
var ErrInvalidInput = errors.New("invalid input")

// Info describes the 500-hour window an hour reading falls into.
// Start is inclusive and End is exclusive.
type Info struct {
	Index     int   `json:"cycle_index"`
	Start     int64 `json:"cycle_start"`
	End       int64 `json:"cycle_end"`
	RoundBase int64 `json:"round_base"`
}

// Contains reports whether h belongs to the window.
func (i Info) Contains(h int64) bool {
	return h >= i.Start && h < i.End
}

// Of derives the cycle window for a cumulative hour reading.
func Of(totalHours int64) (Info, error) {
	if totalHours < 0 {
		return Info{}, fmt.Errorf("%w: negative hours %d", ErrInvalidInput, totalHours)
	}
	offset := totalHours % RoundHours
	index := int(offset/CycleHours) + 1
	roundBase := totalHours - offset
	start := roundBase + int64(index-1)*CycleHours
	return Info{
		Index:     index,
		Start:     start,
		End:       start + CycleHours,
		RoundBase: roundBase,
	}, nil
}

// FromRunningHours floors a fractional running-hours total before deriving its cycle.
func FromRunningHours(total float64) (Info, error) {
	if math.IsNaN(total) || math.IsInf(total, 0) {
		return Info{}, fmt.Errorf("%w: hours %v", ErrInvalidInput, total)
	}
	return Of(int64(math.Floor(total)))
}

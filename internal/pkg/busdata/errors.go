package busdata

import "fmt"

// DataFormatError reports malformed or missing input data. It halts the run
// before any model is built.
type DataFormatError struct {
	Msg string
}

func (e *DataFormatError) Error() string {
	return "busdata: " + e.Msg
}

// BoundsError reports an inconsistent bound pair (max < min) on a loaded bus.
// This is never solved around; it indicates swapped or mislabeled source
// columns.
type BoundsError struct {
	Bus   int
	Field string
	Min   float64
	Max   float64
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("busdata: bus %d %s bounds inconsistent: min %g > max %g",
		e.Bus, e.Field, e.Min, e.Max)
}

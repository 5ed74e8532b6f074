package domain

const (
	StatusPlaced    = "placed"
	StatusAccepted  = "accepted"
	StatusProcessed = "processed"
	StatusFulfilled = "fulfilled"
	StatusReplaced  = "replaced"
)

// OrderStatus is a row of the status catalog. Replaced sits outside the
// linear step sequence.
type OrderStatus struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Step int    `json:"step"`
}

// StatusSteps maps each status to its workflow step.
var StatusSteps = map[string]int{
	StatusPlaced:    0,
	StatusAccepted:  1,
	StatusProcessed: 2,
	StatusFulfilled: 3,
	StatusReplaced:  -1,
}

// ActiveStatus reports whether an order in status may still be replaced.
func ActiveStatus(status string) bool {
	switch status {
	case StatusPlaced, StatusAccepted, StatusProcessed:
		return true
	}
	return false
}

// CanTransition reports whether staff may move an order from one status to
// another. Orders advance one step at a time; replaced is reachable only
// through replacement.
func CanTransition(from, to string) bool {
	fromStep, ok := StatusSteps[from]
	if !ok || from == StatusReplaced {
		return false
	}
	toStep, ok := StatusSteps[to]
	if !ok || to == StatusReplaced {
		return false
	}
	return toStep == fromStep+1
}

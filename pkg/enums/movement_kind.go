package enums

import "fmt"

// MovementKind labels a journal entry written for an inventory quantity change.
type MovementKind string

const (
	MovementUpsert  MovementKind = "upsert"
	MovementMoveIn  MovementKind = "move_in"
	MovementMoveOut MovementKind = "move_out"
	MovementConsume MovementKind = "consume"
)

var validMovementKinds = []MovementKind{
	MovementUpsert,
	MovementMoveIn,
	MovementMoveOut,
	MovementConsume,
}

func (m MovementKind) IsValid() bool {
	for _, candidate := range validMovementKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseMovementKind(value string) (MovementKind, error) {
	for _, candidate := range validMovementKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement kind %q", value)
}

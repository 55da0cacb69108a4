package game

// Outcome is the result of a selection.
type Outcome struct {
	Correct bool `json:"correct"`
	// Position is the selected index into the container order.
	Position int `json:"position"`
	// ContainerID is the container that was at Position.
	ContainerID int `json:"containerId"`
	// Level is the level the round was played at. A loss resets the
	// engine's level before the snapshot is published.
	Level int `json:"level"`
}

// Evaluate compares the container at position with the token's container.
// The caller guarantees position is a valid index into order.
func Evaluate(order []int, tokenContainerID, position int) Outcome {
	id := order[position]
	return Outcome{
		Correct:     id == tokenContainerID,
		Position:    position,
		ContainerID: id,
	}
}

package domain

// Delivery is one at-least-once hand-off of a TollEvent from the queue.
type Delivery struct {
	MessageID string
	Attempt   int64
	Event     TollEvent
}

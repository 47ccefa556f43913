// Package signalbus carries spread candidates from the scanner to the
// depth checker over a bounded FIFO queue.
package signalbus

// Policy selects the behaviour when the queue is full.
type Policy string

const (
	// PolicyBlock makes Enqueue wait for free capacity.
	PolicyBlock Policy = "block"
	// PolicyDropOldest evicts the oldest queued candidate to make room.
	PolicyDropOldest Policy = "drop_oldest"
)

// Valid reports whether the policy is a known value.
func (p Policy) Valid() bool {
	switch p {
	case PolicyBlock, PolicyDropOldest:
		return true
	default:
		return false
	}
}

// Config sizes the queue buffer and selects the overflow policy.
type Config struct {
	Capacity int
	Policy   Policy
}

func (c Config) normalize() Config {
	if c.Capacity <= 0 {
		c.Capacity = 256
	}
	if !c.Policy.Valid() {
		c.Policy = PolicyBlock
	}
	return c
}

package pool

// PoolExhaustedError is returned by Acquire when no channel becomes
// available before the caller's acquire timeout.
type PoolExhaustedError struct {
	Waited string
}

func (e *PoolExhaustedError) Error() string {
	return "quarry: pool exhausted: waited " + e.Waited
}

// PoolClosedError is returned to any acquirer, waiting or not, after the
// pool has been closed.
type PoolClosedError struct{}

func (e *PoolClosedError) Error() string { return "quarry: pool closed" }

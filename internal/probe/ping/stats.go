package ping

import "time"

// Stats summarizes the echo samples sent to one address. Times are in
// milliseconds; a nil PingTimes entry is a request that timed out.
type Stats struct {
	ExecutionTime float64    `json:"ExecutionTime"`
	PingTimes     []*float64 `json:"PingTimes"`
	Min           float64    `json:"Min"`
	Max           float64    `json:"Max"`
	Average       float64    `json:"Average"`
}

// summarize computes min, max, and average over the successful samples
// only. ok is false when no sample succeeded.
func summarize(samples []*float64, elapsed time.Duration) (Stats, bool) {
	st := Stats{
		ExecutionTime: float64(elapsed) / float64(time.Millisecond),
		PingTimes:     samples,
	}

	var sum float64
	received := 0
	for _, s := range samples {
		if s == nil {
			continue
		}
		if received == 0 || *s < st.Min {
			st.Min = *s
		}
		if received == 0 || *s > st.Max {
			st.Max = *s
		}
		sum += *s
		received++
	}
	if received == 0 {
		return st, false
	}
	st.Average = sum / float64(received)
	return st, true
}

package scan

// State is the lifecycle state of a Scanner.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	}
	return "idle"
}

// Progress counts finished candidates, whatever their outcome.
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Fraction returns Processed/Total in [0, 1]. An empty scan is complete.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return min(1, float64(p.Processed)/float64(p.Total))
}

// Summary is reported after every run. Partial is set when the run was
// aborted and the counts only cover the candidates processed so far.
type Summary struct {
	Total   int  `json:"total"`
	Scanned int  `json:"scanned"`
	Matched int  `json:"matched"`
	Skipped int  `json:"skipped"` // undecodable or unencodable candidates, included in Scanned
	Partial bool `json:"partial"`
}

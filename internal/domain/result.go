package domain

import "time"

const (
	StatusSuccess        = "Success"
	StatusPartialFailure = "PartialFailure"
)

// ObjectResult is the outcome of ingesting a single object.
type ObjectResult struct {
	Ref     ObjectRef `json:"object"`
	RunID   string    `json:"run_id"`
	Rows    int       `json:"rows"`
	Indexed int       `json:"indexed"`
	Failed  int       `json:"failed"`
	Error   string    `json:"error,omitempty"`
}

// Summary is returned to the notification source once every object was handled.
type Summary struct {
	Status    string         `json:"status"`
	Objects   int            `json:"objects"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []ObjectResult `json:"results,omitempty"`
}

// Add folds an object result into the summary and recomputes the status.
func (s *Summary) Add(r ObjectResult) {
	s.Objects++
	s.Succeeded += r.Indexed
	s.Failed += r.Failed
	s.Results = append(s.Results, r)

	s.Status = StatusSuccess
	for _, res := range s.Results {
		if res.Failed > 0 || res.Error != "" {
			s.Status = StatusPartialFailure
			break
		}
	}
}

// IngestRun is the ledger entry written for every object run.
type IngestRun struct {
	RunID      string
	Bucket     string
	Key        string
	ETag       string
	Rows       int
	Indexed    int
	Failed     int
	Bytes      int64
	StartedAt  time.Time
	FinishedAt time.Time
	Error      string
}

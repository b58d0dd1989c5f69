package data

import "time"

// Report describes the outcome of processing one input file
type Report struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	Success  bool   `json:"success"`
	Lines    int    `json:"lines"`
	Rejected int    `json:"rejected"`
	Entries  int    `json:"entries"`
	Added    int    `json:"added"`
	Removed  int    `json:"removed"`
	Filtered int    `json:"filtered"`
	Bytes    int64  `json:"bytes"`
	Error    string `json:"error,omitempty"`
}

// RunReport describes one complete run over all input files
type RunReport struct {
	Reason    string    `json:"reason"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Skipped   bool      `json:"skipped"`
	Files     []Report  `json:"files"`
	Additions int       `json:"additions"`
	Deletions int       `json:"deletions"`
	Published bool      `json:"published"`
	Error     string    `json:"error,omitempty"`
}

// Success reports whether every file of the run was written successfully
func (r RunReport) Success() bool {
	if r.Skipped {
		return false
	}
	for _, f := range r.Files {
		if !f.Success {
			return false
		}
	}
	return len(r.Files) > 0
}

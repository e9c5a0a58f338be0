package common

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// Result is the machine-readable outcome printed by every tool in CI mode.
type Result struct {
	Tool       string   `json:"tool"`
	Command    string   `json:"command"`
	OK         bool     `json:"ok"`
	DurationMS int64    `json:"duration_ms"`
	Details    []string `json:"details,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func NewResult(tool, command string, details []string, elapsed time.Duration, err error) Result {
	res := Result{
		Tool:       tool,
		Command:    command,
		OK:         err == nil,
		DurationMS: elapsed.Milliseconds(),
		Details:    details,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func WriteResult(w io.Writer, res Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func PrintResult(res Result) {
	_ = WriteResult(os.Stdout, res)
}

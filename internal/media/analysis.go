package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// AnalysisResult is one entry in a transcription results manifest: the
// external transcription tool's verdict for a single audio track. Either
// Analysis or Error is set; a tool that failed on a track reports the
// reason instead of findings.
type AnalysisResult struct {
	File     string         `json:"file"`
	Track    int            `json:"track"`
	Analysis *TrackAnalysis `json:"analysis,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// ParseAnalysisResults decodes a transcription results manifest.
func ParseAnalysisResults(data []byte) ([]AnalysisResult, error) {
	var results []AnalysisResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse analysis results: %w", err)
	}
	if len(results) == 0 {
		return nil, errors.New("parse analysis results: no entries")
	}
	for i := range results {
		results[i].File = strings.TrimSpace(results[i].File)
		results[i].Error = strings.TrimSpace(results[i].Error)
	}
	return results, nil
}

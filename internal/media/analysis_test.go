package media

import (
	"strings"
	"testing"
)

func TestParseAnalysisResults(t *testing.T) {
	manifest := `[
	  {"file": "  /library/movie.mkv ", "track": 2,
	   "analysis": {"transcribed": true, "detected_language": "eng", "commentary_confidence": 0.93}},
	  {"file": "/library/movie.mkv", "track": 3, "error": " whisperx exited with status 1 "}
	]`

	results, err := ParseAnalysisResults([]byte(manifest))
	if err != nil {
		t.Fatalf("ParseAnalysisResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].File != "/library/movie.mkv" {
		t.Fatalf("file not trimmed: %q", results[0].File)
	}
	if results[0].Analysis == nil || results[0].Analysis.CommentaryConfidence != 0.93 {
		t.Fatalf("analysis payload lost: %#v", results[0].Analysis)
	}
	if results[1].Error != "whisperx exited with status 1" {
		t.Fatalf("error not trimmed: %q", results[1].Error)
	}
}

func TestParseAnalysisResultsRejectsEmptyAndGarbage(t *testing.T) {
	if _, err := ParseAnalysisResults([]byte("[]")); err == nil || !strings.Contains(err.Error(), "no entries") {
		t.Fatalf("expected a no-entries error, got %v", err)
	}
	if _, err := ParseAnalysisResults([]byte("{]")); err == nil {
		t.Fatal("expected a parse error for garbage input")
	}
}

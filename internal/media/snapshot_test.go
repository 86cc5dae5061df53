package media

import (
	"strings"
	"testing"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Path:      "/library/show.mkv",
		Container: "mkv",
		SizeBytes: 1000,
		Tracks: []Track{
			{Index: 0, Type: TrackVideo, Codec: "h264", Width: 1920, Height: 1080, Default: true},
			{Index: 1, Type: TrackAudio, Codec: "aac", Language: "eng", Channels: 6, Default: true},
			{Index: 2, Type: TrackAudio, Codec: "ac3", Language: "jpn", Channels: 2},
			{Index: 3, Type: TrackSubtitle, Codec: "subrip", Language: "eng", Forced: true},
		},
	}
}

func TestCloneIsIndependent(t *testing.T) {
	original := sampleSnapshot()
	original.Tracks[1].Analysis = &TrackAnalysis{Transcribed: true, CommentaryConfidence: 0.9}

	clone := original.Clone()
	clone.Tracks[0].Codec = "hevc"
	clone.Tracks[1].Analysis.CommentaryConfidence = 0.1
	clone.Tracks = append(clone.Tracks, Track{Index: 4, Type: TrackAttachment})

	if original.Tracks[0].Codec != "h264" {
		t.Fatalf("clone mutation leaked into original codec: %q", original.Tracks[0].Codec)
	}
	if original.Tracks[1].Analysis.CommentaryConfidence != 0.9 {
		t.Fatalf("clone mutation leaked into original analysis: %v", original.Tracks[1].Analysis)
	}
	if len(original.Tracks) != 4 {
		t.Fatalf("clone append leaked into original: %d tracks", len(original.Tracks))
	}
}

func TestTrackByIndex(t *testing.T) {
	snapshot := sampleSnapshot()
	track, ok := snapshot.TrackByIndex(2)
	if !ok || track.Language != "jpn" {
		t.Fatalf("unexpected track lookup result: %+v ok=%v", track, ok)
	}
	if _, ok := snapshot.TrackByIndex(99); ok {
		t.Fatal("expected lookup miss for unknown index")
	}
}

func TestFingerprintStability(t *testing.T) {
	first := sampleSnapshot().Fingerprint()
	second := sampleSnapshot().Fingerprint()
	if first != second {
		t.Fatalf("fingerprints differ for identical snapshots: %s vs %s", first, second)
	}

	moved := sampleSnapshot()
	moved.Path = "/archive/show.mkv"
	if moved.Fingerprint() != first {
		t.Fatal("expected fingerprint to ignore path")
	}

	changed := sampleSnapshot()
	changed.Tracks[1].Default = false
	if changed.Fingerprint() == first {
		t.Fatal("expected fingerprint to change when a flag changes")
	}

	reordered := sampleSnapshot()
	reordered.Tracks[1], reordered.Tracks[2] = reordered.Tracks[2], reordered.Tracks[1]
	if reordered.Fingerprint() == first {
		t.Fatal("expected fingerprint to change when track order changes")
	}
}

func TestTrackDisplay(t *testing.T) {
	track := Track{Index: 1, Type: TrackAudio, Codec: "aac", Language: "eng", Channels: 6, Title: "Surround"}
	display := track.Display()
	for _, want := range []string{"#1", "audio", "aac", "English", "6ch", `"Surround"`} {
		if !strings.Contains(display, want) {
			t.Fatalf("display %q missing %q", display, want)
		}
	}
}

package batch

import (
	"sync"
	"testing"
)

func TestProgressTrackerCounts(t *testing.T) {
	tracker := NewProgressTracker(3)

	snap := tracker.Snapshot()
	if snap.Total != 3 || snap.Active != 0 || snap.Completed != 0 {
		t.Fatalf("fresh tracker = %+v", snap)
	}

	tracker.StartFile()
	tracker.StartFile()
	snap = tracker.Snapshot()
	if snap.Active != 2 || snap.Completed != 0 {
		t.Fatalf("after two starts = %+v", snap)
	}

	tracker.CompleteFile()
	snap = tracker.Snapshot()
	if snap.Active != 1 || snap.Completed != 1 {
		t.Fatalf("after one completion = %+v", snap)
	}

	tracker.StartFile()
	tracker.CompleteFile()
	tracker.CompleteFile()
	snap = tracker.Snapshot()
	if snap.Active != 0 || snap.Completed != 3 || snap.Total != 3 {
		t.Fatalf("drained tracker = %+v", snap)
	}
}

func TestProgressTrackerConcurrentUpdates(t *testing.T) {
	const files = 64
	tracker := NewProgressTracker(files)

	var wg sync.WaitGroup
	wg.Add(files)
	for i := 0; i < files; i++ {
		go func() {
			defer wg.Done()
			tracker.StartFile()
			tracker.CompleteFile()
		}()
	}
	wg.Wait()

	snap := tracker.Snapshot()
	if snap.Completed != files || snap.Active != 0 {
		t.Fatalf("after concurrent updates = %+v", snap)
	}
}

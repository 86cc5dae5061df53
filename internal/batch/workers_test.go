package batch

import "testing"

func TestResolveWorkerCount(t *testing.T) {
	tests := []struct {
		name       string
		requested  int
		configured int
		cpus       int
		want       int
	}{
		{name: "config default on idle machine", requested: 0, configured: 2, cpus: 8, want: 2},
		{name: "explicit request under the cap", requested: 3, configured: 2, cpus: 8, want: 3},
		{name: "oversized request capped at half the cores", requested: 100, configured: 2, cpus: 4, want: 2},
		{name: "single core still gets one worker", requested: 4, configured: 2, cpus: 1, want: 1},
		{name: "zero config falls back to built-in default", requested: 0, configured: 0, cpus: 16, want: 2},
		{name: "odd core count rounds down", requested: 8, configured: 2, cpus: 7, want: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveWorkerCount(tc.requested, tc.configured, tc.cpus, nil)
			if got != tc.want {
				t.Fatalf("ResolveWorkerCount(%d, %d, %d) = %d, want %d", tc.requested, tc.configured, tc.cpus, got, tc.want)
			}
		})
	}
}

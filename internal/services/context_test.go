package services_test

import (
	"context"
	"testing"

	"vpo/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "3f7c9c2e")
	ctx = services.WithBatchID(ctx, "batch-1")
	ctx = services.WithFile(ctx, "/library/movie.mkv")
	ctx = services.WithPhase(ctx, "normalize")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "3f7c9c2e" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if id, ok := services.BatchIDFromContext(ctx); !ok || id != "batch-1" {
		t.Fatalf("unexpected batch id: %v %v", id, ok)
	}
	if path, ok := services.FileFromContext(ctx); !ok || path != "/library/movie.mkv" {
		t.Fatalf("unexpected file: %v %v", path, ok)
	}
	if phase, ok := services.PhaseFromContext(ctx); !ok || phase != "normalize" {
		t.Fatalf("unexpected phase: %v %v", phase, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestPhaseBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithPhase(ctx, "")
	if _, ok := services.PhaseFromContext(ctx); ok {
		t.Fatal("expected no phase value")
	}
}

package services_test

import (
	"context"
	"testing"

	"ytsummarize/internal/services"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "7f9c2a10-run")
	ctx = services.WithSource(ctx, "yt_dQw4w9WgXcQ_en_captions")
	ctx = services.WithStage(ctx, "CAPTIONS_LOOKUP")
	ctx = services.WithChunk(ctx, 0)

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "7f9c2a10-run" {
		t.Fatalf("run id = %q, %v", id, ok)
	}
	if src, ok := services.SourceFromContext(ctx); !ok || src != "yt_dQw4w9WgXcQ_en_captions" {
		t.Fatalf("source = %q, %v", src, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "CAPTIONS_LOOKUP" {
		t.Fatalf("stage = %q, %v", stage, ok)
	}
	if chunk, ok := services.ChunkFromContext(ctx); !ok || chunk != 0 {
		t.Fatalf("chunk = %d, %v", chunk, ok)
	}
}

func TestContextIgnoresEmptyValues(t *testing.T) {
	ctx := services.WithChunk(services.WithRunID(services.WithStage(context.Background(), ""), ""), -1)
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("blank stage should not be recorded")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("blank run id should not be recorded")
	}
	if _, ok := services.ChunkFromContext(ctx); ok {
		t.Fatal("negative chunk should not be recorded")
	}
}

func TestStageOverridesOuterStage(t *testing.T) {
	ctx := services.WithStage(context.Background(), "SUBTITLE_EXTRACTION")
	ctx = services.WithStage(ctx, "AUDIO_DOWNLOAD")
	if stage, _ := services.StageFromContext(ctx); stage != "AUDIO_DOWNLOAD" {
		t.Fatalf("stage = %q, want the innermost value", stage)
	}
}

package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"FACE_TOLERANCE", "FACE_AMBIGUITY_MARGIN", "EMBEDDING_DIM",
		"FACE_DUPLICATE_THRESHOLD", "DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Matching.Tolerance != 0.6 {
		t.Errorf("expected default tolerance 0.6, got %f", cfg.Matching.Tolerance)
	}
	if cfg.Matching.AmbiguityMargin != 0.05 {
		t.Errorf("expected default ambiguity margin 0.05, got %f", cfg.Matching.AmbiguityMargin)
	}
	if cfg.Matching.EmbeddingDim != 128 {
		t.Errorf("expected default embedding dim 128, got %d", cfg.Matching.EmbeddingDim)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("expected default max open conns 25, got %d", cfg.Database.MaxOpenConns)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FACE_TOLERANCE", "0.45")
	t.Setenv("FACE_AMBIGUITY_MARGIN", "0.1")
	t.Setenv("EMBEDDING_DIM", "512")
	t.Setenv("DATABASE_URL", "postgres://localhost/attendance")

	cfg := Load()

	if cfg.Matching.Tolerance != 0.45 {
		t.Errorf("expected tolerance 0.45, got %f", cfg.Matching.Tolerance)
	}
	if cfg.Matching.AmbiguityMargin != 0.1 {
		t.Errorf("expected ambiguity margin 0.1, got %f", cfg.Matching.AmbiguityMargin)
	}
	if cfg.Matching.EmbeddingDim != 512 {
		t.Errorf("expected embedding dim 512, got %d", cfg.Matching.EmbeddingDim)
	}
	if cfg.Database.URL != "postgres://localhost/attendance" {
		t.Errorf("unexpected database URL %q", cfg.Database.URL)
	}
}

func TestLoadInvalidEnvFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric tolerance", "FACE_TOLERANCE", "abc"},
		{"negative tolerance", "FACE_TOLERANCE", "-0.5"},
		{"zero dim", "EMBEDDING_DIM", "0"},
		{"non-numeric dim", "EMBEDDING_DIM", "many"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			cfg := Load()
			if cfg.Matching.Tolerance != 0.6 && tc.key == "FACE_TOLERANCE" {
				t.Errorf("expected fallback tolerance 0.6, got %f", cfg.Matching.Tolerance)
			}
			if cfg.Matching.EmbeddingDim != 128 && tc.key == "EMBEDDING_DIM" {
				t.Errorf("expected fallback dim 128, got %d", cfg.Matching.EmbeddingDim)
			}
		})
	}
}

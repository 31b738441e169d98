package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IngestBatchSize != 3 || cfg.IngestBatchSpacing != 15*time.Second {
		t.Fatalf("unexpected ingest defaults: size=%d spacing=%s", cfg.IngestBatchSize, cfg.IngestBatchSpacing)
	}
	if cfg.RecalcBatchSize != 50 || cfg.RecalcBatchPause != 200*time.Millisecond {
		t.Fatalf("unexpected recalc defaults: size=%d pause=%s", cfg.RecalcBatchSize, cfg.RecalcBatchPause)
	}
}

func TestLoad_RejectsMalformedDurations(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"INGEST_BATCH_SPACING", "fifteen"},
		{"INGEST_BATCH_SPACING", "0s"},
		{"RECALC_BATCH_PAUSE", "quick"},
		{"POSTAL_CACHE_TTL", "-1h"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%q must fail config load", tc.key, tc.value)
			}
		})
	}
}

func TestLoad_RejectsMalformedCounts(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/app")
	t.Setenv("INGEST_BATCH_SIZE", "three")
	if _, err := Load(); err == nil {
		t.Fatalf("malformed INGEST_BATCH_SIZE must fail config load")
	}
}

package relay

import (
	"strings"
	"testing"
)

func TestParseStrategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{in: "direct", want: Direct},
		{in: "Queued", want: Queued},
		{in: " queued ", want: Queued},
		{in: "copy", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.String() != strings.ToLower(strings.TrimSpace(tt.in)) {
				t.Fatalf("String() = %q", got.String())
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg := New(Config{}).Config()
	if cfg.BufferSize != DefaultBufferSize || cfg.ChunkSize != DefaultChunkSize || cfg.QueueDepth != DefaultQueueDepth {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.IdleTimeout != 0 {
		t.Fatalf("zero IdleTimeout should stay disabled, got %v", cfg.IdleTimeout)
	}
}

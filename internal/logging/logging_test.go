package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"debug+2", slog.LevelDebug + 2, false},
		{"", 0, true},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNew_LevelChanges(t *testing.T) {
	var buf bytes.Buffer
	var lv slog.LevelVar
	lv.Set(slog.LevelWarn)
	logger := New(&buf, &lv)

	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}

	if err := SetLevel(&lv, "debug"); err != nil {
		t.Fatal(err)
	}
	logger.Debug("server stderr", "line", "oops")
	if !strings.Contains(buf.String(), "line=oops") {
		t.Errorf("debug record missing after SetLevel: %q", buf.String())
	}

	if err := SetLevel(&lv, "nope"); err == nil {
		t.Error("SetLevel accepted an invalid level")
	}
	if lv.Level() != slog.LevelDebug {
		t.Errorf("invalid SetLevel changed the level to %v", lv.Level())
	}
}

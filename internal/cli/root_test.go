package cli

import (
	"context"
	"log/slog"
	"testing"

	"github.com/spf13/viper"
)

func TestNewLogger_Level(t *testing.T) {
	t.Cleanup(func() { viper.Set("verbose", false) })

	tests := []struct {
		verbose bool
		infoOn  bool
		debugOn bool
	}{
		{verbose: false, infoOn: true, debugOn: false},
		{verbose: true, infoOn: true, debugOn: true},
	}

	for _, tc := range tests {
		viper.Set("verbose", tc.verbose)
		logger := newLogger()
		ctx := context.Background()
		if got := logger.Enabled(ctx, slog.LevelInfo); got != tc.infoOn {
			t.Errorf("verbose=%v: info enabled = %v, want %v", tc.verbose, got, tc.infoOn)
		}
		if got := logger.Enabled(ctx, slog.LevelDebug); got != tc.debugOn {
			t.Errorf("verbose=%v: debug enabled = %v, want %v", tc.verbose, got, tc.debugOn)
		}
	}
}

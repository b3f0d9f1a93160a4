package sysutil

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetLogLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	cases := map[string]zerolog.Level{
		"debug":     zerolog.DebugLevel,
		"INFO":      zerolog.InfoLevel,
		"":          zerolog.InfoLevel,
		" warn ":    zerolog.WarnLevel,
		"warning":   zerolog.WarnLevel,
		"error":     zerolog.ErrorLevel,
		"fatal":     zerolog.FatalLevel,
		"panic":     zerolog.PanicLevel,
		"verbose":   zerolog.InfoLevel,
		"Debugging": zerolog.InfoLevel,
	}
	for in, want := range cases {
		SetLogLevel(in)
		if got := zerolog.GlobalLevel(); got != want {
			t.Fatalf("SetLogLevel(%q): level = %v, want %v", in, got, want)
		}
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := FirstNonEmpty("", "  ", "a", "b"); got != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
	if got := FirstNonEmpty("x"); got != "x" {
		t.Fatalf("got %q, want %q", got, "x")
	}
	if got := FirstNonEmpty("", "   "); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
	if got := FirstNonEmpty(); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

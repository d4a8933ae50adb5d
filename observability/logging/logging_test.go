package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupEmitsStructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setup(&buf, "paylinkd", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("call executed", slog.String("method", "deposit"), MaskBytes("salt", []byte{1, 2}))

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["message"] != "call executed" || line["severity"] != "INFO" {
		t.Fatalf("unexpected envelope: %v", line)
	}
	if line["service"] != "paylinkd" || line["env"] != "test" {
		t.Fatalf("missing service attrs: %v", line)
	}
	if line["salt"] != RedactedValue {
		t.Fatalf("salt must be redacted, got %v", line["salt"])
	}
	if line["method"] != "deposit" {
		t.Fatalf("method should pass through, got %v", line["method"])
	}
}

func TestMaskFieldAllowlist(t *testing.T) {
	if got := MaskField("signature", "0xabc").Value.String(); got != RedactedValue {
		t.Fatalf("signature leaked: %s", got)
	}
	if got := MaskField("Commitment", "ab").Value.String(); got != "ab" {
		t.Fatalf("allowlisted key masked: %s", got)
	}
	if got := MaskField("salt", " ").Value.String(); got != " " {
		t.Fatalf("empty values are not masked, got %q", got)
	}
	for _, key := range RedactionAllowlist() {
		if key == "salt" || key == "signature" || key == "passphrase" {
			t.Fatalf("sensitive key %q allowlisted", key)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

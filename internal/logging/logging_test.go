package logging

import (
	"bytes"
	"strings"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.WithField("audit_id", "a-1").Debug("check finished")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["audit_id"] != "a-1" || entry["msg"] != "check finished" || entry["level"] != "debug" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "text", &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("level filtering broken:\n%s", out)
	}
	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("level: got %v", log.GetLevel())
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New("verbose", "text", nil); err == nil {
		t.Error("want error for unknown level")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Error("want error for unknown format")
	}
}

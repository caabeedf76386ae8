package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-hud/pkg/feedback"
	"github.com/teslashibe/go-hud/pkg/protocol"
)

func TestCollectFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002.jpg", "001.JPEG", "notes.txt", "003.png"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o700); err != nil {
		t.Fatal(err)
	}
	single := filepath.Join(dir, "notes.txt")

	got, err := collectFrames([]string{dir, single})
	if err != nil {
		t.Fatalf("collectFrames: %v", err)
	}
	want := []string{
		filepath.Join(dir, "001.JPEG"),
		filepath.Join(dir, "002.jpg"),
		single, // explicit files are taken as given
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}

	if _, err := collectFrames([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestDescribe(t *testing.T) {
	msg, err := protocol.NewEventMessage(feedback.Event{
		Kind:      feedback.Fire,
		TargetID:  "obj-1",
		Class:     "drone",
		Distance:  2.5,
		HitPoints: feedback.Remaining(50),
	})
	if err != nil {
		t.Fatal(err)
	}
	line, ok := describe(msg, false)
	if !ok {
		t.Fatal("event not described")
	}
	if want := "fire               obj-1 drone 2.5m hp=50"; line != want {
		t.Errorf("line = %q, want %q", line, want)
	}

	pong, _ := protocol.NewPongMessage("p", 1, 2)
	if _, ok := describe(pong, true); ok {
		t.Error("pong should not be printed")
	}

	errMsg, _ := protocol.NewErrorMessage("bad frame")
	if line, ok := describe(errMsg, false); !ok || line != "error: bad frame" {
		t.Errorf("error line = %q, %v", line, ok)
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/teslashibe/go-hud/pkg/protocol"
)

// collectFrames expands files and directories into a sorted list of JPEGs
func collectFrames(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var dir []string
		for _, e := range entries {
			if e.IsDir() || !isJPEG(e.Name()) {
				continue
			}
			dir = append(dir, filepath.Join(arg, e.Name()))
		}
		sort.Strings(dir)
		out = append(out, dir...)
	}
	return out, nil
}

func isJPEG(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return true
	}
	return false
}

// describe renders a server message as one output line
func describe(msg *protocol.Message, states bool) (string, bool) {
	switch msg.Type {
	case protocol.TypeEvent:
		e, err := msg.GetEventData()
		if err != nil {
			return "", false
		}
		line := fmt.Sprintf("%-18s %s", e.Kind, e.TargetID)
		if e.Class != "" {
			line += " " + e.Class
		}
		if e.From != "" || e.To != "" {
			line += fmt.Sprintf(" %s -> %s", e.From, e.To)
		}
		if e.Distance > 0 {
			line += fmt.Sprintf(" %.1fm", e.Distance)
		}
		if e.HitPoints != nil {
			line += fmt.Sprintf(" hp=%d", *e.HitPoints)
		}
		return line, true

	case protocol.TypeState:
		if !states {
			return "", false
		}
		st, err := msg.GetStateData()
		if err != nil {
			return "", false
		}
		return fmt.Sprintf("state #%d %s target=%s %s progress=%.0f%% objects=%d",
			st.Seq, st.Phase, st.TargetID, st.DistanceText, st.Progress*100, len(st.Objects)), true

	case protocol.TypeError:
		var ed protocol.ErrorData
		if err := msg.ParseData(&ed); err != nil {
			return "", false
		}
		return "error: " + ed.Message, true
	}
	return "", false
}

package main

import (
	"strings"
	"testing"

	"github.com/tinytelemetry/logsift/internal/analyzer"
	"github.com/tinytelemetry/logsift/internal/model"
)

func TestProgressModel(t *testing.T) {
	t.Parallel()
	m := newProgressModel(5)

	next, cmd := m.Update(progressMsg{Completed: 3, Total: 5, Path: "/var/log/nginx/access.log", State: model.FileCompleted})
	if cmd != nil {
		t.Errorf("Update(progress) returned a command")
	}
	m = next.(progressModel)
	next, _ = m.Update(progressMsg{Completed: 4, Total: 5, Path: "/var/log/missing.log", State: model.FileFailed})
	m = next.(progressModel)

	view := m.View()
	for _, want := range []string{"4/5 files", "1 failed", "missing.log"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() = %q, missing %q", view, want)
		}
	}

	if _, cmd := m.Update(progressDoneMsg{}); cmd == nil {
		t.Error("Update(done) did not quit")
	}
}

func TestProgressCallbackNeverBlocks(t *testing.T) {
	t.Parallel()
	ui := &progressUI{updates: make(chan analyzer.Progress, 1)}
	ui.Callback(analyzer.Progress{Completed: 1})
	ui.Callback(analyzer.Progress{Completed: 2})
	if got := <-ui.updates; got.Completed != 1 {
		t.Errorf("buffered update = %d, want 1", got.Completed)
	}
}

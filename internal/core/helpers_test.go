package core_test

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"sync"

	"viewcore/internal/core"
)

type logLine struct {
	level string
	msg   string
}

// recordingLogger keeps every line for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, logLine{level: level, msg: msg})
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.add("debug", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.add("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.add("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.add("error", msg) }

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if line.level == level {
			n++
		}
	}
	return n
}

// newRequest returns a request context over root writing into the returned
// buffer. pairs are alternating parameter names and values.
func newRequest(root *core.ViewRoot, pairs ...string) (*core.RequestContext, *bytes.Buffer) {
	rc := core.NewRequestContext(context.Background(), root)
	params := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		params.Add(pairs[i], pairs[i+1])
	}
	rc.Params = params
	var out bytes.Buffer
	rc.Writer = &out
	return rc, &out
}

func mustID[C core.Component](c C, id string) C {
	if err := c.AsBase().SetID(id); err != nil {
		panic(fmt.Sprintf("set id %q: %v", id, err))
	}
	return c
}

func mustAdd(parent core.Component, kids ...core.Component) {
	for _, kid := range kids {
		if err := parent.AsBase().AddChild(kid); err != nil {
			panic(fmt.Sprintf("add %s: %v", kid.AsBase().ID(), err))
		}
	}
}

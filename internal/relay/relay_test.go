package relay

import (
	"errors"
	"testing"

	"github.com/google/go-dap"
)

type evalCall struct {
	expr    string
	frameID int
	context string
}

type fakeRequester struct {
	frames     []dap.StackFrame
	stackErr   error
	evalErr    error
	stackCalls []int
	evals      []evalCall
}

func (f *fakeRequester) StackTrace(threadID int) ([]dap.StackFrame, error) {
	f.stackCalls = append(f.stackCalls, threadID)
	if f.stackErr != nil {
		return nil, f.stackErr
	}
	return f.frames, nil
}

func (f *fakeRequester) Evaluate(expr string, frameID int, context string) error {
	f.evals = append(f.evals, evalCall{expr, frameID, context})
	return f.evalErr
}

type fixedWatch bool

func (f fixedWatch) Watching() bool { return bool(f) }

type cmdSource struct {
	cmd string
}

func (c *cmdSource) WatchCommand() string { return c.cmd }

func stopped(reason string) *dap.StoppedEvent {
	return &dap.StoppedEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: 1, Type: "event"},
			Event:           "stopped",
		},
		Body: dap.StoppedEventBody{Reason: reason, ThreadId: 1},
	}
}

func terminated() *dap.TerminatedEvent {
	return &dap.TerminatedEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: 2, Type: "event"},
			Event:           "terminated",
		},
	}
}

func TestStoppedWhileWatchingEvaluatesTopFrame(t *testing.T) {
	req := &fakeRequester{frames: []dap.StackFrame{{Id: 42, Name: "build"}, {Id: 7, Name: "main"}}}
	cmds := &cmdSource{cmd: "show_all()"}
	tr := NewTracker("dbg-1", fixedWatch(true), cmds, req)

	tr.HandleMessage(stopped("breakpoint"))

	if len(req.stackCalls) != 1 || req.stackCalls[0] != watchThreadID {
		t.Fatalf("expected one stackTrace for thread %d, got %v", watchThreadID, req.stackCalls)
	}
	if len(req.evals) != 1 {
		t.Fatalf("expected one evaluate, got %d", len(req.evals))
	}
	got := req.evals[0]
	if got.expr != "show_all()" || got.frameID != 42 || got.context != "repl" {
		t.Errorf("evaluate: got %+v", got)
	}
}

func TestStoppedWhileNotWatchingIsIgnored(t *testing.T) {
	req := &fakeRequester{frames: []dap.StackFrame{{Id: 1}}}
	tr := NewTracker("dbg-1", fixedWatch(false), &cmdSource{cmd: "show_all()"}, req)

	for i := 0; i < 5; i++ {
		tr.HandleMessage(stopped("step"))
	}

	if len(req.stackCalls) != 0 || len(req.evals) != 0 {
		t.Errorf("idle relay issued requests: stack=%v evals=%v", req.stackCalls, req.evals)
	}
}

func TestCommandReReadBetweenStops(t *testing.T) {
	req := &fakeRequester{frames: []dap.StackFrame{{Id: 9}}}
	cmds := &cmdSource{cmd: "first()"}
	tr := NewTracker("dbg-1", fixedWatch(true), cmds, req)

	tr.HandleMessage(stopped("breakpoint"))
	cmds.cmd = "second()"
	tr.HandleMessage(stopped("breakpoint"))

	if len(req.evals) != 2 {
		t.Fatalf("expected two evaluates, got %d", len(req.evals))
	}
	if req.evals[0].expr != "first()" || req.evals[1].expr != "second()" {
		t.Errorf("expressions: got %q then %q", req.evals[0].expr, req.evals[1].expr)
	}
	if tr.LastExpression() != "second()" {
		t.Errorf("last expression cache: got %q", tr.LastExpression())
	}
}

func TestStackTraceFailureIsLocalToOneAttempt(t *testing.T) {
	req := &fakeRequester{stackErr: errors.New("adapter busy")}
	tr := NewTracker("dbg-1", fixedWatch(true), &cmdSource{cmd: "show_all()"}, req)

	tr.HandleMessage(stopped("breakpoint"))
	if len(req.evals) != 0 {
		t.Fatal("evaluate must not run after a stack trace failure")
	}

	// Next stop gets a fresh attempt.
	req.stackErr = nil
	req.frames = []dap.StackFrame{{Id: 3}}
	tr.HandleMessage(stopped("breakpoint"))
	if len(req.evals) != 1 {
		t.Errorf("expected a fresh evaluate on the next stop, got %d", len(req.evals))
	}
}

func TestEvaluateFailureSwallowed(t *testing.T) {
	req := &fakeRequester{frames: []dap.StackFrame{{Id: 3}}, evalErr: errors.New("no such name")}
	tr := NewTracker("dbg-1", fixedWatch(true), &cmdSource{cmd: "show_all()"}, req)

	tr.HandleMessage(stopped("breakpoint")) // must not panic or propagate
	if len(req.evals) != 1 {
		t.Errorf("expected the evaluate attempt to be made, got %d", len(req.evals))
	}
}

func TestEmptyStackSkipsEvaluate(t *testing.T) {
	req := &fakeRequester{}
	tr := NewTracker("dbg-1", fixedWatch(true), &cmdSource{cmd: "show_all()"}, req)

	tr.HandleMessage(stopped("pause"))
	if len(req.evals) != 0 {
		t.Error("no frames means nothing to evaluate in")
	}
}

func TestTerminatedAndUnknownEventsAreInert(t *testing.T) {
	req := &fakeRequester{frames: []dap.StackFrame{{Id: 1}}}
	tr := NewTracker("dbg-1", fixedWatch(true), &cmdSource{cmd: "show_all()"}, req)

	tr.HandleMessage(terminated())
	tr.HandleMessage(&dap.OutputEvent{
		Event: dap.Event{
			ProtocolMessage: dap.ProtocolMessage{Seq: 3, Type: "event"},
			Event:           "output",
		},
	})

	if len(req.stackCalls) != 0 || len(req.evals) != 0 {
		t.Error("terminated/unknown events must not trigger requests")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := NewTracker("a", fixedWatch(false), &cmdSource{}, &fakeRequester{})
	b := NewTracker("b", fixedWatch(false), &cmdSource{}, &fakeRequester{})

	r.Add(a)
	r.Add(b)
	if r.Count() != 2 {
		t.Fatalf("count: expected 2, got %d", r.Count())
	}
	if got, ok := r.Get("a"); !ok || got != a {
		t.Error("Get(a) should return the registered tracker")
	}

	r.Remove("a")
	if _, ok := r.Get("a"); ok {
		t.Error("removed tracker should be gone")
	}
	r.Remove("a") // no-op
	if r.Count() != 1 {
		t.Errorf("count after removal: expected 1, got %d", r.Count())
	}
}

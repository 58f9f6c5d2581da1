package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
)

// TestHelperProcess is the re-exec helper. It is not a real test:
// it is invoked by exec.Command pointing at the test binary itself.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_TEST_HELPER_PROCESS") != "1" {
		return
	}

	switch os.Getenv("GO_TEST_HELPER_MODE") {
	case "probe":
		fmt.Println("Executing: conda info --json")
		fmt.Fprintln(os.Stderr, "warning: deprecated config key")
		fmt.Println(`{"command":"probe","ok":true,"data":{"conda_version":"23.1.0","python_version":"3.11.4","root_prefix":"/opt/conda"}}`)
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "conda: command not found")
		os.Exit(3)
	case "long":
		fmt.Println(strings.Repeat("x", longLineSize))
		fmt.Print(`{"command":"pkg-list","ok":true,"data":[]}` + "\r\n")
		fmt.Print("no trailing newline")
		os.Exit(0)
	case "many":
		for i := 0; i < 500; i++ {
			fmt.Printf("line %d\n", i)
		}
		os.Exit(0)
	default:
		fmt.Fprintln(os.Stderr, "unknown test helper mode")
		os.Exit(2)
	}
}

// longLineSize is well past bufio.Scanner's default and 1 MiB buffers.
const longLineSize = 2 << 20

// helperBuilder returns a command builder that re-invokes the test binary
// in the given helper mode, appending argv after a "--" separator.
func helperBuilder(mode string) func(ctx context.Context, argv []string) *exec.Cmd {
	return func(ctx context.Context, argv []string) *exec.Cmd {
		args := append([]string{"-test.run=^TestHelperProcess$", "--"}, argv...)
		cmd := exec.CommandContext(ctx, os.Args[0], args...)
		cmd.Env = append(os.Environ(),
			"GO_TEST_HELPER_PROCESS=1",
			"GO_TEST_HELPER_MODE="+mode,
		)
		return cmd
	}
}

// recorder collects events from all three streams.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) attach(src Source) {
	for _, s := range Streams() {
		src.Subscribe(s, r.handle)
	}
}

func linesOf(events []Event, stream Stream) []string {
	var out []string
	for _, ev := range events {
		if ev.Stream == stream {
			out = append(out, ev.Line)
		}
	}
	return out
}

func TestExecHost_StreamsAndTerminates(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess tests in short mode")
	}

	// Given a host whose backend prints a log line, a warning and a result
	h := NewExecHost(CommandConfig{}, WithCmdBuilder(helperBuilder("probe")))
	var rec recorder
	rec.attach(h)

	// When a command is started and the host drains
	if err := h.Start(context.Background(), []string{"probe"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.Wait()

	// Then stdout and stderr lines arrive and terminated comes last
	events := rec.snapshot()
	if len(events) == 0 {
		t.Fatal("no events received")
	}
	last := events[len(events)-1]
	if last.Stream != StreamTerminated {
		t.Fatalf("last event stream = %q, want %q", last.Stream, StreamTerminated)
	}
	if last.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", last.ExitCode)
	}

	stdout := linesOf(events, StreamStdout)
	if len(stdout) != 2 {
		t.Fatalf("stdout lines = %q, want 2 lines", stdout)
	}
	if stdout[0] != "Executing: conda info --json" {
		t.Errorf("stdout[0] = %q", stdout[0])
	}
	if !strings.HasPrefix(stdout[1], `{"command":"probe"`) {
		t.Errorf("stdout[1] = %q, want probe result", stdout[1])
	}

	stderr := linesOf(events, StreamStderr)
	if len(stderr) != 1 || stderr[0] != "warning: deprecated config key" {
		t.Errorf("stderr lines = %q", stderr)
	}
}

func TestExecHost_NonZeroExit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess tests in short mode")
	}

	h := NewExecHost(CommandConfig{}, WithCmdBuilder(helperBuilder("fail")))
	var rec recorder
	rec.attach(h)

	if err := h.Start(context.Background(), []string{"env-list"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.Wait()

	events := rec.snapshot()
	last := events[len(events)-1]
	if last.Stream != StreamTerminated || last.ExitCode != 3 {
		t.Errorf("last event = %+v, want terminated with code 3", last)
	}
}

func TestExecHost_PreservesStdoutOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess tests in short mode")
	}

	h := NewExecHost(CommandConfig{}, WithCmdBuilder(helperBuilder("many")))
	var rec recorder
	rec.attach(h)

	if err := h.Start(context.Background(), []string{"pkg-list"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.Wait()

	stdout := linesOf(rec.snapshot(), StreamStdout)
	if len(stdout) != 500 {
		t.Fatalf("got %d stdout lines, want 500", len(stdout))
	}
	for i, line := range stdout {
		if want := fmt.Sprintf("line %d", i); line != want {
			t.Fatalf("stdout[%d] = %q, want %q", i, line, want)
		}
	}
}

func TestExecHost_LongLineDoesNotDropLaterLines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping subprocess tests in short mode")
	}

	// Given a backend that prints a 2 MiB line before its result line
	h := NewExecHost(CommandConfig{}, WithCmdBuilder(helperBuilder("long")))
	var rec recorder
	rec.attach(h)

	// When the command runs to completion
	if err := h.Start(context.Background(), []string{"pkg-list"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.Wait()

	// Then the long line, the result line and the unterminated tail all arrive
	stdout := linesOf(rec.snapshot(), StreamStdout)
	if len(stdout) != 3 {
		t.Fatalf("got %d stdout lines, want 3", len(stdout))
	}
	if len(stdout[0]) != longLineSize {
		t.Errorf("long line length = %d, want %d", len(stdout[0]), longLineSize)
	}
	if stdout[1] != `{"command":"pkg-list","ok":true,"data":[]}` {
		t.Errorf("stdout[1] = %q, want the result line without CR", stdout[1])
	}
	if stdout[2] != "no trailing newline" {
		t.Errorf("stdout[2] = %q", stdout[2])
	}
}

func TestExecHost_AppendsArgvAfterConfiguredArgs(t *testing.T) {
	// Given a config with a script argument
	h := NewExecHost(CommandConfig{Binary: "python3", Args: []string{"backend/main.py"}, Dir: "/srv"})

	// When the default builder constructs the command
	cmd := h.defaultCmdBuilder(context.Background(), []string{"pkg-list", "--prefix", "/envs/a"})

	// Then the script precedes the command vector
	want := []string{"python3", "backend/main.py", "pkg-list", "--prefix", "/envs/a"}
	if strings.Join(cmd.Args, " ") != strings.Join(want, " ") {
		t.Errorf("Args = %q, want %q", cmd.Args, want)
	}
	if cmd.Dir != "/srv" {
		t.Errorf("Dir = %q, want %q", cmd.Dir, "/srv")
	}
}

func TestExecHost_StartErrorForMissingBinary(t *testing.T) {
	// Given a backend binary that does not exist
	h := NewExecHost(CommandConfig{Binary: "/nonexistent/condatools-backend"})
	var rec recorder
	rec.attach(h)

	// When Start is called
	err := h.Start(context.Background(), []string{"probe"})

	// Then a StartError is returned and no terminated event follows
	var se *StartError
	if !errors.As(err, &se) {
		t.Fatalf("Start() error = %v, want *StartError", err)
	}
	if len(se.Argv) != 1 || se.Argv[0] != "probe" {
		t.Errorf("StartError.Argv = %q", se.Argv)
	}
	h.Wait()
	if got := rec.snapshot(); len(got) != 0 {
		t.Errorf("events after failed start = %+v, want none", got)
	}
}

func TestExecHost_NoBinaryConfigured(t *testing.T) {
	h := NewExecHost(CommandConfig{})

	err := h.Start(context.Background(), []string{"probe"})

	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("Start() error = %v, want ErrNoBackend", err)
	}
}

func TestSubscribe_UnsubscribeIsIdempotent(t *testing.T) {
	var f FakeHost
	var got []string
	unsub := f.Subscribe(StreamStdout, func(ev Event) { got = append(got, ev.Line) })

	f.Stdout("a")
	unsub()
	unsub()
	f.Stdout("b")

	if len(got) != 1 || got[0] != "a" {
		t.Errorf("got %q, want [a]", got)
	}
	if n := f.Subscribers(StreamStdout); n != 0 {
		t.Errorf("Subscribers = %d, want 0", n)
	}
}

func TestFakeHost_RecordsCalls(t *testing.T) {
	f := &FakeHost{StartFunc: func(argv []string) error {
		if argv[0] == "env-remove" {
			return errors.New("boom")
		}
		return nil
	}}

	if err := f.Start(context.Background(), []string{"probe"}); err != nil {
		t.Fatalf("Start(probe) error = %v", err)
	}
	if err := f.Start(context.Background(), []string{"env-remove", "--prefix", "/x"}); err == nil {
		t.Fatal("Start(env-remove) should fail")
	}

	calls := f.Calls()
	if len(calls) != 2 || calls[1][2] != "/x" {
		t.Errorf("Calls() = %q", calls)
	}
}

func TestStartError_Message(t *testing.T) {
	err := &StartError{Argv: []string{"env-list"}, Err: errors.New("exec: \"python3\": executable file not found in $PATH")}
	if !strings.Contains(err.Error(), "env-list") || !strings.Contains(err.Error(), "executable file not found") {
		t.Errorf("Error() = %q", err.Error())
	}
	if errors.Unwrap(err) == nil {
		t.Error("Unwrap() should return the cause")
	}
}

package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/matsen/primdb/internal/engine"
	"github.com/matsen/primdb/internal/render"
	"github.com/matsen/primdb/internal/store"
)

func setupTestSession(t *testing.T, input string, opts Options) (*Session, *bytes.Buffer, *store.MemBackend) {
	t.Helper()
	backend := store.NewMemBackend()
	var out bytes.Buffer
	s := New(engine.New(backend), strings.NewReader(input), &out, render.New(&out), opts)
	return s, &out, backend
}

func TestRun_Script(t *testing.T) {
	input := strings.Join([]string{
		"create_table users name:str age:int",
		`insert into users values ("Ann", 30)`,
		"",
		"select from users where age = 30",
		"frobnicate",
		"drop_table users",
		"n",
		"list_tables",
		"exit",
		"list_tables",
	}, "\n")
	s, out, _ := setupTestSession(t, input, Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := strings.Join([]string{
		`Table "users" created with columns: ID:int, name:str, age:int`,
		`Record with ID=1 inserted into "users".`,
		"ID  name  age",
		" 1  Ann    30",
		"(1 row)",
		`Command "frobnicate" not found. Type "help" for the list of commands.`,
		`Are you sure you want to drop table "users"? [y/n]: Operation cancelled.`,
		"- users",
		"Goodbye!",
		"",
	}, "\n")
	if out.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", out.String(), want)
	}
}

func TestRun_ConfirmedDrop(t *testing.T) {
	s, out, backend := setupTestSession(t, "create_table t a:int\ndrop_table t\nY\n", Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), `Table "t" dropped.`) {
		t.Errorf("output = %q", out.String())
	}
	reg, _ := backend.LoadSchema()
	if len(reg.Tables) != 0 {
		t.Errorf("tables = %v", reg.Names())
	}
}

func TestRun_AssumeYes(t *testing.T) {
	s, out, _ := setupTestSession(t, "create_table t a:int\ndrop_table t\n", Options{AssumeYes: true})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(out.String(), "Are you sure") {
		t.Errorf("AssumeYes should not prompt: %q", out.String())
	}
	if !strings.Contains(out.String(), "dropped") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_InteractivePromptAndEOF(t *testing.T) {
	s, out, _ := setupTestSession(t, "list_tables\n", Options{Interactive: true, Prompt: "> "})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "> No tables.\n> \nGoodbye!\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestRun_LastLineWithoutNewline(t *testing.T) {
	s, out, _ := setupTestSession(t, "help", Options{})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "create_table") || !strings.HasSuffix(out.String(), "Goodbye!\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRun_Cancelled(t *testing.T) {
	s, _, _ := setupTestSession(t, "list_tables\n", Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
}

func TestRun_Timing(t *testing.T) {
	s, out, _ := setupTestSession(t, "create_table t a:int\nselect from t\n", Options{Timing: true})

	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	re := regexp.MustCompile(`(?m)^select took \d+\.\d{3}s$`)
	if !re.MatchString(out.String()) {
		t.Errorf("no timing line in %q", out.String())
	}
	if !strings.Contains(out.String(), "(0 rows)\nselect took") {
		t.Errorf("timing should follow the result: %q", out.String())
	}
}

func TestExec_TimingOnFailure(t *testing.T) {
	s, out, _ := setupTestSession(t, "", Options{Timing: true})
	if _, err := s.Exec("create_table t a:int"); err != nil {
		t.Fatalf("Exec(create_table): %v", err)
	}
	out.Reset()

	if _, err := s.Exec("insert into t values (nope)"); err == nil {
		t.Fatal("Exec(bad insert) should fail")
	}
	re := regexp.MustCompile(`^Error: .*\ninsert took \d+\.\d{3}s\n$`)
	if !re.MatchString(out.String()) {
		t.Errorf("output = %q, want error then timing line", out.String())
	}
}

func TestExec(t *testing.T) {
	s, out, _ := setupTestSession(t, "", Options{})

	exit, err := s.Exec("create_table t a:int")
	if exit || err != nil {
		t.Fatalf("Exec(create_table) = %v, %v", exit, err)
	}

	_, err = s.Exec("insert into t values (nope)")
	var tm *engine.TypeMismatchError
	if !errors.As(err, &tm) {
		t.Errorf("Exec(bad insert) error = %v", err)
	}
	if !strings.Contains(out.String(), `Error: invalid value "nope" for column "a": expected int`) {
		t.Errorf("output = %q", out.String())
	}

	exit, err = s.Exec("exit")
	if !exit || err != nil {
		t.Errorf("Exec(exit) = %v, %v", exit, err)
	}
}

func TestPromptConfirmer(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"  Y  \n", true},
		{"yes\n", false},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		p := &PromptConfirmer{In: bufio.NewReader(strings.NewReader(tt.input)), Out: &out}
		got, err := p.Confirm("drop table \"t\"")
		if err != nil {
			t.Fatalf("Confirm(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.HasPrefix(out.String(), `Are you sure you want to drop table "t"? [y/n]: `) {
			t.Errorf("prompt = %q", out.String())
		}
	}
}

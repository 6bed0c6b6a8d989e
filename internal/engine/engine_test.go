package engine

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/matsen/primdb/internal/command"
	"github.com/matsen/primdb/internal/store"
)

func setupTestEngine(t *testing.T) (*Engine, *store.MemBackend) {
	t.Helper()
	backend := store.NewMemBackend()
	return New(backend), backend
}

func parse(t *testing.T, line string) command.Command {
	t.Helper()
	cmd, err := command.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	return cmd
}

func mustExec(t *testing.T, e *Engine, line string) *Result {
	t.Helper()
	res, err := e.Execute(parse(t, line))
	if err != nil {
		t.Fatalf("Execute(%q): %v", line, err)
	}
	return res
}

func execErr(t *testing.T, e *Engine, line string) error {
	t.Helper()
	_, err := e.Execute(parse(t, line))
	if err == nil {
		t.Fatalf("Execute(%q) should fail", line)
	}
	return err
}

func ids(records []store.Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r.ID()
	}
	return out
}

func setupUsers(t *testing.T) (*Engine, *store.MemBackend) {
	t.Helper()
	e, backend := setupTestEngine(t)
	mustExec(t, e, "create_table users name:str age:int active:bool")
	mustExec(t, e, `insert into users values ("Ann", 30, true)`)
	mustExec(t, e, `insert into users values ("Bob", 28, false)`)
	mustExec(t, e, `insert into users values ("Cy", 28, true)`)
	return e, backend
}

func TestCreateTable_Describe(t *testing.T) {
	e, _ := setupTestEngine(t)

	mustExec(t, e, "create_table users name:str age:int active:bool")
	res := mustExec(t, e, "info users")

	want := []string{"ID:int", "name:str", "age:int", "active:bool"}
	got := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		got[i] = c.String()
	}
	if !slices.Equal(got, want) {
		t.Errorf("columns = %v, want %v", got, want)
	}
	if res.Count != 0 {
		t.Errorf("Count = %d, want 0", res.Count)
	}
}

func TestCreateTable_Exists(t *testing.T) {
	e, backend := setupTestEngine(t)
	mustExec(t, e, "create_table users name:str")

	err := execErr(t, e, "create_table users other:int")
	if !errors.Is(err, store.ErrTableExists) {
		t.Errorf("error = %v, want ErrTableExists", err)
	}

	reg, _ := backend.LoadSchema()
	schema, ok := reg.Get("users")
	if !ok {
		t.Fatal("users should still exist")
	}
	if !slices.Equal(schema.Specs(), []string{"ID:int", "name:str"}) {
		t.Errorf("schema changed to %v", schema.Specs())
	}
	if len(reg.Tables) != 1 {
		t.Errorf("registry has %d tables, want 1", len(reg.Tables))
	}
}

func TestCreateTable_InvalidType(t *testing.T) {
	e, backend := setupTestEngine(t)

	err := execErr(t, e, "create_table users name:text")
	if !errors.Is(err, store.ErrInvalidType) {
		t.Errorf("error = %v, want ErrInvalidType", err)
	}
	reg, _ := backend.LoadSchema()
	if len(reg.Tables) != 0 {
		t.Errorf("registry should be empty, has %v", reg.Names())
	}
}

func TestListTables_InsertionOrder(t *testing.T) {
	e, _ := setupTestEngine(t)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		mustExec(t, e, "create_table "+name+" x:int")
	}

	res := mustExec(t, e, "list_tables")
	if !slices.Equal(res.Tables, []string{"zeta", "alpha", "mid"}) {
		t.Errorf("Tables = %v", res.Tables)
	}
}

func TestInsert_SequentialIDs(t *testing.T) {
	e, _ := setupTestEngine(t)
	mustExec(t, e, "create_table t n:int")

	for i := 1; i <= 5; i++ {
		res := mustExec(t, e, fmt.Sprintf("insert into t values (%d)", i))
		if res.ID != i {
			t.Errorf("insert %d got ID %d", i, res.ID)
		}
	}

	mustExec(t, e, "delete from t where ID = 2")
	res := mustExec(t, e, "insert into t values (99)")
	if res.ID != 6 {
		t.Errorf("ID after deleting 2 = %d, want 6", res.ID)
	}
	if got := ids(res.Records); !slices.Equal(got, []int{1, 3, 4, 5, 6}) {
		t.Errorf("IDs = %v", got)
	}
}

func TestInsert_DeletedMaxIDNotReused(t *testing.T) {
	e, _ := setupTestEngine(t)
	mustExec(t, e, "create_table t n:int")
	mustExec(t, e, "insert into t values (1)")
	mustExec(t, e, "insert into t values (2)")

	mustExec(t, e, "delete from t where ID = 2")
	res := mustExec(t, e, "insert into t values (3)")
	if res.ID != 3 {
		t.Errorf("ID = %d, want 3", res.ID)
	}

	mustExec(t, e, "delete from t where n = 1")
	mustExec(t, e, "delete from t where n = 3")
	res = mustExec(t, e, "insert into t values (4)")
	if res.ID != 4 {
		t.Errorf("ID on emptied table = %d, want 4", res.ID)
	}
}

func TestInsert_IntWiderThanInt64(t *testing.T) {
	e, _ := setupUsers(t)

	res := mustExec(t, e, `insert into users values ("Dee", 99999999999999999999, false)`)
	if res.ID != 4 {
		t.Errorf("ID = %d, want 4", res.ID)
	}

	res = mustExec(t, e, "select from users where age = 99999999999999999999")
	if got := ids(res.Records); !slices.Equal(got, []int{4}) {
		t.Fatalf("IDs = %v, want [4]", got)
	}
	if v, _ := res.Records[0].Text("age"); v != "99999999999999999999" {
		t.Errorf("age = %q, want raw text kept", v)
	}
}

func TestInsert_Errors(t *testing.T) {
	e, backend := setupUsers(t)
	before, _ := backend.LoadRecords("users")

	t.Run("no such table", func(t *testing.T) {
		err := execErr(t, e, "insert into ghosts values (1)")
		if !errors.Is(err, store.ErrNoSuchTable) {
			t.Errorf("error = %v, want ErrNoSuchTable", err)
		}
	})

	t.Run("arity", func(t *testing.T) {
		err := execErr(t, e, `insert into users values ("Dee", 40)`)
		if !errors.Is(err, ErrArityMismatch) {
			t.Errorf("error = %v, want ErrArityMismatch", err)
		}
	})

	t.Run("first invalid value is reported", func(t *testing.T) {
		err := execErr(t, e, `insert into users values ("Dee", forty, maybe)`)
		var tm *TypeMismatchError
		if !errors.As(err, &tm) {
			t.Fatalf("error = %v, want *TypeMismatchError", err)
		}
		if tm.Column != "age" || tm.Value != "forty" || tm.Expected != store.TypeInt {
			t.Errorf("got %+v", tm)
		}
	})

	after, _ := backend.LoadRecords("users")
	if !reflect.DeepEqual(before, after) {
		t.Errorf("failed inserts changed the collection")
	}
}

func TestSelect_NoFilter(t *testing.T) {
	e, backend := setupUsers(t)

	res := mustExec(t, e, "select from users")
	stored, _ := backend.LoadRecords("users")
	if !reflect.DeepEqual(res.Records, stored) {
		t.Errorf("select returned %v, want %v", res.Records, stored)
	}
	if res.Count != 3 {
		t.Errorf("Count = %d, want 3", res.Count)
	}
}

func TestSelect_StringEquality(t *testing.T) {
	e, _ := setupUsers(t)

	res := mustExec(t, e, "select from users where age = 28")
	if got := ids(res.Records); !slices.Equal(got, []int{2, 3}) {
		t.Errorf("age = 28 matched %v, want [2 3]", got)
	}

	res = mustExec(t, e, "select from users where ID = 1")
	if got := ids(res.Records); !slices.Equal(got, []int{1}) {
		t.Errorf("ID = 1 matched %v, want [1]", got)
	}

	res = mustExec(t, e, `select from users where name = "Zed"`)
	if len(res.Records) != 0 || res.Records == nil {
		t.Errorf("expected empty non-nil result, got %#v", res.Records)
	}
}

func TestSelect_UnknownColumn(t *testing.T) {
	e, _ := setupUsers(t)

	err := execErr(t, e, "select from users where height = 3")
	if !errors.Is(err, store.ErrNoSuchColumn) {
		t.Errorf("error = %v, want ErrNoSuchColumn", err)
	}
}

func TestSelect_CacheIdempotent(t *testing.T) {
	e, _ := setupUsers(t)

	first := mustExec(t, e, "select from users where active = true")
	second := mustExec(t, e, "select from users where active = true")
	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Errorf("cached result differs: %v vs %v", first.Records, second.Records)
	}
	if stats := e.Cache().Stats(); stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}

	mustExec(t, e, `insert into users values ("Dee", 50, true)`)
	if stats := e.Cache().Stats(); stats.Entries != 0 {
		t.Errorf("insert should invalidate, %d entries remain", stats.Entries)
	}

	third := mustExec(t, e, "select from users where active = true")
	if got := ids(third.Records); !slices.Equal(got, []int{1, 3, 4}) {
		t.Errorf("after insert got %v, want [1 3 4]", got)
	}
}

func TestSelect_CacheSeesExternalEdits(t *testing.T) {
	e, backend := setupUsers(t)
	mustExec(t, e, "select from users where age = 28")

	records, _ := backend.LoadRecords("users")
	records[0]["age"] = "28"
	if err := backend.SaveRecords("users", records); err != nil {
		t.Fatalf("SaveRecords: %v", err)
	}

	res := mustExec(t, e, "select from users where age = 28")
	if got := ids(res.Records); !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestSelect_WithoutCache(t *testing.T) {
	backend := store.NewMemBackend()
	e := New(backend, WithCache(nil))
	mustExec(t, e, "create_table t n:int")
	mustExec(t, e, "insert into t values (7)")

	res := mustExec(t, e, "select from t where n = 7")
	if res.Count != 1 {
		t.Errorf("Count = %d, want 1", res.Count)
	}
	if e.Cache() != nil {
		t.Error("cache should be disabled")
	}
}

func TestUpdate(t *testing.T) {
	e, backend := setupUsers(t)

	res := mustExec(t, e, "update users set active = false where age = 28")
	if res.Count != 2 || res.Status != StatusOK {
		t.Fatalf("Count = %d, Status = %v", res.Count, res.Status)
	}

	stored, _ := backend.LoadRecords("users")
	want := []store.Record{
		{store.IDColumn: 1, "name": "Ann", "age": "30", "active": "true"},
		{store.IDColumn: 2, "name": "Bob", "age": "28", "active": "false"},
		{store.IDColumn: 3, "name": "Cy", "age": "28", "active": "false"},
	}
	if !reflect.DeepEqual(stored, want) {
		t.Errorf("stored = %v, want %v", stored, want)
	}
}

func TestUpdate_NoMatch(t *testing.T) {
	e, backend := setupUsers(t)
	saves := backend.Saves("users")
	before, _ := backend.LoadRecords("users")

	res := mustExec(t, e, `update users set age = 1 where name = "Zed"`)
	if res.Status != StatusNoMatch || res.Count != 0 {
		t.Errorf("Status = %v, Count = %d", res.Status, res.Count)
	}
	if !reflect.DeepEqual(res.Records, before) {
		t.Errorf("NoMatch should return the original collection")
	}
	if res.Where == nil || res.Where.String() != "name = Zed" {
		t.Errorf("Where = %v", res.Where)
	}
	if backend.Saves("users") != saves {
		t.Error("NoMatch update should not persist")
	}
}

func TestUpdate_Errors(t *testing.T) {
	e, backend := setupUsers(t)
	saves := backend.Saves("users")

	err := execErr(t, e, "update users set ID = 9 where ID = 1")
	if !errors.Is(err, ErrReadOnlyColumn) {
		t.Errorf("set ID: error = %v, want ErrReadOnlyColumn", err)
	}

	err = execErr(t, e, "update users set age = old where ID = 1")
	var tm *TypeMismatchError
	if !errors.As(err, &tm) || tm.Column != "age" {
		t.Errorf("set age = old: error = %v, want TypeMismatchError on age", err)
	}

	err = execErr(t, e, "update users set height = 3 where ID = 1")
	if !errors.Is(err, store.ErrNoSuchColumn) {
		t.Errorf("unknown set column: error = %v", err)
	}

	err = execErr(t, e, "update ghosts set a = 1 where b = 2")
	if !errors.Is(err, store.ErrNoSuchTable) {
		t.Errorf("unknown table: error = %v", err)
	}

	if backend.Saves("users") != saves {
		t.Error("failed updates should not persist")
	}
}

func TestDelete(t *testing.T) {
	e, backend := setupUsers(t)

	res := mustExec(t, e, "delete from users where age = 28")
	if res.Count != 2 {
		t.Errorf("Count = %d, want 2", res.Count)
	}
	stored, _ := backend.LoadRecords("users")
	if got := ids(stored); !slices.Equal(got, []int{1}) {
		t.Errorf("remaining IDs = %v, want [1]", got)
	}
}

func TestDelete_NoMatch(t *testing.T) {
	e, backend := setupUsers(t)
	saves := backend.Saves("users")

	res := mustExec(t, e, "delete from users where ID = 42")
	if res.Status != StatusNoMatch || res.Count != 0 || len(res.Records) != 3 {
		t.Errorf("got Status=%v Count=%d records=%d", res.Status, res.Count, len(res.Records))
	}
	if backend.Saves("users") != saves {
		t.Error("NoMatch delete should not persist")
	}
}

func TestDropTable(t *testing.T) {
	e, backend := setupUsers(t)

	mustExec(t, e, "drop_table users")
	reg, _ := backend.LoadSchema()
	if _, ok := reg.Get("users"); ok {
		t.Error("schema entry should be gone")
	}
	if backend.HasRecords("users") {
		t.Error("records should be gone")
	}

	err := execErr(t, e, "drop_table users")
	if !errors.Is(err, store.ErrNoSuchTable) {
		t.Errorf("second drop: error = %v, want ErrNoSuchTable", err)
	}
}

func TestExecute_ControlCommand(t *testing.T) {
	e, _ := setupTestEngine(t)
	if _, err := e.Execute(command.Help{}); err == nil {
		t.Error("help should not be executable by the engine")
	}
}

func TestUsersScenario(t *testing.T) {
	e, _ := setupTestEngine(t)

	res := mustExec(t, e, "create_table users name:str age:int active:bool")
	if len(res.Columns) != 4 {
		t.Fatalf("columns = %v", res.Columns)
	}

	res = mustExec(t, e, `insert into users values ("Ann", 30, true)`)
	want := store.Record{store.IDColumn: 1, "name": "Ann", "age": "30", "active": "true"}
	if !reflect.DeepEqual(res.Records, []store.Record{want}) {
		t.Fatalf("after insert: %v", res.Records)
	}

	res = mustExec(t, e, "select from users where age = 30")
	if !reflect.DeepEqual(res.Records, []store.Record{want}) {
		t.Fatalf("select: %v", res.Records)
	}

	res = mustExec(t, e, `update users set age = 31 where name = "Ann"`)
	if age, _ := res.Records[0].Text("age"); age != "31" || res.Count != 1 {
		t.Fatalf("update: age = %q, count = %d", age, res.Count)
	}

	res = mustExec(t, e, "delete from users where ID = 1")
	if len(res.Records) != 0 || res.Count != 1 {
		t.Fatalf("delete: %v", res.Records)
	}
}

func TestRun_DeclinedDropLeavesState(t *testing.T) {
	e, backend := setupUsers(t)
	before, _ := backend.LoadRecords("users")

	res, err := e.Run(command.DropTable{Table: "users"}, Policies{Confirm: AlwaysDecline})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Status != StatusCancelled || res.Table != "users" {
		t.Errorf("Status = %v, Table = %q", res.Status, res.Table)
	}

	reg, _ := backend.LoadSchema()
	if _, ok := reg.Get("users"); !ok {
		t.Error("declined drop removed the schema")
	}
	after, _ := backend.LoadRecords("users")
	if !reflect.DeepEqual(before, after) {
		t.Error("declined drop changed the records")
	}
}

func TestRun_ConfirmedDelete(t *testing.T) {
	e, backend := setupUsers(t)

	var asked string
	confirm := ConfirmFunc(func(action string) (bool, error) {
		asked = action
		return true, nil
	})
	res, err := e.Run(parse(t, "delete from users where age = 28"), Policies{Confirm: confirm})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if asked != `delete 2 record(s) from "users" where age = 28` {
		t.Errorf("action = %q", asked)
	}
	if res.Count != 2 {
		t.Errorf("Count = %d", res.Count)
	}
	stored, _ := backend.LoadRecords("users")
	if len(stored) != 1 {
		t.Errorf("%d records remain, want 1", len(stored))
	}
}

func TestRun_NoPrompt(t *testing.T) {
	e, _ := setupUsers(t)
	fail := ConfirmFunc(func(action string) (bool, error) {
		t.Errorf("unexpected confirmation for %q", action)
		return false, nil
	})

	res, err := e.Run(parse(t, "delete from users where ID = 42"), Policies{Confirm: fail})
	if err != nil || res.Status != StatusNoMatch {
		t.Errorf("no-match delete: res=%v err=%v", res, err)
	}

	_, err = e.Run(parse(t, "drop_table ghosts"), Policies{Confirm: fail})
	if !errors.Is(err, store.ErrNoSuchTable) {
		t.Errorf("drop of missing table: error = %v", err)
	}

	if _, err := e.Run(parse(t, "select from users"), Policies{Confirm: fail}); err != nil {
		t.Errorf("select: %v", err)
	}
}

func TestRun_ConfirmError(t *testing.T) {
	e, backend := setupUsers(t)
	boom := errors.New("stdin closed")

	_, err := e.Run(parse(t, "drop_table users"), Policies{
		Confirm: ConfirmFunc(func(string) (bool, error) { return false, boom }),
	})
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
	reg, _ := backend.LoadSchema()
	if _, ok := reg.Get("users"); !ok {
		t.Error("table dropped despite confirmation error")
	}
}

func TestRun_Timing(t *testing.T) {
	e, _ := setupUsers(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{start, start.Add(3 * time.Millisecond)}
	clock := func() time.Time {
		now := ticks[0]
		ticks = ticks[1:]
		return now
	}

	var out bytes.Buffer
	if _, err := e.Run(parse(t, "select from users"), Policies{Timing: &out, Clock: clock}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "select took 0.003s\n" {
		t.Errorf("timing output = %q", out.String())
	}
}

func TestIDProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("n inserts yield IDs 1..n in order", prop.ForAll(
		func(n int) bool {
			e := New(store.NewMemBackend())
			if _, err := e.Execute(command.CreateTable{Table: "t", Columns: []string{"v:int"}}); err != nil {
				return false
			}
			var res *Result
			for i := 0; i < n; i++ {
				var err error
				res, err = e.Execute(command.Insert{Table: "t", Values: []string{fmt.Sprint(i)}})
				if err != nil {
					return false
				}
			}
			for i, r := range res.Records {
				if r.ID() != i+1 {
					return false
				}
			}
			return len(res.Records) == n
		},
		gen.IntRange(1, 25),
	))

	properties.Property("an ID is never reassigned after delete", prop.ForAll(
		func(n, victim int) bool {
			victim = victim%n + 1
			e := New(store.NewMemBackend())
			if _, err := e.Execute(command.CreateTable{Table: "t", Columns: []string{"v:int"}}); err != nil {
				return false
			}
			for i := 0; i < n; i++ {
				if _, err := e.Execute(command.Insert{Table: "t", Values: []string{"0"}}); err != nil {
					return false
				}
			}
			where := command.Clause{Column: store.IDColumn, Value: fmt.Sprint(victim)}
			if _, err := e.Execute(command.Delete{Table: "t", Where: where}); err != nil {
				return false
			}
			res, err := e.Execute(command.Insert{Table: "t", Values: []string{"0"}})
			return err == nil && res.ID == n+1
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

func TestSelectProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("filtered select matches a manual scan, cached or not", prop.ForAll(
		func(ages []int, target int) bool {
			e := New(store.NewMemBackend())
			if _, err := e.Execute(command.CreateTable{Table: "t", Columns: []string{"age:int"}}); err != nil {
				return false
			}
			var want []int
			for i, age := range ages {
				if _, err := e.Execute(command.Insert{Table: "t", Values: []string{fmt.Sprint(age)}}); err != nil {
					return false
				}
				if age == target {
					want = append(want, i+1)
				}
			}

			sel := command.Select{Table: "t", Where: &command.Clause{Column: "age", Value: fmt.Sprint(target)}}
			first, err := e.Execute(sel)
			if err != nil {
				return false
			}
			second, err := e.Execute(sel)
			if err != nil {
				return false
			}
			return slices.Equal(ids(first.Records), want) &&
				reflect.DeepEqual(first.Records, second.Records)
		},
		gen.SliceOf(gen.IntRange(0, 4)),
		gen.IntRange(0, 4),
	))

	properties.TestingRun(t)
}

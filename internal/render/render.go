// Package render turns engine results into text for a terminal or JSON for
// scripts.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matsen/primdb/internal/command"
	"github.com/matsen/primdb/internal/engine"
	"github.com/matsen/primdb/internal/store"
)

// MaxCellWidth caps the width of a table column in human output.
const MaxCellWidth = 40

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8B5CF6"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#EF4444"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#64748B"))
)

// Renderer writes results to w.
type Renderer struct {
	w      io.Writer
	json   bool
	styled bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// JSON makes the renderer emit one JSON document per result.
func JSON(enabled bool) Option {
	return func(r *Renderer) {
		r.json = enabled
	}
}

// Styled enables colours. Callers pass true only when w is a terminal.
func Styled(enabled bool) Option {
	return func(r *Renderer) {
		r.styled = enabled
	}
}

// New creates a renderer writing to w.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{w: w}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Response is the JSON form of a result.
type Response struct {
	Command string         `json:"command"`
	Status  string         `json:"status"`
	Table   string         `json:"table,omitempty"`
	Columns []string       `json:"columns,omitempty"`
	Records []store.Record `json:"records,omitempty"`
	Count   int            `json:"count"`
	ID      int            `json:"id,omitempty"`
	Tables  []string       `json:"tables,omitempty"`
}

// ErrorResponse is the JSON form of a failed command.
type ErrorResponse struct {
	Error   string `json:"error"`
	Command string `json:"command,omitempty"`
}

// Result writes one command outcome.
func (r *Renderer) Result(res *engine.Result) error {
	if r.json {
		return r.encode(NewResponse(res))
	}

	if res.Status == engine.StatusCancelled {
		r.println(r.style(mutedStyle, "Operation cancelled."))
		return nil
	}

	switch c := res.Command.(type) {
	case command.CreateTable:
		r.println(r.style(okStyle, fmt.Sprintf("Table %q created with columns: %s", res.Table, joinColumns(res.Columns))))
	case command.DropTable:
		r.println(r.style(okStyle, fmt.Sprintf("Table %q dropped.", res.Table)))
	case command.ListTables:
		if len(res.Tables) == 0 {
			r.println(r.style(mutedStyle, "No tables."))
			return nil
		}
		for _, name := range res.Tables {
			r.println("- " + name)
		}
	case command.Insert:
		r.println(r.style(okStyle, fmt.Sprintf("Record with ID=%d inserted into %q.", res.ID, res.Table)))
	case command.Select:
		r.table(res.Columns, res.Records)
	case command.Update:
		if res.Status == engine.StatusNoMatch {
			r.noMatch(res)
			return nil
		}
		r.println(r.style(okStyle, fmt.Sprintf("Updated %d record(s) in %q.", res.Count, res.Table)))
	case command.Delete:
		if res.Status == engine.StatusNoMatch {
			r.noMatch(res)
			return nil
		}
		r.println(r.style(okStyle, fmt.Sprintf("Deleted %d record(s) from %q.", res.Count, res.Table)))
	case command.Describe:
		r.println(r.style(headerStyle, "Table: ") + res.Table)
		r.println(r.style(headerStyle, "Columns: ") + joinColumns(res.Columns))
		r.println(r.style(headerStyle, "Records: ") + fmt.Sprint(res.Count))
	default:
		return fmt.Errorf("no rendering for command %q", c.Name())
	}
	return nil
}

// Error writes a failed command's error.
func (r *Renderer) Error(err error) {
	var pe *command.ParseError
	unknown := errors.As(err, &pe) && command.IsUnknown(err)

	if r.json {
		resp := ErrorResponse{Error: err.Error()}
		if pe != nil {
			resp.Command = pe.Command
		}
		_ = r.encode(resp)
		return
	}

	if unknown {
		r.println(r.style(errorStyle, fmt.Sprintf("Command %q not found.", pe.Command)) + ` Type "help" for the list of commands.`)
		return
	}
	r.println(r.style(errorStyle, "Error: ") + err.Error())
}

// Help writes the command reference.
func (r *Renderer) Help() {
	if r.json {
		_ = r.encode(command.Usage)
		return
	}
	for i, g := range helpGroups {
		if i > 0 {
			r.println("")
		}
		r.println(r.style(headerStyle, g.title))
		width := 0
		for _, e := range g.entries {
			width = max(width, len(command.Usage[e.keyword]))
		}
		for _, e := range g.entries {
			r.println("  " + PadRight(command.Usage[e.keyword], width) + "  " + r.style(mutedStyle, e.summary))
		}
	}
}

// Goodbye writes the session farewell.
func (r *Renderer) Goodbye() {
	if !r.json {
		r.println("Goodbye!")
	}
}

// Text writes a plain line in human mode.
func (r *Renderer) Text(line string) {
	if !r.json {
		r.println(line)
	}
}

type helpEntry struct {
	keyword string
	summary string
}

var helpGroups = []struct {
	title   string
	entries []helpEntry
}{
	{"Tables:", []helpEntry{
		{"create_table", "create a table (types: int, str, bool)"},
		{"drop_table", "drop a table and its records"},
		{"list_tables", "list all tables"},
		{"info", "show a table's columns and record count"},
	}},
	{"Records:", []helpEntry{
		{"insert", "add a record; ID is assigned automatically"},
		{"select", "show records"},
		{"update", "change matching records"},
		{"delete", "remove matching records"},
	}},
	{"General:", []helpEntry{
		{"help", "show this help"},
		{"exit", "leave the session"},
	}},
}

// NewResponse converts a result to its JSON form.
func NewResponse(res *engine.Result) Response {
	resp := Response{
		Command: res.Command.Name(),
		Status:  res.Status.String(),
		Table:   res.Table,
		Count:   res.Count,
		ID:      res.ID,
		Tables:  res.Tables,
	}
	if len(res.Columns) > 0 {
		resp.Columns = make([]string, len(res.Columns))
		for i, c := range res.Columns {
			resp.Columns[i] = c.String()
		}
	}
	if _, ok := res.Command.(command.Select); ok {
		resp.Records = res.Records
	}
	if _, ok := res.Command.(command.ListTables); ok {
		resp.Count = len(res.Tables)
	}
	return resp
}

func (r *Renderer) noMatch(res *engine.Result) {
	msg := fmt.Sprintf("No records in %q match.", res.Table)
	if res.Where != nil {
		msg = fmt.Sprintf("No records in %q match %s.", res.Table, res.Where)
	}
	r.println(r.style(mutedStyle, msg))
}

// table prints records in schema column order followed by a row count.
func (r *Renderer) table(cols []store.Column, records []store.Record) {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = lipgloss.Width(c.Name)
	}
	cells := make([][]string, len(records))
	for j, rec := range records {
		cells[j] = make([]string, len(cols))
		for i, c := range cols {
			v, _ := rec.Text(c.Name)
			v = truncate(v, MaxCellWidth)
			cells[j][i] = v
			widths[i] = max(widths[i], lipgloss.Width(v))
		}
	}

	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = PadRight(c.Name, widths[i])
	}
	r.println(r.style(headerStyle, strings.TrimRight(strings.Join(header, "  "), " ")))

	for _, row := range cells {
		line := make([]string, len(row))
		for i, v := range row {
			if cols[i].Type == store.TypeInt {
				line[i] = PadLeft(v, widths[i])
			} else {
				line[i] = PadRight(v, widths[i])
			}
		}
		r.println(strings.TrimRight(strings.Join(line, "  "), " "))
	}

	noun := "rows"
	if len(records) == 1 {
		noun = "row"
	}
	r.println(r.style(mutedStyle, fmt.Sprintf("(%d %s)", len(records), noun)))
}

func (r *Renderer) encode(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func (r *Renderer) println(line string) {
	fmt.Fprintln(r.w, line)
}

func joinColumns(cols []store.Column) string {
	specs := make([]string, len(cols))
	for i, c := range cols {
		specs[i] = c.String()
	}
	return strings.Join(specs, ", ")
}

// PadRight pads s with spaces on the right to width display columns.
func PadRight(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// PadLeft pads s with spaces on the left to width display columns.
func PadLeft(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return strings.Repeat(" ", width-w) + s
	}
	return s
}

// truncate shortens s to at most n display columns, ending in "...".
func truncate(s string, n int) string {
	if lipgloss.Width(s) <= n {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+3 > n {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

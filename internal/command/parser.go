package command

import (
	"strings"
)

// Parse converts one line of input into a Command.
// Keywords are case-sensitive. Unknown keywords yield a *ParseError wrapping
// ErrUnknownCommand.
func Parse(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, syntaxError("", "empty command")
	}

	args := strings.Fields(line)
	keyword := args[0]

	switch keyword {
	case "create_table":
		if len(args) < 3 {
			return nil, syntaxError(keyword, "not enough arguments, e.g. create_table users name:str age:int")
		}
		return CreateTable{Table: args[1], Columns: args[2:]}, nil

	case "drop_table":
		if len(args) != 2 {
			return nil, syntaxError(keyword, "specify exactly one table, e.g. drop_table users")
		}
		return DropTable{Table: args[1]}, nil

	case "list_tables":
		if len(args) != 1 {
			return nil, usageError(keyword)
		}
		return ListTables{}, nil

	case "info":
		if len(args) != 2 {
			return nil, usageError(keyword)
		}
		return Describe{Table: args[1]}, nil

	case "help":
		return Help{}, nil

	case "exit":
		return Exit{}, nil

	case "insert":
		return parseInsert(line)
	case "select":
		return parseSelect(line)
	case "update":
		return parseUpdate(line)
	case "delete":
		return parseDelete(line)
	}

	return nil, &ParseError{Command: keyword, Err: ErrUnknownCommand}
}

// parseInsert parses: insert into <table> values (<v1>, <v2>, ...)
func parseInsert(line string) (Command, error) {
	const keyword = "insert"
	rest, ok := strings.CutPrefix(line, "insert into ")
	if !ok {
		return nil, usageError(keyword)
	}

	tablePart, valuesPart, ok := cutUnquoted(rest, " values ")
	if !ok {
		return nil, usageError(keyword)
	}
	table, err := tableName(keyword, tablePart)
	if err != nil {
		return nil, err
	}

	values, err := parseValues(keyword, valuesPart)
	if err != nil {
		return nil, err
	}
	return Insert{Table: table, Values: values}, nil
}

// parseSelect parses: select from <table> [where <column> = <value>]
func parseSelect(line string) (Command, error) {
	const keyword = "select"
	rest, ok := strings.CutPrefix(line, "select from ")
	if !ok {
		return nil, usageError(keyword)
	}

	tablePart, wherePart, hasWhere := cutUnquoted(rest, " where ")
	table, err := tableName(keyword, tablePart)
	if err != nil {
		return nil, err
	}

	cmd := Select{Table: table}
	if hasWhere {
		where, err := parseClause(keyword, wherePart)
		if err != nil {
			return nil, err
		}
		cmd.Where = &where
	}
	return cmd, nil
}

// parseUpdate parses: update <table> set <column> = <value> where <column> = <value>
func parseUpdate(line string) (Command, error) {
	const keyword = "update"
	rest, ok := strings.CutPrefix(line, "update ")
	if !ok {
		return nil, usageError(keyword)
	}

	tablePart, afterSet, ok := cutUnquoted(rest, " set ")
	if !ok {
		return nil, usageError(keyword)
	}
	table, err := tableName(keyword, tablePart)
	if err != nil {
		return nil, err
	}

	setPart, wherePart, ok := cutUnquoted(afterSet, " where ")
	if !ok {
		return nil, syntaxError(keyword, "update requires a where clause, use: %s", Usage[keyword])
	}

	set, err := parseClause(keyword, setPart)
	if err != nil {
		return nil, err
	}
	where, err := parseClause(keyword, wherePart)
	if err != nil {
		return nil, err
	}
	return Update{Table: table, Set: set, Where: where}, nil
}

// parseDelete parses: delete from <table> where <column> = <value>
func parseDelete(line string) (Command, error) {
	const keyword = "delete"
	rest, ok := strings.CutPrefix(line, "delete from ")
	if !ok {
		return nil, usageError(keyword)
	}

	tablePart, wherePart, ok := cutUnquoted(rest, " where ")
	if !ok {
		return nil, syntaxError(keyword, "delete requires a where clause, use: %s", Usage[keyword])
	}
	table, err := tableName(keyword, tablePart)
	if err != nil {
		return nil, err
	}

	where, err := parseClause(keyword, wherePart)
	if err != nil {
		return nil, err
	}
	return Delete{Table: table, Where: where}, nil
}

// tableName checks that text is a single token.
func tableName(keyword, text string) (string, error) {
	name := strings.TrimSpace(text)
	if name == "" || strings.ContainsAny(name, " \t") {
		return "", usageError(keyword)
	}
	return name, nil
}

// parseClause parses a single `column = value` pair.
func parseClause(keyword, text string) (Clause, error) {
	text = strings.TrimSpace(text)
	col, val, ok := cutUnquoted(text, "=")
	if !ok {
		return Clause{}, syntaxError(keyword, "malformed clause %q: expected <column> = <value>", text)
	}
	if _, _, again := cutUnquoted(val, "="); again {
		return Clause{}, syntaxError(keyword, "malformed clause %q: expected a single <column> = <value>", text)
	}

	col = strings.TrimSpace(col)
	if col == "" || strings.ContainsAny(col, " \t") {
		return Clause{}, syntaxError(keyword, "malformed clause %q: expected <column> = <value>", text)
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return Clause{}, syntaxError(keyword, "malformed clause %q: missing value", text)
	}
	value, err := unquote(keyword, val)
	if err != nil {
		return Clause{}, err
	}
	return Clause{Column: col, Value: value}, nil
}

// parseValues parses a parenthesized, comma-separated value list.
func parseValues(keyword, text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "(") || !strings.HasSuffix(text, ")") || len(text) < 2 {
		return nil, syntaxError(keyword, "malformed value list %q: expected (<value1>, <value2>, ...)", text)
	}

	inner := text[1 : len(text)-1]
	if strings.ContainsAny(stripQuoted(inner), "()") {
		return nil, syntaxError(keyword, "malformed value list %q: unbalanced brackets", text)
	}
	if strings.TrimSpace(inner) == "" {
		return []string{}, nil
	}

	parts := splitUnquoted(inner, ',')
	values := make([]string, len(parts))
	for i, p := range parts {
		v, err := unquote(keyword, strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// unquote strips one pair of matching surrounding quotes.
func unquote(keyword, v string) (string, error) {
	if v == "" || (v[0] != '"' && v[0] != '\'') {
		return v, nil
	}
	if len(v) < 2 || v[len(v)-1] != v[0] {
		return "", syntaxError(keyword, "unterminated quote in %s", v)
	}
	return v[1 : len(v)-1], nil
}

// opensQuote reports whether a quote at s[i] starts a quoted token.
// Quotes inside a bare word (O'Brien) are literal.
func opensQuote(s string, i int) bool {
	if s[i] != '"' && s[i] != '\'' {
		return false
	}
	return i == 0 || strings.IndexByte(" \t=(,", s[i-1]) >= 0
}

// scanUnquoted calls visit for every byte offset outside quoted tokens.
// visit returns false to stop the scan.
func scanUnquoted(s string, visit func(i int) bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		switch {
		case quote != 0:
			if s[i] == quote {
				quote = 0
			}
		case opensQuote(s, i):
			quote = s[i]
		default:
			if !visit(i) {
				return
			}
		}
	}
}

// cutUnquoted is strings.Cut ignoring occurrences of sep inside quotes.
func cutUnquoted(s, sep string) (before, after string, found bool) {
	idx := -1
	scanUnquoted(s, func(i int) bool {
		if strings.HasPrefix(s[i:], sep) {
			idx = i
			return false
		}
		return true
	})
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

// splitUnquoted splits s on sep bytes that are not inside quotes.
func splitUnquoted(s string, sep byte) []string {
	var parts []string
	start := 0
	scanUnquoted(s, func(i int) bool {
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
		return true
	})
	return append(parts, s[start:])
}

// stripQuoted returns s with quoted tokens removed.
func stripQuoted(s string) string {
	var sb strings.Builder
	scanUnquoted(s, func(i int) bool {
		sb.WriteByte(s[i])
		return true
	})
	return sb.String()
}

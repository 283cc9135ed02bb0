package database

import (
	"strings"
	"unicode"
)

// ClassifyRisk flags statements whose leading keyword is on the destructive
// denylist. The classification is advisory only: callers attach the warning
// to the result and execute the statement regardless. Multi-statement
// scripts are classified by their first statement.
func ClassifyRisk(stmt string) (bool, string) {
	words := sqlWords(stmt)
	if len(words) == 0 {
		return false, ""
	}
	switch words[0] {
	case "DROP":
		return true, "DROP permanently removes database objects and cannot be undone"
	case "TRUNCATE":
		return true, "TRUNCATE removes all rows from the table and cannot be undone"
	case "ALTER":
		return true, "ALTER changes the schema of a database object"
	case "DELETE":
		if !containsWord(words, "WHERE") {
			return true, "DELETE without a WHERE clause removes every row in the table"
		}
		return true, "DELETE removes rows from the table"
	case "UPDATE":
		if !containsWord(words, "WHERE") {
			return true, "UPDATE without a WHERE clause modifies every row in the table"
		}
	}
	return false, ""
}

// resultSetPrefixes lists the statement prefixes each backend answers with a
// row set rather than an affected-row count.
var resultSetPrefixes = map[BackendType][]string{
	BackendMySQL:    {"SELECT", "SHOW", "DESCRIBE", "EXPLAIN"},
	BackendPostgres: {"SELECT", "WITH", "SHOW", "EXPLAIN"},
	BackendMSSQL:    {"SELECT", "EXEC", "SP_", "WITH"},
	BackendDM8:      {"SELECT", "WITH", "SHOW", "DESCRIBE", "EXPLAIN"},
	BackendSQLite:   {"SELECT", "PRAGMA", "EXPLAIN"},
}

func returnsRows(backend BackendType, stmt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(stmt))
	for _, prefix := range resultSetPrefixes[backend] {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// sqlWords splits a statement into upper-cased identifier-ish words,
// ignoring punctuation so "DELETE FROM t;" yields DELETE, FROM, T.
func sqlWords(stmt string) []string {
	return strings.FieldsFunc(strings.ToUpper(stmt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

func containsWord(words []string, want string) bool {
	for _, w := range words {
		if w == want {
			return true
		}
	}
	return false
}

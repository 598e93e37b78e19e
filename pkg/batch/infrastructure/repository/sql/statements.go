// Package sql implements the coordination stores on a relational table: resume points,
// process activation flags and stop requests.
package sql

import (
	"fmt"
	"regexp"

	"github.com/tigerroll/batchcore/pkg/batch/support/util/exception"
)

const (
	flagOn  = "1"
	flagOff = "0"
)

// TableErrorClassifier tells whether a statement failed because its table does not exist.
// database.DBConnection implements it.
type TableErrorClassifier interface {
	IsTableNotExistError(err error) bool
}

// missingTableError returns a configuration error when err reports that table does not
// exist, and nil otherwise.
func missingTableError(classifier TableErrorClassifier, module, table string, err error) error {
	if classifier == nil || !classifier.IsTableNotExistError(err) {
		return nil
	}
	return exception.NewConfigurationError(module,
		"table [%s] does not exist. run the migrate command to create it. cause=[%v].", table, err)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// validateIdentifiers checks that the configured table and column names are plain SQL
// identifiers, since they are spliced into statements.
func validateIdentifiers(module string, names map[string]string) error {
	for property, name := range names {
		if name == "" {
			return exception.NewConfigurationError(module, "%s must be set.", property)
		}
		if !identifierPattern.MatchString(name) {
			return exception.NewConfigurationError(module, "%s is not a valid identifier. value=[%s].", property, name)
		}
	}
	return nil
}

func selectResumePointSQL(table, requestIDColumn, resumePointColumn string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", resumePointColumn, table, requestIDColumn)
}

func updateResumePointSQL(table, requestIDColumn, resumePointColumn string) string {
	return fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table, resumePointColumn, requestIDColumn)
}

// switchFlagSQL is a compare-and-swap on a flag column: it only matches when the flag
// currently holds the opposite value.
func switchFlagSQL(table, idColumn, flagColumn, from, to string) string {
	return fmt.Sprintf("UPDATE %s SET %s = '%s' WHERE %s = ? AND %s = '%s'",
		table, flagColumn, to, idColumn, flagColumn, from)
}

func selectHaltedSQL(table, requestIDColumn, haltFlagColumn string) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? AND %s = ?",
		requestIDColumn, table, requestIDColumn, haltFlagColumn)
}

func updateFlagSQL(table, idColumn, flagColumn string) string {
	return fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s = ?", table, flagColumn, idColumn)
}

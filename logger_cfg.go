package bakery

import (
	"github.com/denismitr/bakery/internal/logger"
)

// UseColorLogger prints colored progress to p, statements and debug
// messages only when asked for
func UseColorLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return useLogger(logger.NewColorLogger(p, printSql, printDebug))
}

// UseLogger is UseColorLogger without colors, for files and CI output
func UseLogger(p logger.Printer, printSql, printDebug bool) OptionFunc {
	return useLogger(logger.NewBWLogger(p, printSql, printDebug))
}

// UseNullLogger silences the migrator, it is the default
func UseNullLogger() OptionFunc {
	return useLogger(&logger.NullLogger{})
}

func useLogger(lg logger.Logger) OptionFunc {
	return func(m *Migrator) error {
		m.lg = lg
		return nil
	}
}

package logger

import (
	"fmt"
	"strings"

	"github.com/logrusorgru/aurora/v3"
)

const prefix = "Bakery"

type Printer interface {
	Output(calldepth int, s string) error
}

type Logger interface {
	Successf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Error(err error)
	SQL(query string, args ...interface{})
}

type paint func(arg interface{}) aurora.Value

// palette colors each kind of message, a nil palette prints plain text
type palette struct {
	success paint
	debug   paint
	err     paint
	sql     paint
}

var colors = &palette{
	success: aurora.Green,
	debug:   aurora.Yellow,
	err:     aurora.Red,
	sql: func(arg interface{}) aurora.Value {
		return aurora.Gray(15, arg)
	},
}

// output implements Logger for both colored and black and white loggers
type output struct {
	printer Printer
	debug   bool
	sql     bool
	colors  *palette
}

type ColoredLogger struct {
	output
}

type BWLogger struct {
	output
}

var _ Logger = (*ColoredLogger)(nil)
var _ Logger = (*BWLogger)(nil)

func NewColorLogger(p Printer, sql, debug bool) *ColoredLogger {
	return &ColoredLogger{output{printer: p, sql: sql, debug: debug, colors: colors}}
}

func NewBWLogger(p Printer, sql, debug bool) *BWLogger {
	return &BWLogger{output{printer: p, sql: sql, debug: debug}}
}

func (o *output) Successf(format string, args ...interface{}) {
	o.print(o.pick(func(p *palette) paint { return p.success }), prefix+": "+fmt.Sprintf(format, args...))
}

func (o *output) Debugf(format string, args ...interface{}) {
	if !o.debug {
		return
	}

	o.print(o.pick(func(p *palette) paint { return p.debug }), prefix+" debug: "+fmt.Sprintf(format, args...))
}

func (o *output) Error(err error) {
	o.print(o.pick(func(p *palette) paint { return p.err }), prefix+" error: "+err.Error())
}

func (o *output) SQL(query string, args ...interface{}) {
	if !o.sql {
		return
	}

	o.print(o.pick(func(p *palette) paint { return p.sql }), formatSQL(query, args))
}

func (o *output) pick(fn func(p *palette) paint) paint {
	if o.colors == nil {
		return nil
	}

	return fn(o.colors)
}

func (o *output) print(color paint, msg string) {
	if color != nil {
		msg = color(msg).String()
	}

	_ = o.printer.Output(3, msg)
}

func formatSQL(query string, args []interface{}) string {
	var b strings.Builder
	b.WriteString(prefix + " running sql: ")
	b.WriteString(query)

	if len(args) == 0 {
		return b.String()
	}

	params := make([]string, 0, len(args))
	for i := range args {
		params = append(params, fmt.Sprintf("{%#v}", args[i]))
	}

	b.WriteString("\nquery parameters: ")
	b.WriteString(strings.Join(params, ", "))

	return b.String()
}

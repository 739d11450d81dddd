package source

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

const (
	dependsDirective        = "-- depends:"
	statementBeginDirective = "-- statement begin"
	statementEndDirective   = "-- statement end"

	maxScriptLine = 10 * 1024 * 1024
)

var dollarQuote = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)?\$`)

// parseScript extracts dependency directives and splits the rest into
// statements terminated by a semicolon at the end of a line.
//
// A semicolon does not end a statement inside a dollar quoted body
// ($$ ... $$ or $tag$ ... $tag$) or between "-- statement begin" and
// "-- statement end" lines, which keep the enclosed block as one statement.
func parseScript(contents string) ([]string, []string, error) {
	requires := []string{}
	var statements []string
	var current strings.Builder

	flush := func() {
		if stmt := strings.TrimSpace(current.String()); stmt != "" {
			statements = append(statements, stmt)
		}
		current.Reset()
	}

	var inBlock bool
	var openQuote string

	scanner := bufio.NewScanner(strings.NewReader(contents))
	scanner.Buffer(make([]byte, 0, 64*1024), maxScriptLine)

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		directive := strings.ToLower(trimmed)

		if openQuote == "" {
			switch {
			case strings.HasPrefix(directive, dependsDirective):
				for _, dep := range strings.Split(trimmed[len(dependsDirective):], ",") {
					if dep = strings.TrimSpace(dep); dep != "" {
						requires = append(requires, dep)
					}
				}
				continue
			case directive == statementBeginDirective:
				if inBlock {
					return nil, nil, errors.New("nested statement begin")
				}
				flush()
				inBlock = true
				continue
			case directive == statementEndDirective:
				if !inBlock {
					return nil, nil, errors.New("statement end without statement begin")
				}
				flush()
				inBlock = false
				continue
			}
		}

		if trimmed == "" && current.Len() == 0 {
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)

		openQuote = scanDollarQuotes(line, openQuote)

		if !inBlock && openQuote == "" && strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "could not read script")
	}

	if inBlock {
		return nil, nil, errors.New("statement begin without statement end")
	}

	if openQuote != "" {
		return nil, nil, errors.Errorf("unterminated %s quoted body", openQuote)
	}

	flush()

	return requires, statements, nil
}

// scanDollarQuotes returns the dollar quote still open at the end of line,
// open is the quote open at its start
func scanDollarQuotes(line, open string) string {
	for _, loc := range dollarQuote.FindAllStringIndex(line, -1) {
		tag := line[loc[0]:loc[1]]
		switch {
		case open == "":
			open = tag
		case open == tag:
			open = ""
		}
	}

	return open
}

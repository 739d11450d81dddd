package cli

import (
	"io"
	"strconv"

	"github.com/denismitr/bakery"
	"github.com/denismitr/bakery/internal/source"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

const statusTimeFormat = "2006-01-02 15:04:05"

var statusHeader = []string{"Migration", "Name", "Batch", "Migrated at"}

func statusRows(status *bakery.Status) [][]string {
	rows := make([][]string, 0, len(status.Installed)+len(status.Pending))

	stale := make(map[string]bool, len(status.Stale))
	for _, id := range status.Stale {
		stale[id] = true
	}

	for _, r := range status.Installed {
		batch := strconv.Itoa(int(r.Batch))
		if stale[r.Identifier] {
			batch += " (stale)"
		}

		rows = append(rows, []string{
			r.Identifier,
			source.HumanizeKey(r.Identifier),
			batch,
			r.MigratedAt.Format(statusTimeFormat),
		})
	}

	for _, id := range status.Pending {
		rows = append(rows, []string{id, source.HumanizeKey(id), "pending", ""})
	}

	return rows
}

func renderTable(header []string, data [][]string, w io.Writer) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(
			tw.Rendition{
				Borders: tw.BorderNone,
				Symbols: tw.NewSymbols(tw.StyleASCII),
				Settings: tw.Settings{
					Lines: tw.Lines{
						ShowHeaderLine: tw.Off,
						ShowFooterLine: tw.Off,
						ShowTop:        tw.Off,
						ShowBottom:     tw.Off,
					},
					Separators: tw.Separators{
						ShowHeader:     tw.Off,
						ShowFooter:     tw.Off,
						BetweenRows:    tw.Off,
						BetweenColumns: tw.Off,
					},
				},
			},
		)),
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Row: tw.CellConfig{
				Formatting:   tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:    tw.CellAlignment{Global: tw.AlignLeft},
				ColMaxWidths: tw.CellWidth{Global: 60},
			},
		}),
	)

	table.Header(header)
	if err := table.Bulk(data); err != nil {
		return err
	}

	return table.Render()
}

package mfgdashctl

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"

	"github.com/mfgdash/mfgdash/internal/table"
)

const defaultWidth = 100

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type renderer struct {
	pretty bool
	width  int
}

func (r renderer) title(text string) string {
	if !r.pretty {
		return text
	}
	return titleStyle.Render(text)
}

// table renders cells as received from the server. Plain output uses the
// same right-aligned layout the server sends to the model.
func (r renderer) table(headers []string, rows [][]string) string {
	if !r.pretty {
		values := make([][]any, len(rows))
		for i, row := range rows {
			values[i] = make([]any, len(row))
			for j, cell := range row {
				values[i][j] = cell
			}
		}
		return table.Table{Columns: headers, Rows: values}.Text()
	}

	t := lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}

func (r renderer) markdown(text string) string {
	if !r.pretty {
		return strings.TrimSpace(text)
	}
	width := r.width
	if width <= 0 {
		width = defaultWidth
	}
	md, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return strings.TrimSpace(text)
	}
	out, err := md.Render(text)
	if err != nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimRight(out, "\n")
}

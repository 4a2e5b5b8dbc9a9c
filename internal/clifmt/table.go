package clifmt

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	defaultTableWidth     = 100
	defaultMinDetailWidth = 36
)

// TableOptions describes a table whose last column wraps to the terminal
// width. Leading columns are padded to their widest cell.
type TableOptions struct {
	Title          string
	Headers        []string
	Rows           [][]string
	EmptyText      string
	DefaultWidth   int
	MinDetailWidth int
}

func PrintTable(out io.Writer, opts TableOptions) {
	if out == nil {
		out = os.Stdout
	}
	if title := strings.TrimSpace(opts.Title); title != "" {
		fmt.Fprintln(out, Headerf("%s (%d)", title, len(opts.Rows)))
	}
	if len(opts.Rows) == 0 {
		emptyText := strings.TrimSpace(opts.EmptyText)
		if emptyText == "" {
			emptyText = "No entries."
		}
		fmt.Fprintln(out, Warn(emptyText))
		return
	}

	cols := len(opts.Headers)
	for _, row := range opts.Rows {
		if len(row) > cols {
			cols = len(row)
		}
	}
	if cols == 0 {
		return
	}
	headers := padCells(opts.Headers, cols)

	widths := make([]int, cols-1)
	for i := range widths {
		widths[i] = utf8.RuneCountInString(headers[i])
		for _, row := range opts.Rows {
			if i < len(row) {
				if w := utf8.RuneCountInString(row[i]); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}
	prefixWidth := 0
	for _, w := range widths {
		prefixWidth += w + 2
	}
	detailWidth := tableDetailWidth(out, prefixWidth, opts.DefaultWidth, opts.MinDetailWidth)

	headerCells := make([]string, 0, cols)
	ruleCells := make([]string, 0, cols)
	for i, w := range widths {
		headerCells = append(headerCells, Key(padRightRunes(headers[i], w)))
		ruleCells = append(ruleCells, Dim(strings.Repeat("-", w)))
	}
	headerCells = append(headerCells, Key(headers[cols-1]))
	ruleCells = append(ruleCells, Dim(strings.Repeat("-", detailWidth)))
	fmt.Fprintln(out, strings.Join(headerCells, "  "))
	fmt.Fprintln(out, strings.Join(ruleCells, "  "))

	for _, raw := range opts.Rows {
		row := padCells(raw, cols)
		lead := make([]string, 0, cols-1)
		for i, w := range widths {
			cell := padRightRunes(row[i], w)
			if i == 0 {
				cell = Success(cell)
			}
			lead = append(lead, cell)
		}
		lines := wrapTextRunes(row[cols-1], detailWidth)
		fmt.Fprintln(out, joinRow(lead, lines[0]))
		blank := strings.Repeat(" ", prefixWidth)
		for _, line := range lines[1:] {
			fmt.Fprintln(out, blank+line)
		}
	}
}

func joinRow(lead []string, last string) string {
	if len(lead) == 0 {
		return last
	}
	return strings.Join(lead, "  ") + "  " + last
}

func padCells(cells []string, n int) []string {
	out := make([]string, n)
	copy(out, cells)
	return out
}

func tableDetailWidth(out io.Writer, prefixWidth, defaultWidth, minDetailWidth int) int {
	if defaultWidth <= 0 {
		defaultWidth = defaultTableWidth
	}
	if minDetailWidth <= 0 {
		minDetailWidth = defaultMinDetailWidth
	}

	width := defaultWidth
	if file, ok := out.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		if terminalWidth, _, err := term.GetSize(int(file.Fd())); err == nil && terminalWidth > 0 {
			width = terminalWidth
		}
	}

	detailWidth := width - prefixWidth
	if detailWidth < minDetailWidth {
		detailWidth = minDetailWidth
	}
	return detailWidth
}

func padRightRunes(s string, width int) string {
	missing := width - utf8.RuneCountInString(s)
	if missing <= 0 {
		return s
	}
	return s + strings.Repeat(" ", missing)
}

func wrapTextRunes(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}
	if width <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	current := ""
	for _, word := range words {
		for utf8.RuneCountInString(word) > width {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			runes := []rune(word)
			lines = append(lines, string(runes[:width]))
			word = string(runes[width:])
		}
		switch {
		case current == "":
			current = word
		case utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= width:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}

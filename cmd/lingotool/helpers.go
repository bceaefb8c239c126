package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"lingotool/internal/config"
	"lingotool/internal/lang"
)

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// loadEntriesFile reads a JSON object of translation key/value pairs from path.
func loadEntriesFile(path string) (lang.Entries, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read entries file %q: %w", path, err)
	}
	entries, err := lang.ParseEntries(data)
	if err != nil {
		return nil, fmt.Errorf("parse entries file %q: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("entries file %q contains no translations", path)
	}
	return entries, nil
}

func shortHash(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

// printRows renders a bordered table on terminals and tab-separated lines
// when output is piped.
func printRows(out io.Writer, headers []string, rows [][]string, rightCols ...int) {
	if isTerminal(out) {
		fmt.Fprintln(out, renderTable(headers, rows, rightCols...))
		return
	}
	fmt.Fprintln(out, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(out, strings.Join(row, "\t"))
	}
}

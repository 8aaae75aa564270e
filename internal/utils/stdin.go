package utils

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// maxLineSize bounds a single JSONL record read from stdin
const maxLineSize = 16 * 1024 * 1024

// ReadLines reads newline-separated records from in, dropping blank lines.
// A terminal on stdin yields no lines rather than blocking for input.
func ReadLines(in io.Reader) ([]string, error) {
	if f, ok := in.(*os.File); ok {
		stat, err := f.Stat()
		if err != nil {
			return nil, err
		}
		if (stat.Mode() & os.ModeCharDevice) != 0 {
			return nil, nil
		}
	}

	var lines []string
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

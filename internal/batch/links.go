package batch

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// A Line is a non-comment line from a links file.
type Line struct {
	Number int
	Text   string
}

// ReadLinks reads a newline-delimited links file. Blank lines and lines starting with "#" are ignored; every
// other line is returned, valid URL or not, so that bad lines are reported rather than dropped.
func ReadLinks(r io.Reader) ([]Line, error) {
	var lines []Line
	scanner := bufio.NewScanner(r)
	number := 0
	for scanner.Scan() {
		number++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		lines = append(lines, Line{Number: number, Text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}
	return lines, nil
}

// ReadLinksFile is ReadLinks on the named file.
func ReadLinksFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadLinks(f)
}

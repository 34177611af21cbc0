package worklist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// ErrBadDirection reports a label component without an AP or PA suffix.
var ErrBadDirection = errors.New("malformed direction tag")

// Item is one line of a WorkItem list: a session directory, the "@"-joined
// scan labels to extract, and the model file it was generated from.
type Item struct {
	PID        string
	Label      string
	Provenance string
	Source     string
	Line       int
}

// Direction is one scan of a WorkItem label.
type Direction struct {
	Label string
	Tag   string
}

var directionPattern = regexp.MustCompile(`^.*_(AP|PA)$`)

// Directions splits the compound label and extracts each direction tag.
func (it Item) Directions() ([]Direction, error) {
	parts := strings.Split(it.Label, "@")
	out := make([]Direction, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		m := directionPattern.FindStringSubmatch(part)
		if m == nil {
			return nil, fmt.Errorf("%w %q in label %q", ErrBadDirection, part, it.Label)
		}
		out = append(out, Direction{Label: part, Tag: m[1]})
	}
	return out, nil
}

// String renders the item as a list line.
func (it Item) String() string {
	return it.PID + " " + it.Label + " " + it.Provenance
}

// Load reads every list file fully before returning. Blank lines and lines
// starting with # are skipped; any other line must have exactly three
// whitespace-separated columns.
func Load(paths ...string) ([]Item, error) {
	var items []Item
	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open work list: %w", err)
		}
		parsed, err := parse(file, path)
		file.Close()
		if err != nil {
			return nil, err
		}
		items = append(items, parsed...)
	}
	return items, nil
}

func parse(r io.Reader, source string) ([]Item, error) {
	var items []Item
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s:%d: expected 3 columns, got %d", source, lineNo, len(fields))
		}
		items = append(items, Item{
			PID:        fields[0],
			Label:      fields[1],
			Provenance: fields[2],
			Source:     source,
			Line:       lineNo,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return items, nil
}

// Write emits items in list-file form.
func Write(w io.Writer, items []Item) error {
	bw := bufio.NewWriter(w)
	for _, it := range items {
		if _, err := bw.WriteString(it.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Partition deals items round-robin into at most n disjoint partitions whose
// union is items. n < 1 is treated as 1; empty partitions are dropped.
func Partition(items []Item, n int) [][]Item {
	if n < 1 {
		n = 1
	}
	if n > len(items) {
		n = len(items)
	}
	parts := make([][]Item, n)
	for i, it := range items {
		parts[i%n] = append(parts[i%n], it)
	}
	return parts
}

// IndexFromEnv reads a non-negative scheduler array index from env var name.
func IndexFromEnv(name string) (int, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("array index: %s is not set", name)
	}
	idx, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("array index: parse %s=%q: %w", name, raw, err)
	}
	if idx < 0 {
		return 0, fmt.Errorf("array index: %s=%d must not be negative", name, idx)
	}
	return idx, nil
}

// Select returns the single-item partition for an array index, matching one
// scheduler instance per list line.
func Select(items []Item, index int) ([]Item, error) {
	if index < 0 || index >= len(items) {
		return nil, fmt.Errorf("array index %d out of range for %d work items", index, len(items))
	}
	return []Item{items[index]}, nil
}

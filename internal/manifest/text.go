package manifest

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// maxLineSize bounds a single env or lines entry.
const maxLineSize = 1 << 20

func newScanner(data []byte) *bufio.Scanner {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// scanErr adds the position to a scanner failure; lineNo is the last line
// read successfully.
func scanErr(scanner *bufio.Scanner, lineNo int) error {
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("line %d: %w", lineNo+1, err)
	}
	return nil
}

// envCodec handles dotenv files. KEY=VALUE lines are keyed values; comment
// lines are root-level registrations so a shared header collapses instead
// of repeating.
type envCodec struct{}

func (envCodec) decode(data []byte) ([]Item, error) {
	var items []Item
	scanner := newScanner(data)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "#"):
			items = append(items, Item{Kind: KindRegistration, Value: line})
		default:
			key, value, ok := strings.Cut(line, "=")
			key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
			if !ok || key == "" {
				return nil, fmt.Errorf("line %d: expected KEY=VALUE, got %q", lineNo, line)
			}
			items = append(items, Item{Kind: KindValue, Path: []string{key}, Value: strings.TrimSpace(value)})
		}
	}
	if err := scanErr(scanner, lineNo); err != nil {
		return nil, err
	}
	return items, nil
}

func (envCodec) encode(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	for _, it := range items {
		switch it.Kind {
		case KindValue:
			fmt.Fprintf(&buf, "%s=%s\n", it.Path[0], it.Value)
		case KindRegistration:
			buf.WriteString(it.Value + "\n")
		}
	}
	return buf.Bytes(), nil
}

// linesCodec treats every non-blank line as a registration entry: ignore
// files, requirement lists, or a TypeScript barrel such as
//
//	export { AuthModule } from './auth/auth.module';
//
// Identical lines collapse; everything else is kept in order.
type linesCodec struct{}

func (linesCodec) decode(data []byte) ([]Item, error) {
	var items []Item
	scanner := newScanner(data)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, Item{Kind: KindRegistration, Value: line})
	}
	if err := scanErr(scanner, lineNo); err != nil {
		return nil, err
	}
	return items, nil
}

func (linesCodec) encode(items []Item) ([]byte, error) {
	var buf bytes.Buffer
	for _, it := range items {
		if it.Kind == KindRegistration {
			buf.WriteString(it.Value + "\n")
		}
	}
	return buf.Bytes(), nil
}

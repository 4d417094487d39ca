package stream

import "strings"

// Framer accumulates decoded text and emits complete newline-delimited
// records. Text between calls is buffered until its terminating newline
// arrives, so record boundaries are independent of chunk boundaries.
type Framer struct {
	// rest holds the partial record carried over between Push calls.
	rest string
}

// Push appends text and returns every record completed by it, in order,
// without their trailing newline. Records are split on '\n' only; a '\r'
// before the newline is preserved and stripped later by the parser's
// whitespace trim.
func (f *Framer) Push(text string) []string {
	if text == "" {
		return nil
	}

	work := f.rest + text
	var records []string
	for {
		i := strings.IndexByte(work, '\n')
		if i < 0 {
			break
		}
		records = append(records, work[:i])
		work = work[i+1:]
	}
	f.rest = work
	return records
}

// Flush returns the final unterminated record, if any. A remainder that is
// blank or whitespace-only is discarded rather than surfaced as a record.
func (f *Framer) Flush() (string, bool) {
	rest := f.rest
	f.rest = ""
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}

package dataset

import (
	"bytes"
)

// SplitMbox splits an mbox file into raw messages. Each message starts at a
// "From " line at the beginning of a line, and ">From " quoting in bodies is
// undone.
func SplitMbox(data []byte) [][]byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))

	var (
		messages [][]byte
		current  []byte
		started  bool
	)
	flush := func() {
		if started && len(bytes.TrimSpace(current)) > 0 {
			messages = append(messages, current)
		}
		current = nil
	}

	for _, line := range bytes.SplitAfter(data, []byte("\n")) {
		if bytes.HasPrefix(line, []byte("From ")) {
			flush()
			started = true
			continue
		}
		if !started {
			continue
		}
		if bytes.HasPrefix(line, []byte(">From ")) {
			line = line[1:]
		}
		current = append(current, line...)
	}
	flush()

	return messages
}

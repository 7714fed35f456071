package message

import "bytes"

// Framer reassembles newline-terminated lines from a byte stream that may be
// split at arbitrary points. It is not safe for concurrent use; each
// connection owns one.
type Framer struct {
	pending []byte
}

// Feed appends p to the pending buffer and returns every line it completes, in
// order, without the terminating "\n" and with one trailing "\r" removed. Any
// incomplete suffix is kept for the next call.
func (f *Framer) Feed(p []byte) []string {
	f.pending = append(f.pending, p...)

	var lines []string
	rest := f.pending
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		line := rest[:i]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
		rest = rest[i+1:]
	}

	// Compact so the buffer does not grow with every line consumed.
	f.pending = append(f.pending[:0], rest...)
	return lines
}

// Buffered returns the number of bytes waiting for a newline.
func (f *Framer) Buffered() int {
	return len(f.pending)
}

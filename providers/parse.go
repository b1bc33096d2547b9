package providers

import "bytes"

// Incremental wire parsers. Each holds only a byte buffer plus a small state
// enum, and Feed returns the complete units found in the chunk. A chunk
// boundary may fall anywhere, including mid-object; incomplete trailing input
// stays buffered until the next Feed.

// sseParser extracts the payload of `data:` lines from an SSE body
// (OpenAI-compatible and Anthropic-style streams). Non-data lines and
// comments are dropped.
type sseParser struct {
	buf []byte
}

func (p *sseParser) Feed(chunk []byte) [][]byte {
	p.buf = append(p.buf, chunk...)

	var events [][]byte
	for {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			return events
		}
		line := bytes.TrimRight(p.buf[:nl], "\r")
		p.buf = p.buf[nl+1:]

		if !bytes.HasPrefix(line, []byte("data:")) {
			continue
		}
		data := line[len("data:"):]
		if len(data) > 0 && data[0] == ' ' {
			data = data[1:]
		}
		if len(data) == 0 {
			continue
		}
		events = append(events, append([]byte(nil), data...))
	}
}

// lineParser returns complete non-blank lines: the Cohere stream is raw
// newline-delimited JSON with no `data:` framing.
type lineParser struct {
	buf []byte
}

func (p *lineParser) Feed(chunk []byte) [][]byte {
	p.buf = append(p.buf, chunk...)

	var events [][]byte
	for {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			return events
		}
		line := bytes.TrimSpace(p.buf[:nl])
		p.buf = p.buf[nl+1:]
		if len(line) == 0 {
			continue
		}
		events = append(events, append([]byte(nil), line...))
	}
}

type braceState int

const (
	awaitingObject braceState = iota
	inObject
)

// braceParser recovers top-level JSON objects from Gemini's incremental
// array-of-objects stream, which has no line-delimiter guarantee. It tracks
// brace depth across chunk boundaries, ignoring braces inside JSON strings.
type braceParser struct {
	buf      []byte
	state    braceState
	depth    int
	start    int
	inString bool
	escaped  bool
	pos      int
}

func (p *braceParser) Feed(chunk []byte) [][]byte {
	p.buf = append(p.buf, chunk...)

	var events [][]byte
	for ; p.pos < len(p.buf); p.pos++ {
		c := p.buf[p.pos]

		if p.state == awaitingObject {
			if c == '{' {
				p.state = inObject
				p.depth = 1
				p.start = p.pos
				p.inString = false
				p.escaped = false
			}
			// Array punctuation and whitespace between objects is skipped.
			continue
		}

		if p.inString {
			switch {
			case p.escaped:
				p.escaped = false
			case c == '\\':
				p.escaped = true
			case c == '"':
				p.inString = false
			}
			continue
		}

		switch c {
		case '"':
			p.inString = true
		case '{':
			p.depth++
		case '}':
			p.depth--
			if p.depth == 0 {
				obj := append([]byte(nil), p.buf[p.start:p.pos+1]...)
				events = append(events, obj)
				p.state = awaitingObject
			}
		}
	}

	// Discard consumed input; keep an in-progress object from its start.
	keep := p.pos
	if p.state == inObject {
		keep = p.start
	}
	p.buf = p.buf[keep:]
	p.pos -= keep
	p.start -= keep
	return events
}

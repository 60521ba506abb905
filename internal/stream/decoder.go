package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"iter"
	"strings"
)

const prefix = "data: "

// maxFrameSize bounds a single frame. Spec payloads are small; anything
// larger indicates a broken producer.
const maxFrameSize = 1 << 20

// Decoder turns a raw byte stream into a sequence of events.
//
// Frames arrive split at arbitrary chunk boundaries; the decoder reassembles
// them so the yielded sequence depends only on the bytes, never on how they
// were chunked. Lines without the "data: " prefix and lines whose payload is
// not valid JSON are skipped. A done event terminates the sequence even if
// the producer keeps writing. An error event is yielded like any other; the
// caller decides whether it is fatal.
type Decoder struct {
	sc       *bufio.Scanner
	finished bool
	err      error
}

// NewDecoder wraps r. The decoder owns no goroutines; it reads lazily from
// Next or All on the caller's goroutine.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxFrameSize)
	return &Decoder{sc: sc}
}

// Next returns the next event. It returns io.EOF after a done event or when
// the underlying stream is exhausted, and any transport error otherwise.
func (d *Decoder) Next() (Event, error) {
	if d.finished {
		if d.err != nil {
			return Event{}, d.err
		}
		return Event{}, io.EOF
	}
	for d.sc.Scan() {
		line := d.sc.Text()
		if !strings.HasPrefix(line, prefix) {
			continue
		}
		e, ok := parseFrame(strings.TrimPrefix(line, prefix))
		if !ok {
			continue
		}
		if e.Type == EventDone {
			d.finished = true
		}
		return e, nil
	}
	d.finished = true
	if err := d.sc.Err(); err != nil {
		d.err = err
		return Event{}, err
	}
	return Event{}, io.EOF
}

// All iterates the remaining events. The error is non-nil only for the
// final element, and only when the stream failed mid-flight; a cleanly
// terminated stream just ends the iteration.
func (d *Decoder) All() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			e, err := d.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(Event{}, err)
				return
			}
			if !yield(e, nil) {
				return
			}
		}
	}
}

func parseFrame(payload string) (Event, bool) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, false
	}
	if e.Type == "" {
		return Event{}, false
	}
	return e, true
}

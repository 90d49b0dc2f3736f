// pattern: Functional Core

package snap

import (
	"bytes"
	"io"

	"github.com/charmbracelet/x/ansi"
)

// transcriptWriter mirrors agent output into a log with terminal escape
// sequences stripped, so transcripts stay greppable. Output is buffered
// per line because escape sequences can straddle write boundaries.
type transcriptWriter struct {
	dst io.Writer
	buf bytes.Buffer
}

func newTranscriptWriter(dst io.Writer) *transcriptWriter {
	return &transcriptWriter{dst: dst}
}

func (w *transcriptWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// Partial line, keep buffering.
			w.buf.Write(line)
			break
		}
		clean := ansi.Strip(string(line))
		// Carriage returns from progress bars collapse to the last state.
		if i := bytes.LastIndexByte([]byte(clean), '\r'); i >= 0 {
			clean = clean[i+1:]
		}
		if _, err := io.WriteString(w.dst, clean); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Flush writes any buffered partial line.
func (w *transcriptWriter) Flush() error {
	if w.buf.Len() == 0 {
		return nil
	}
	clean := ansi.Strip(w.buf.String())
	w.buf.Reset()
	if clean == "" {
		return nil
	}
	_, err := io.WriteString(w.dst, clean+"\n")
	return err
}

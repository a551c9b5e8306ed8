package script

import (
	"bytes"
	"hash/fnv"
	"io"
	"sync"

	"github.com/fatih/color"
)

var palette = []*color.Color{
	color.New(color.FgCyan),
	color.New(color.FgGreen),
	color.New(color.FgYellow),
	color.New(color.FgMagenta),
	color.New(color.FgBlue),
	color.New(color.FgHiCyan),
	color.New(color.FgHiGreen),
	color.New(color.FgHiMagenta),
}

// colorFor picks a stable colour for a package name.
func colorFor(name string) *color.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}

// prefixWriter writes complete lines to dst, each preceded by prefix. The
// shared mutex keeps lines of concurrently running packages from interleaving.
type prefixWriter struct {
	mu     *sync.Mutex
	dst    io.Writer
	prefix []byte
	buf    []byte
}

func newPrefixWriter(mu *sync.Mutex, dst io.Writer, pkg string) *prefixWriter {
	return &prefixWriter{
		mu:     mu,
		dst:    dst,
		prefix: []byte(colorFor(pkg).Sprint(pkg) + ": "),
	}
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if err := w.emit(w.buf[:i+1]); err != nil {
			return len(p), err
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// Flush writes a trailing partial line, if any.
func (w *prefixWriter) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	line := append(w.buf, '\n')
	w.buf = nil
	return w.emit(line)
}

func (w *prefixWriter) emit(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.dst.Write(w.prefix); err != nil {
		return err
	}
	_, err := w.dst.Write(line)
	return err
}

package signaturedb

import (
	"os"
)

// atomicWriter buffers a remote copy to a temp file and renames it
// into place only once the copy fully succeeds, so a partial refresh
// never corrupts an existing override bundle.
type atomicWriter struct {
	tmp  *os.File
	dest string
}

func newAtomicWriter(dest string) (*atomicWriter, error) {
	tmp, err := os.CreateTemp("", "signaturedb-*")
	if err != nil {
		return nil, err
	}
	return &atomicWriter{tmp: tmp, dest: dest}, nil
}

func (w *atomicWriter) Write(p []byte) (int, error) {
	return w.tmp.Write(p)
}

func (w *atomicWriter) commit() error {
	name := w.tmp.Name()
	if err := w.tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, w.dest)
}

func (w *atomicWriter) abort() {
	name := w.tmp.Name()
	w.tmp.Close()
	os.Remove(name)
}

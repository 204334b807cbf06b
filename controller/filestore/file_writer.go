package filestore

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/gridsnake/engine/rules"
)

var (
	openFileWriter = appendOnlyFileWriter
	rewriteJournal = rewriteFile
)

const (
	opPut    = "put"
	opRemove = "remove"
)

// entry is one journal line.
type entry struct {
	Op    string              `json:"op"`
	ID    string              `json:"id"`
	Snake *rules.CompactState `json:"snake,omitempty"`
}

type writer interface {
	WriteString(s string) (int, error)
	Close() error
}

func writeLine(w writer, data interface{}) error {
	j, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.WriteString(string(j) + "\n")
	return err
}

func writePut(w writer, s rules.SnakeState) error {
	c := s.Compact()
	return writeLine(w, &entry{Op: opPut, ID: s.ID, Snake: &c})
}

func writeRemove(w writer, id string) error {
	return writeLine(w, &entry{Op: opRemove, ID: id})
}

func appendOnlyFileWriter(directory, path string) (writer, error) {
	if err := os.MkdirAll(directory, 0775); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
}

// rewriteFile replaces path with whatever write produces. The new content goes
// to a temp file first and is renamed over path only once complete.
func rewriteFile(directory, path string, write func(writer) error) error {
	if err := os.MkdirAll(directory, 0775); err != nil {
		return err
	}
	f, err := ioutil.TempFile(directory, filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), path)
}

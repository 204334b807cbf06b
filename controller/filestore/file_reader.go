package filestore

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/gridsnake/engine/rules"
	log "github.com/sirupsen/logrus"
)

var openFileReader = readOnlyFile

type reader interface {
	ReadBytes(delim byte) ([]byte, error)
	Close() error
}

type fileReader struct {
	*bufio.Reader
	f *os.File
}

func (r *fileReader) Close() error { return r.f.Close() }

func readOnlyFile(path string) (reader, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &fileReader{Reader: bufio.NewReader(f), f: f}, nil
}

// readJournal replays a room journal into the latest state per snake and
// counts its lines. Lines that don't parse are skipped, so a torn final
// write loses one entry only.
func readJournal(path string) (map[string]rules.SnakeState, int, error) {
	snakes := map[string]rules.SnakeState{}

	r, err := openFileReader(path)
	if os.IsNotExist(err) {
		return snakes, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer r.Close()

	lines := 0
	for {
		line, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, 0, err
		}
		if len(line) > 0 {
			lines++
			applyLine(snakes, line)
		}
		if err == io.EOF {
			return snakes, lines, nil
		}
	}
}

func applyLine(snakes map[string]rules.SnakeState, line []byte) {
	var e entry
	if err := json.Unmarshal(line, &e); err != nil {
		log.WithError(err).Debug("skipping journal line")
		return
	}
	switch e.Op {
	case opPut:
		if e.Snake == nil {
			return
		}
		s, err := e.Snake.Expand()
		if err != nil {
			log.WithError(err).Warn("skipping journal entry")
			return
		}
		snakes[s.ID] = s
	case opRemove:
		delete(snakes, e.ID)
	}
}

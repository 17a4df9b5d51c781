package device

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"CanSatGS/internal/util"
)

// FileReplay replays a recorded raw log as if it were a live downlink.
// Reaching the end of the file is reported as ErrEndOfReplay so the link
// treats it like a dropped connection and reopens the file.
type FileReplay struct {
	path string
	f    *os.File
	r    *bufio.Reader
}

// NewFileReplay creates an unopened replay transport for path.
func NewFileReplay(path string) *FileReplay {
	return &FileReplay{path: path}
}

// Open opens the log file from the beginning.
func (fr *FileReplay) Open() error {
	if fr.f != nil {
		return nil
	}
	f, err := os.Open(fr.path)
	if err != nil {
		return fmt.Errorf("open replay %s: %w", fr.path, err)
	}
	fr.f = f
	fr.r = bufio.NewReader(f)
	return nil
}

// ReadLine returns the next recorded line. A final line without a
// terminator is still returned before ErrEndOfReplay.
func (fr *FileReplay) ReadLine() (string, error) {
	if fr.f == nil {
		return "", ErrNotOpen
	}
	line, err := fr.r.ReadString('\n')
	if errors.Is(err, io.EOF) {
		if line != "" {
			return line, nil
		}
		return "", fmt.Errorf("%s: %w", fr.path, ErrEndOfReplay)
	}
	if err != nil {
		return "", fmt.Errorf("read replay %s: %w", fr.path, err)
	}
	return line, nil
}

// Write discards uplink data; a replay has nobody listening.
func (fr *FileReplay) Write(p []byte) error {
	if fr.f == nil {
		return ErrNotOpen
	}
	util.Debug("[replay] dropping %d byte uplink for %s", len(p), fr.path)
	return nil
}

// Close closes the log file.
func (fr *FileReplay) Close() error {
	if fr.f == nil {
		return nil
	}
	err := fr.f.Close()
	fr.f = nil
	fr.r = nil
	return err
}

// Noun implements Transport.
func (fr *FileReplay) Noun() string { return "file" }

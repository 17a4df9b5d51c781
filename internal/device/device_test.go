package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CanSatGS/internal/model"
)

// chunkReader returns one scripted chunk per Read; an empty chunk models a
// read timeout.
type chunkReader struct {
	chunks []string
	err    error
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, c.err
	}
	n := copy(p, c.chunks[0])
	c.chunks = c.chunks[1:]
	return n, nil
}

func TestLineReaderReassemblesPartialLines(t *testing.T) {
	unplugged := errors.New("device unplugged")
	lr := newLineReader(&chunkReader{
		chunks: []string{"1071,12", "", "5,3\n88,", "9\n7\n", "", "tail"},
		err:    unplugged,
	})

	_, err := lr.next()
	assert.ErrorIs(t, err, ErrNoData)

	line, err := lr.next()
	require.NoError(t, err)
	assert.Equal(t, "1071,125,3\n", line)

	line, err = lr.next()
	require.NoError(t, err)
	assert.Equal(t, "88,9\n", line)

	line, err = lr.next()
	require.NoError(t, err)
	assert.Equal(t, "7\n", line)

	_, err = lr.next()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = lr.next()
	assert.ErrorIs(t, err, unplugged)
}

func TestFileReplayReadsToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight.txt")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n\nlast"), 0o644))

	fr := NewFileReplay(path)
	_, err := fr.ReadLine()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, fr.Write([]byte("ARM\n")), ErrNotOpen)

	require.NoError(t, fr.Open())
	var lines []string
	for {
		line, err := fr.ReadLine()
		if err != nil {
			assert.ErrorIs(t, err, ErrEndOfReplay)
			break
		}
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"a,b\n", "\n", "last"}, lines)
	assert.NoError(t, fr.Write([]byte("ARM\n")))
	assert.Equal(t, "file", fr.Noun())

	require.NoError(t, fr.Close())
	require.NoError(t, fr.Close())

	require.NoError(t, fr.Open())
	line, err := fr.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "a,b\n", line, "reopen starts from the beginning")
	require.NoError(t, fr.Close())
}

func TestFileReplayMissingFile(t *testing.T) {
	fr := NewFileReplay(filepath.Join(t.TempDir(), "missing.txt"))
	err := fr.Open()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSerialDeviceRequiresOpen(t *testing.T) {
	s := NewSerialDevice(model.SerialConfig{Device: filepath.Join(t.TempDir(), "nope"), Baud: 9600})
	_, err := s.ReadLine()
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, s.Write([]byte("x")), ErrNotOpen)
	assert.NoError(t, s.Close())
	assert.Error(t, s.Open())
	assert.Equal(t, "port", s.Noun())

	s = NewSerialDevice(model.SerialConfig{Device: filepath.Join(t.TempDir(), "nope"), Baud: 9600, Driver: model.DriverTarm})
	assert.Error(t, s.Open())
}

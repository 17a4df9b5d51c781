// Package commslog records the classified link traffic: every line goes to
// a raw text log and telemetry packets go to a CSV file headed by the
// schema's field names.
package commslog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"CanSatGS/internal/util"
)

// Options configures the log files.
type Options struct {
	RawFile    string
	CSVFile    string
	MaxSizeMB  int
	MaxBackups int
	Enabled    bool
}

// Writer is a bus subscriber. File output can be toggled at runtime; the
// header is remembered even while output is disabled.
type Writer struct {
	mu      sync.Mutex
	opts    Options
	enabled bool
	header  string
	raw     io.WriteCloser
	csv     *csvLog

	csvLimit int64 // bytes per CSV file before rotation
}

// defaultMaxSizeMB is lumberjack's size limit when MaxSize is zero.
const defaultMaxSizeMB = 100

// csvLog rotates the CSV file itself, before lumberjack would, so that
// every file in the rotation starts with the header line.
type csvLog struct {
	out   *lumberjack.Logger
	size  int64
	limit int64
}

func (c *csvLog) writeLine(text, header string) error {
	n := int64(len(text) + 1)
	if c.size > 0 && c.size+n > c.limit {
		if err := c.out.Rotate(); err != nil {
			return err
		}
		c.size = 0
	}
	if c.size == 0 {
		if _, err := fmt.Fprintln(c.out, header); err != nil {
			return err
		}
		c.size = int64(len(header) + 1)
	}
	if _, err := fmt.Fprintln(c.out, text); err != nil {
		return err
	}
	c.size += n
	return nil
}

// New creates a writer. Files are opened lazily on first write.
func New(opts Options) *Writer {
	limitMB := opts.MaxSizeMB
	if limitMB <= 0 {
		limitMB = defaultMaxSizeMB
	}
	return &Writer{
		opts:     opts,
		enabled:  opts.Enabled,
		header:   "No headers :(",
		csvLimit: int64(limitMB) * 1024 * 1024,
	}
}

// SetEnabled toggles file output.
func (w *Writer) SetEnabled(on bool) {
	w.mu.Lock()
	w.enabled = on
	w.mu.Unlock()
	util.Info("[commslog] file output enabled=%v (raw=%s csv=%s)", on, w.opts.RawFile, w.opts.CSVFile)
}

// Enabled reports whether file output is on.
func (w *Writer) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// OnHeader remembers the CSV header for the next fresh CSV file.
func (w *Writer) OnHeader(header string) {
	w.mu.Lock()
	w.header = header
	w.mu.Unlock()
}

// OnPacket logs a telemetry packet to both files.
func (w *Writer) OnPacket(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.enabled {
		return
	}
	w.writeRaw(text)
	if w.opts.CSVFile == "" {
		return
	}
	if w.csv == nil {
		size, err := fileSize(w.opts.CSVFile)
		if err != nil {
			util.Error("[commslog] stat %s: %v", w.opts.CSVFile, err)
			return
		}
		w.csv = &csvLog{out: w.rotator(w.opts.CSVFile), size: size, limit: w.csvLimit}
	}
	if err := w.csv.writeLine(text, w.header); err != nil {
		util.Error("[commslog] write %s: %v", w.opts.CSVFile, err)
	}
}

// OnCommand, OnMessage, OnError and OnWarning log to the raw file only.
func (w *Writer) OnCommand(text string) { w.logText(text) }
func (w *Writer) OnMessage(text string) { w.logText(text) }
func (w *Writer) OnError(text string) { w.logText(text) }
func (w *Writer) OnWarning(text string) { w.logText(text) }

func (w *Writer) logText(text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enabled {
		w.writeRaw(text)
	}
}

func (w *Writer) writeRaw(text string) {
	if w.opts.RawFile == "" {
		return
	}
	if w.raw == nil {
		w.raw = w.rotator(w.opts.RawFile)
	}
	w.writeLine(w.raw, text)
}

func (w *Writer) writeLine(dst io.Writer, text string) {
	if _, err := fmt.Fprintln(dst, text); err != nil {
		util.Error("[commslog] write: %v", err)
	}
}

func (w *Writer) rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{Filename: path, MaxSize: w.opts.MaxSizeMB, MaxBackups: w.opts.MaxBackups}
}

// Close flushes and closes both files.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	if w.raw != nil {
		errs = append(errs, w.raw.Close())
	}
	if w.csv != nil {
		errs = append(errs, w.csv.out.Close())
	}
	w.raw, w.csv = nil, nil
	return errors.Join(errs...)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

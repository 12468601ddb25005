package log

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/btcsuite/btclog/v2"
	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is the default number of rotated log files kept
	// on disk before the oldest is discarded.
	DefaultMaxLogFiles = 10

	// DefaultMaxLogFileSize is the default log file size, in megabytes,
	// before rotation occurs.
	DefaultMaxLogFileSize = 20

	// DefaultLogFilename is the file name used when a FileConfig doesn't
	// override it.
	DefaultLogFilename = "tdcore.log"
)

// FileConfig configures the rotating log file sink installed by
// InitFileLogging.
type FileConfig struct {
	// LogDir is the directory the log file (and its rotated siblings)
	// are written into. Created if missing.
	LogDir string

	// MaxLogFiles is the number of rotated files to retain. Zero disables
	// rotation (a single ever-growing file).
	MaxLogFiles int

	// MaxLogFileSize is the size, in megabytes, a file reaches before
	// it is rotated.
	MaxLogFileSize int

	// Filename overrides DefaultLogFilename.
	Filename string
}

// DefaultFileConfig returns a FileConfig with the package's default
// rotation parameters for the given directory.
func DefaultFileConfig(logDir string) *FileConfig {
	return &FileConfig{
		LogDir:         logDir,
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
		Filename:       DefaultLogFilename,
	}
}

// RotatingWriter adapts a jrick/logrotate rotator into an io.WriteCloser,
// feeding it through a pipe so rotation runs on its own goroutine.
type RotatingWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator
}

// NewRotatingWriter creates an unopened RotatingWriter; Init must be called
// before the first Write.
func NewRotatingWriter() *RotatingWriter {
	return &RotatingWriter{}
}

// Init creates the log directory if needed, opens the rotator, and starts
// its background goroutine. Must be called before the first Write.
func (r *RotatingWriter) Init(cfg *FileConfig) error {
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFilename
	}

	logFile := filepath.Join(cfg.LogDir, filename)
	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	var err error
	r.rotator, err = rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("creating file rotator: %w", err)
	}
	r.rotator.SetCompressor(gzip.NewWriter(nil), ".gz")

	pr, pw := io.Pipe()
	go func() {
		if err := r.rotator.Run(pr); err != nil {
			fmt.Fprintf(os.Stderr, "log rotator exited: %v\n", err)
		}
	}()
	r.pipe = pw

	return nil
}

// Write implements io.Writer, discarding writes until Init has run.
func (r *RotatingWriter) Write(b []byte) (int, error) {
	if r.pipe == nil {
		return len(b), nil
	}
	return r.pipe.Write(b)
}

// Close signals the rotator goroutine to flush and exit.
func (r *RotatingWriter) Close() error {
	if r.pipe == nil {
		return nil
	}
	return r.pipe.Close()
}

// InitFileLogging installs a log backend that fans every structured log
// call out to both stderr and a rotating log file under cfg.LogDir,
// mirroring the teacher daemon's dual-stream console+file setup. The
// returned io.Closer must be closed (e.g. on process exit) to flush and
// stop the rotator goroutine.
func InitFileLogging(cfg *FileConfig) (io.Closer, error) {
	w := NewRotatingWriter()
	if err := w.Init(cfg); err != nil {
		return nil, err
	}

	console := btclog.NewDefaultHandler(os.Stderr)
	file := btclog.NewDefaultHandler(w)
	handler := newHandlerSet(console, file)

	SetBackend(btclog.NewSLogger(handler))

	return w, nil
}

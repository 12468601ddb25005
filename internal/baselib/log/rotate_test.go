package log

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInitFileLoggingWritesToRotatedFile(t *testing.T) {
	dir := t.TempDir()

	closer, err := InitFileLogging(&FileConfig{
		LogDir:         dir,
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
		Filename:       "test.log",
	})
	require.NoError(t, err)
	defer SetBackend(nil)

	InfoS(context.Background(), "hello from test", "k", "v")

	require.NoError(t, closer.Close())

	path := filepath.Join(dir, "test.log")
	require.Eventually(t, func() bool {
		b, err := os.ReadFile(path)
		return err == nil && len(b) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

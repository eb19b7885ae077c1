package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	f, logger, err := FileLogger(logrus.InfoLevel, path)
	require.NoError(t, err)
	logger.WithField("job-id", "j1").Info("import finished")
	require.NoError(t, f.Close())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"job-id":"j1"`)
	require.Contains(t, string(b), `"msg":"import finished"`)
}

func TestNop_DiscardsOutput(t *testing.T) {
	entry := Nop()
	require.NotPanics(t, func() { entry.Error("ignored") })
}

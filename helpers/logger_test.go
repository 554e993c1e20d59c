package helpers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "logs", "errors.log")

	logger := NewLogger(journal)
	logger.LogError("Blaze", errors.New("no product urls"))
	logger.LogError("https://www.bbqguys.com/i/1", errors.New("status 500"))

	data, err := os.ReadFile(journal)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[Blaze] no product urls")
	assert.Contains(t, lines[1], "status 500")

	// Info messages go to the structured logger, not the journal
	logger.LogInfo("run finished: %d brands", 2)
	after, err := os.ReadFile(journal)
	require.NoError(t, err)
	assert.Equal(t, data, after)
}

package orderbot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHistoryLogPrependOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	log := NewHistoryLog(path)

	first := Record{
		SubmittedDate:  "01.09.2026",
		SubmittedTime:  "10:00:00",
		DeliveryDate:   "02.09.2026",
		DeliveryWindow: "9.00-11.00",
		Payment:        "Наличными",
		UserName:       "Иван",
		UserID:         7,
	}
	second := first
	second.SubmittedDate = "03.09.2026"
	second.DeliveryWindow = "14.00-16.00"
	second.Payment = "Бонусами"

	require.NoError(t, log.Append(first))
	require.NoError(t, log.Append(second))

	// newest record is the first line
	latest, found, err := log.Latest()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, second, latest)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Equal(t, "03.09.2026;10:00:00;02.09.2026;14.00-16.00;Бонусами;Иван;7", lines[0])
	require.Equal(t, "01.09.2026;10:00:00;02.09.2026;9.00-11.00;Наличными;Иван;7", lines[1])
}

func TestHistoryLogMissingFile(t *testing.T) {
	log := NewHistoryLog(filepath.Join(t.TempDir(), "absent.log"))

	_, found, err := log.Latest()
	require.NoError(t, err)
	require.False(t, found)
}

func TestHistoryLogFallbackPath(t *testing.T) {
	log := NewHistoryLog("")
	require.Equal(t, fallbackHistoryPath, log.path)
}

func TestHistoryLogMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.log")
	require.NoError(t, os.WriteFile(path, []byte("not;a;record\n"), 0644))

	_, _, err := NewHistoryLog(path).Latest()
	require.Error(t, err)
}

package orderbot

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// fallbackHistoryPath is used when no history path is configured.
const fallbackHistoryPath = "order.log"

// Record is one placed order. Serialized as a single semicolon-joined
// line; none of the fields may contain a semicolon or newline.
type Record struct {
	SubmittedDate  string
	SubmittedTime  string
	DeliveryDate   string
	DeliveryWindow string
	Payment        string
	UserName       string
	UserID         int64
}

func (r Record) line() string {
	return strings.Join([]string{
		r.SubmittedDate,
		r.SubmittedTime,
		r.DeliveryDate,
		r.DeliveryWindow,
		r.Payment,
		r.UserName,
		strconv.FormatInt(r.UserID, 10),
	}, ";")
}

func parseRecord(line string) (Record, error) {
	fields := strings.Split(strings.TrimRight(line, "\n"), ";")
	if len(fields) != 7 {
		return Record{}, fmt.Errorf("expected 7 history fields, got %d", len(fields))
	}
	userID, err := strconv.ParseInt(fields[6], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("malformed user id %q: %w", fields[6], err)
	}
	return Record{
		SubmittedDate:  fields[0],
		SubmittedTime:  fields[1],
		DeliveryDate:   fields[2],
		DeliveryWindow: fields[3],
		Payment:        fields[4],
		UserName:       fields[5],
		UserID:         userID,
	}, nil
}

// HistoryLog stores placed orders newest-first: the writer prepends so
// that lookups only ever need the first line. Writes from concurrent
// conversations are serialized with an exclusive file lock.
type HistoryLog struct {
	path string
	lock *flock.Flock
}

func NewHistoryLog(path string) HistoryLog {
	if path == "" {
		path = fallbackHistoryPath
	}
	return HistoryLog{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (l HistoryLog) Append(record Record) error {
	if err := l.lock.Lock(); err != nil {
		return err
	}
	defer l.lock.Unlock()

	existing, err := os.ReadFile(l.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	content := append([]byte(record.line()+"\n"), existing...)
	return os.WriteFile(l.path, content, 0644)
}

// All returns every record, newest first per the prepend contract.
func (l HistoryLog) All() ([]Record, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []Record
	for _, line := range strings.Split(string(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		record, err := parseRecord(line)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// Latest returns the most recent record, which by the prepend contract
// is the first line of the file. A missing or empty file is not an
// error, just absence.
func (l HistoryLog) Latest() (Record, bool, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	first, _, _ := strings.Cut(string(raw), "\n")
	if strings.TrimSpace(first) == "" {
		return Record{}, false, nil
	}
	record, err := parseRecord(first)
	if err != nil {
		return Record{}, false, err
	}
	return record, true, nil
}

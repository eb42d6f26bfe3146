package report

import (
	"bytes"
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var (
	may1 = civil.Date{Year: 2024, Month: 5, Day: 1}
	may2 = civil.Date{Year: 2024, Month: 5, Day: 2}
)

func TestWriteCSV(t *testing.T) {
	records := []database.AttendanceRecord{
		{SubjectID: "S2", SubjectName: "Novák, Jan", Date: may1, TimeIn: "08:00:00"},
		{SubjectID: "S1", SubjectName: "Alice", Date: may1, TimeIn: "08:15:30"},
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "Name,ID,Date,Time In\n" +
		"\"Novák, Jan\",S2,2024-05-01,08:00:00\n" +
		"Alice,S1,2024-05-01,08:15:30\n"
	if buf.String() != want {
		t.Errorf("unexpected csv:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if buf.String() != "Name,ID,Date,Time In\n" {
		t.Errorf("expected header only, got %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteCSV_WriterError(t *testing.T) {
	if err := WriteCSV(failingWriter{}, nil); err == nil {
		t.Error("expected error from failing writer")
	}
}

func TestFilename(t *testing.T) {
	if got := Filename(may1, may1); got != "attendance_2024-05-01.csv" {
		t.Errorf("single day: got %s", got)
	}
	if got := Filename(may1, may2); got != "attendance_2024-05-01_2024-05-02.csv" {
		t.Errorf("range: got %s", got)
	}
}

func TestSummarize(t *testing.T) {
	records := []database.AttendanceRecord{
		{SubjectID: "S1", Date: may1},
		{SubjectID: "S2", Date: may1},
		{SubjectID: "S1", Date: may2},
	}

	got := Summarize(records)
	if len(got) != 2 {
		t.Fatalf("expected 2 days, got %d", len(got))
	}
	if got[0] != (DaySummary{Date: "2024-05-01", Present: 2}) || got[1] != (DaySummary{Date: "2024-05-02", Present: 1}) {
		t.Errorf("unexpected summary %+v", got)
	}

	if empty := Summarize(nil); empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", empty)
	}
}

// Package export renders a session attendance sheet as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	attendanceSheet = "Attendance"
	infoSheet       = "Session Info"
)

var Header = []string{
	"#", "Subject ID", "First Name", "Last Name", "Verified At",
	"Client Time", "Distance (m)", "Device ID", "Client Version",
}

type Row struct {
	SubjectID     string
	FirstName     string
	LastName      string
	VerifiedAt    time.Time
	ClientTS      time.Time
	DistanceM     float64
	DeviceID      string
	ClientVersion string
}

type Sheet struct {
	SessionID string
	OwnerName string
	AnchorLat float64
	AnchorLon float64
	StartedAt time.Time
	EndedAt   *time.Time
	Rows      []Row
}

func (s *Sheet) records() [][]string {
	out := make([][]string, 0, len(s.Rows))
	for i, r := range s.Rows {
		out = append(out, []string{
			strconv.Itoa(i + 1),
			r.SubjectID,
			r.FirstName,
			r.LastName,
			formatTime(r.VerifiedAt),
			formatTime(r.ClientTS),
			strconv.FormatFloat(r.DistanceM, 'f', 0, 64),
			r.DeviceID,
			r.ClientVersion,
		})
	}
	return out
}

func (s *Sheet) info() [][]string {
	ended := "Active"
	if s.EndedAt != nil {
		ended = formatTime(*s.EndedAt)
	}
	return [][]string{
		{"Session ID", s.SessionID},
		{"Owner", s.OwnerName},
		{"Started At", formatTime(s.StartedAt)},
		{"Ended At", ended},
		{"Total Records", strconv.Itoa(len(s.Rows))},
		{"Anchor", fmt.Sprintf("%.6f, %.6f", s.AnchorLat, s.AnchorLon)},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// WriteCSV writes the attendance rows with a header line.
func WriteCSV(w io.Writer, s *Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	if err := cw.WriteAll(s.records()); err != nil {
		return err
	}
	return cw.Error()
}

// WriteXLSX writes a workbook with the attendance rows and a session info sheet.
func WriteXLSX(w io.Writer, s *Sheet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", attendanceSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRows(f, attendanceSheet, append([][]string{Header}, s.records()...)); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(attendanceSheet, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(attendanceSheet, "B", "D", 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(attendanceSheet, "E", "F", 20); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(attendanceSheet, "H", "H", 38); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.NewSheet(infoSheet); err != nil {
		return fmt.Errorf("create info sheet: %w", err)
	}
	if err := writeRows(f, infoSheet, s.info()); err != nil {
		return err
	}
	if err := f.SetColWidth(infoSheet, "A", "B", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	_, err = f.WriteTo(w)
	return err
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// FileName is the download name for a sheet in the given extension.
func FileName(s *Sheet, ext string) string {
	id := s.SessionID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("attendance-%s-%s.%s", id, s.StartedAt.UTC().Format("2006-01-02"), ext)
}

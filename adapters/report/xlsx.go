// Package report writes export run history to spreadsheets.
package report

import (
	"context"
	"io"
	"time"

	"github.com/goliatone/go-deck-export/export"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheetName  = "Runs"
	defaultDateTime   = "yyyy-mm-dd hh:mm:ss"
	defaultDurationFm = "0.000"
)

var runHeaders = []string{
	"Run ID", "Source", "Output", "Engine", "State",
	"Slides", "Pages", "Bytes", "Error Kind", "Error",
	"Created", "Completed", "Seconds",
}

// Stats reports what was written.
type Stats struct {
	Rows  int
	Bytes int64
}

// WriteXLSX streams export runs into a workbook, one row per run.
func WriteXLSX(ctx context.Context, w io.Writer, runs []export.RunRecord) (Stats, error) {
	if w == nil {
		return Stats{}, export.NewError(export.KindValidation, "report writer is required", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	defaultSheet := file.GetSheetName(0)
	if defaultSheet != defaultSheetName {
		file.SetSheetName(defaultSheet, defaultSheetName)
	}

	stream, err := file.NewStreamWriter(defaultSheetName)
	if err != nil {
		return Stats{}, err
	}

	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return Stats{}, err
	}
	dateTimeID, err := newCustomStyle(file, defaultDateTime)
	if err != nil {
		return Stats{}, err
	}
	secondsID, err := newCustomStyle(file, defaultDurationFm)
	if err != nil {
		return Stats{}, err
	}

	headers := make([]interface{}, len(runHeaders))
	for i, label := range runHeaders {
		headers[i] = excelize.Cell{StyleID: headerID, Value: label}
	}
	if err := stream.SetRow("A1", headers); err != nil {
		return Stats{}, err
	}

	stats := Stats{}
	for i, run := range runs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return stats, err
		}
		if err := stream.SetRow(cell, runRow(run, dateTimeID, secondsID)); err != nil {
			return stats, err
		}
		stats.Rows++
	}

	if err := stream.Flush(); err != nil {
		return stats, err
	}

	counter := &countingWriter{w: w}
	if _, err := file.WriteTo(counter); err != nil {
		return stats, err
	}
	stats.Bytes = counter.count
	return stats, nil
}

func runRow(run export.RunRecord, dateTimeID, secondsID int) []interface{} {
	row := []interface{}{
		run.ID,
		run.Source,
		run.Output,
		run.Engine,
		string(run.State),
		run.Slides,
		run.Pages,
		run.Bytes,
		string(run.ErrorKind),
		run.Error,
		timeCell(run.CreatedAt, dateTimeID),
		timeCell(run.CompletedAt, dateTimeID),
		nil,
	}
	if !run.CreatedAt.IsZero() && !run.CompletedAt.IsZero() {
		row[12] = excelize.Cell{StyleID: secondsID, Value: run.CompletedAt.Sub(run.CreatedAt).Seconds()}
	}
	return row
}

func timeCell(value time.Time, styleID int) interface{} {
	if value.IsZero() {
		return nil
	}
	return excelize.Cell{StyleID: styleID, Value: value.UTC()}
}

func newCustomStyle(file *excelize.File, format string) (int, error) {
	custom := format
	return file.NewStyle(&excelize.Style{CustomNumFmt: &custom})
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

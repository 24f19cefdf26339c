package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/window"
)

const (
	SummarySheet = "Summary"
	timeLayout   = "2006-01-02 15:04:05 MST"
	maxSheetName = 31
)

var sheetNameReplacer = strings.NewReplacer(
	"[", "_", "]", "_", ":", "_", "*", "_", "?", "_", "/", "_", `\`, "_",
)

// WriteXLSX writes a workbook with a Summary sheet followed by one sheet of
// readings per device.
func WriteXLSX(w io.Writer, ds types.WindowDataset, opts Options) error {
	loc := opts.location()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"Device", "Name", "Count", "Min", "Max", "Mean", "First", "Last"}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return err
	}

	summaries := window.Summarize(ds)
	used := map[string]bool{SummarySheet: true}
	row := 2
	for _, id := range window.DeviceIDs(ds) {
		s, ok := summaries[id]
		if !ok {
			continue
		}
		line := []any{
			id, opts.Names[id], s.Count, s.Min, s.Max, s.Mean,
			pointTime(s.First, loc).Format(timeLayout),
			pointTime(s.Last, loc).Format(timeLayout),
		}
		if err := f.SetSheetRow(SummarySheet, "A"+strconv.Itoa(row), &line); err != nil {
			return err
		}
		row++

		sheet := uniqueSheetName(id, used)
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("new sheet %q: %w", sheet, err)
		}
		if err := writeSeries(f, sheet, ds[id], loc); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSeries(f *excelize.File, sheet string, pts []types.Point, loc *time.Location) error {
	header := []any{"Time", "Days", "Temperature"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, p := range pts {
		line := []any{pointTime(p, loc).Format(timeLayout), p.OffsetDays, p.Temperature}
		if err := f.SetSheetRow(sheet, "A"+strconv.Itoa(i+2), &line); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

// uniqueSheetName maps a device id to a valid sheet name not yet in used.
func uniqueSheetName(id string, used map[string]bool) string {
	base := sheetNameReplacer.Replace(id)
	if base == "" {
		base = "device"
	}
	base = truncate(base, maxSheetName)

	name := base
	for n := 2; used[strings.ToLower(name)] || used[name]; n++ {
		suffix := "~" + strconv.Itoa(n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[name] = true
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

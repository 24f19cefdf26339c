package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

func sampleDataset() types.WindowDataset {
	return types.WindowDataset{
		"bom-94865": {
			{OffsetDays: 1658120400.0 / 86400, Temperature: 11.6},
			{OffsetDays: 1658122200.0 / 86400, Temperature: 11.2},
		},
		"bom-95936": {{OffsetDays: 1658122200.0 / 86400, Temperature: 12.0}},
		"sensor-3":  {{OffsetDays: 1658118600.0 / 86400, Temperature: -1.5}},
		"sensor-4":  {{OffsetDays: 1658118600.0 / 86400, Temperature: 3}},
	}
}

func melbourne(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Australia/Melbourne")
	require.NoError(t, err)
	return loc
}

func TestWritePDFChart(t *testing.T) {
	var buf bytes.Buffer
	err := WritePDFChart(&buf, sampleDataset(), Options{
		Title:       "Temperature, last 7 days",
		Location:    melbourne(t),
		Names:       map[string]string{"bom-94865": "Laverton"},
		GeneratedAt: time.Date(2022, 7, 18, 6, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestWritePDFChart_EmptyAndSinglePoint(t *testing.T) {
	tests := []struct {
		name string
		ds   types.WindowDataset
	}{
		{name: "empty", ds: types.WindowDataset{}},
		{name: "single point", ds: types.WindowDataset{"A": {{OffsetDays: 2, Temperature: 20}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WritePDFChart(&buf, tt.ds, Options{Title: tt.name}))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
		})
	}
}

func TestTriangleVertices_PointDown(t *testing.T) {
	v := triangleVertices(50, 20)
	require.Len(t, v, 3)

	apex := v[2]
	assert.Equal(t, 50.0, apex.X)
	for _, p := range v[:2] {
		assert.Less(t, p.Y, apex.Y, "base must sit above the apex on the page")
	}
	assert.Equal(t, v[0].Y, v[1].Y)
	assert.Less(t, v[0].X, apex.X)
	assert.Greater(t, v[1].X, apex.X)
}

func TestBoundsOf(t *testing.T) {
	_, ok := boundsOf(types.WindowDataset{"A": nil})
	assert.False(t, ok)

	b, ok := boundsOf(types.WindowDataset{"A": {{OffsetDays: 2, Temperature: 20}}})
	require.True(t, ok)
	assert.Equal(t, 1.5, b.minX)
	assert.Equal(t, 2.5, b.maxX)
	assert.Less(t, b.minY, 19.0)
	assert.Greater(t, b.maxY, 21.0)

	b, ok = boundsOf(types.WindowDataset{
		"A": {{OffsetDays: 1, Temperature: 0}},
		"B": {{OffsetDays: 3, Temperature: 10}},
	})
	require.True(t, ok)
	assert.Equal(t, 1.0, b.minX)
	assert.Equal(t, 3.0, b.maxX)
	assert.InDelta(t, -0.5, b.minY, 1e-9)
	assert.InDelta(t, 10.5, b.maxY, 1e-9)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	err := WriteXLSX(&buf, sampleDataset(), Options{
		Location: melbourne(t),
		Names:    map[string]string{"bom-94865": "Laverton"},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	assert.Equal(t, []string{"Summary", "bom-94865", "bom-95936", "sensor-3", "sensor-4"}, f.GetSheetList())

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Device", "Name", "Count", "Min", "Max", "Mean", "First", "Last"}, rows[0])
	assert.Equal(t, "bom-94865", rows[1][0])
	assert.Equal(t, "Laverton", rows[1][1])
	assert.Equal(t, "2", rows[1][2])
	assert.Equal(t, "11.2", rows[1][3])
	assert.Equal(t, "11.6", rows[1][4])
	assert.Equal(t, "2022-07-18 15:00:00 AEST", rows[1][6])
	assert.Equal(t, "2022-07-18 15:30:00 AEST", rows[1][7])

	series, err := f.GetRows("bom-94865")
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, []string{"Time", "Days", "Temperature"}, series[0])
	assert.Equal(t, "2022-07-18 15:00:00 AEST", series[1][0])
	assert.Equal(t, "11.6", series[1][2])
	assert.Equal(t, "11.2", series[2][2])

	neg, err := f.GetCellValue("sensor-3", "C2")
	require.NoError(t, err)
	assert.Equal(t, "-1.5", neg)
}

func TestWriteXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, types.WindowDataset{}, Options{}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	assert.Equal(t, []string{"Summary"}, f.GetSheetList())
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{SummarySheet: true, "summary": true}

	assert.Equal(t, "a_b_c", uniqueSheetName("a/b:c", used))
	assert.Equal(t, "a_b_c~2", uniqueSheetName("a?b*c", used))
	assert.Equal(t, "summary~2", uniqueSheetName("summary", used))

	long := uniqueSheetName("device-with-a-very-long-identifier-1234567890", used)
	assert.Len(t, long, maxSheetName)
	assert.Equal(t, "device", uniqueSheetName("", used))
}

func TestOptionsLabel(t *testing.T) {
	o := Options{Names: map[string]string{"bom-94865": "Laverton"}}
	assert.Equal(t, "Laverton (bom-94865)", o.label("bom-94865"))
	assert.Equal(t, "sensor-1", o.label("sensor-1"))
	assert.Equal(t, time.UTC, Options{}.location())
}

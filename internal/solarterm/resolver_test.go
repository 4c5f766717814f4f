package solarterm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixture = `
timezone: "+08:00"
years:
  1983:
    大雪: "1983-12-08 00:34"
  1984:
    小寒: "1984-01-06 11:41"
    立春: "1984-02-04 23:19"
    惊蛰: "1984-03-05 17:25"
    雨水: "1984-02-19 19:16"
`

func loadFixture(t *testing.T) *Table {
	t.Helper()
	table, err := Decode(strings.NewReader(fixture), FormatYAML)
	require.NoError(t, err)
	return table
}

func TestDecodeIndexesByTimestamp(t *testing.T) {
	table := loadFixture(t)
	assert.Equal(t, 5, table.Len())

	at, ok := table.Lookup(1984, Lichun)
	require.True(t, ok)
	assert.Equal(t, time.Date(1984, 2, 4, 15, 19, 0, 0, time.UTC), at.UTC())

	first, last, ok := table.Span()
	require.True(t, ok)
	assert.Equal(t, 1983, first)
	assert.Equal(t, 1984, last)
}

func TestDecodeBareLegacyMap(t *testing.T) {
	// legacy files list Xiaohan of the following January under the earlier year
	raw := `{"2024": {"立春": "2024-02-04 16:27", "小寒": "2025-01-05 10:33"}}`
	table, err := Decode(strings.NewReader(raw), FormatJSON)
	require.NoError(t, err)

	_, ok := table.Lookup(2025, Xiaohan)
	assert.True(t, ok)
	_, ok = table.Lookup(2024, Xiaohan)
	assert.False(t, ok)
}

func TestDecodeRejectsDuplicatesAndBadNames(t *testing.T) {
	_, err := Decode(strings.NewReader(`years: {2024: {立春: "2024-02-04 16:27"}, 2025: {lichun: "2024-02-05 10:00"}}`), FormatYAML)
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`years: {2024: {spring: "2024-02-04 16:27"}}`), FormatYAML)
	assert.Error(t, err)

	_, err = Decode(strings.NewReader(`years: {2024: {立春: "yesterday"}}`), FormatYAML)
	assert.Error(t, err)
}

func TestResolveLichunBoundary(t *testing.T) {
	r := NewResolver(loadFixture(t))
	lichun := time.Date(1984, 2, 4, 23, 19, 0, 0, ChinaStandardTime)

	before := r.Resolve(lichun.Add(-time.Minute))
	assert.Equal(t, 12, before.Month)
	assert.Equal(t, 1983, before.SolarYear)
	assert.Equal(t, Xiaohan, before.Start.Term)

	after := r.Resolve(lichun.Add(time.Minute))
	assert.Equal(t, 1, after.Month)
	assert.Equal(t, 1984, after.SolarYear)
	assert.Equal(t, Lichun, after.Start.Term)
	assert.Equal(t, Exact, after.Start.Source)
	assert.Equal(t, Jingzhe, after.End.Term)
	assert.Equal(t, Exact, after.Source)

	at := r.Resolve(lichun)
	assert.Equal(t, 1, at.Month, "boundary instant belongs to the new month")
}

func TestResolveAcrossTimezones(t *testing.T) {
	r := NewResolver(loadFixture(t))
	// 1984-02-04 15:30 UTC is 23:30 in Beijing, after Lichun
	res := r.Resolve(time.Date(1984, 2, 4, 15, 30, 0, 0, time.UTC))
	assert.Equal(t, 1, res.Month)
	ny := time.FixedZone("EST", -5*3600)
	res = r.Resolve(time.Date(1984, 2, 4, 10, 0, 0, 0, ny))
	assert.Equal(t, 12, res.Month)
}

func TestResolveNearestYearFallback(t *testing.T) {
	r := NewResolver(loadFixture(t))
	res := r.Resolve(time.Date(1990, 2, 10, 12, 0, 0, 0, ChinaStandardTime))
	assert.Equal(t, 1, res.Month)
	assert.Equal(t, 1990, res.SolarYear)
	assert.Equal(t, NearestYear, res.Start.Source)
	assert.True(t, time.Date(1990, 2, 4, 23, 19, 0, 0, ChinaStandardTime).Equal(res.Start.At))
	assert.NotEqual(t, Exact, res.Source)
}

func TestResolveWithoutData(t *testing.T) {
	r := NewResolver(nil)
	cases := []struct {
		at        time.Time
		month     int
		solarYear int
	}{
		{time.Date(2001, 1, 1, 0, 0, 0, 0, ChinaStandardTime), 11, 2000},
		{time.Date(2001, 1, 10, 0, 0, 0, 0, ChinaStandardTime), 12, 2000},
		{time.Date(2001, 2, 3, 23, 0, 0, 0, ChinaStandardTime), 12, 2000},
		{time.Date(2001, 2, 4, 1, 0, 0, 0, ChinaStandardTime), 1, 2001},
		{time.Date(2001, 6, 15, 0, 0, 0, 0, ChinaStandardTime), 5, 2001},
		{time.Date(2001, 12, 25, 0, 0, 0, 0, ChinaStandardTime), 11, 2001},
	}
	for _, tc := range cases {
		res := r.Resolve(tc.at)
		assert.Equal(t, tc.month, res.Month, tc.at.String())
		assert.Equal(t, tc.solarYear, res.SolarYear, tc.at.String())
		assert.Equal(t, FixedCalendar, res.Source)
	}
}

func TestPrevNext(t *testing.T) {
	r := NewResolver(loadFixture(t))
	at := time.Date(1984, 2, 20, 0, 0, 0, 0, ChinaStandardTime)
	assert.Equal(t, Lichun, r.Prev(at).Term)
	assert.Equal(t, Jingzhe, r.Next(at).Term)
	assert.True(t, r.Next(at).At.After(at))
}

func TestBoundaries(t *testing.T) {
	r := NewResolver(loadFixture(t))
	bs := r.Boundaries(1984)
	require.Len(t, bs, 12)
	assert.Equal(t, Xiaohan, bs[0].Term)
	assert.Equal(t, Exact, bs[0].Source)
	assert.Equal(t, Lichun, bs[1].Term)
	assert.Equal(t, Exact, bs[1].Source)
	assert.Equal(t, Daxue, bs[11].Term)
	assert.Equal(t, NearestYear, bs[11].Source)
	for i := 1; i < len(bs); i++ {
		assert.True(t, bs[i].At.After(bs[i-1].At), "%s before %s", bs[i-1].Term, bs[i].Term)
	}

	empty := NewResolver(nil).Boundaries(2000)
	assert.Equal(t, FixedCalendar, empty[5].Source)
}

func TestGenerateAndEncodeRoundTrip(t *testing.T) {
	table, err := Generate(2023, 2025, nil)
	require.NoError(t, err)
	assert.Equal(t, 3*NumTerms, table.Len())

	at, ok := table.Lookup(2024, Lichun)
	require.True(t, ok)
	assert.WithinDuration(t, time.Date(2024, 2, 4, 16, 27, 0, 0, ChinaStandardTime), at, 15*time.Minute)

	for _, format := range []Format{FormatYAML, FormatJSON} {
		var buf bytes.Buffer
		require.NoError(t, Encode(&buf, table, format, "# generated"))
		back, err := Decode(&buf, format)
		require.NoError(t, err, format)
		assert.Equal(t, table.Len(), back.Len(), format)
		got, ok := back.Lookup(2024, Lichun)
		require.True(t, ok)
		assert.True(t, at.Equal(got), format)
	}
}

func TestLoadShippedTable(t *testing.T) {
	path := filepath.Join("..", "..", "config", "solar_terms.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("shipped table not present")
	}
	table, err := LoadFile(path)
	require.NoError(t, err)
	first, last, ok := table.Span()
	require.True(t, ok)
	assert.Equal(t, 1900, first)
	assert.Equal(t, 2100, last)
	assert.Equal(t, 201*NumTerms, table.Len())
}

func TestTermAttributes(t *testing.T) {
	assert.Equal(t, 315.0, Lichun.Longitude())
	assert.Equal(t, 285.0, Xiaohan.Longitude())
	assert.Equal(t, 0.0, Chunfen.Longitude())
	assert.Equal(t, 1, Lichun.Month())
	assert.Equal(t, 12, Xiaohan.Month())
	assert.Equal(t, 0, Yushui.Month())
	assert.Equal(t, Daxue, EnteringTerm(11))
	assert.Equal(t, Xiaohan, CalendarOrder[0])
	assert.Equal(t, Dongzhi, CalendarOrder[NumTerms-1])
}

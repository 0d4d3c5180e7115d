package domain

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// transcoded builds the intermediate form of a record holding the given day values.
func transcoded(t *testing.T, year, month int, elem string, values ...string) string {
	t.Helper()
	days := make([]Observation, len(values))
	for i, v := range values {
		days[i] = Observation{Value: v}
	}
	return transcodedObs(t, year, month, elem, days...)
}

func transcodedObs(t *testing.T, year, month int, elem string, days ...Observation) string {
	t.Helper()
	out, err := TranscodeLine(FormatRawRecord(RawRecord{StationID: testStation, Year: year, Month: month, Element: elem, Days: days}))
	require.NoError(t, err)
	return out
}

func repeat(v string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func aggregate(t *testing.T, policy DayCountPolicy, lines ...string) []OutputRow {
	t.Helper()
	a := NewAggregator(discardLogger(), policy)
	for _, l := range lines {
		require.NoError(t, a.Add(l))
	}
	rows, err := a.Rows()
	require.NoError(t, err)
	return rows
}

func TestHeader(t *testing.T) {
	h := Header()
	require.Len(t, h, 25)
	assert.Equal(t,
		"Date,TMAX,TMAX_m,TMAX_q,TMAX_s,TMIN,TMIN_m,TMIN_q,TMIN_s,TOBS,TOBS_m,TOBS_q,TOBS_s,"+
			"PRCP,PRCP_m,PRCP_q,PRCP_s,SNOW,SNOW_m,SNOW_q,SNOW_s,SNWD,SNWD_m,SNWD_q,SNWD_s",
		strings.Join(h, ","))
}

func TestAggregator_EndToEndMonth(t *testing.T) {
	rows := aggregate(t, DayCountPRCP,
		transcoded(t, 2020, 2, "TMAX", "5", "105"),
		transcodedObs(t, 2020, 2, "PRCP",
			Observation{Value: "0", SFlag: "7"},
			Observation{Value: "25", MFlag: "T", SFlag: "7"},
			Observation{Value: "3", QFlag: "G", SFlag: "7"},
		),
	)
	require.Len(t, rows, 3)

	blank4 := []string{"", "", "", ""}
	expect := func(date string, tmax, prcp []string) []string {
		out := []string{date}
		out = append(out, tmax...)
		out = append(out, blank4...) // TMIN
		out = append(out, blank4...) // TOBS
		out = append(out, prcp...)
		out = append(out, blank4...) // SNOW
		out = append(out, blank4...) // SNWD
		return out
	}

	want := [][]string{
		expect("02/1/2020", []string{"0.5", "", "", ""}, []string{"0.0", "", "", "7"}),
		expect("02/2/2020", []string{"10.5", "", "", ""}, []string{"2.5", "T", "", "7"}),
		expect("02/3/2020", blank4, []string{"0.3", "", "G", "7"}),
	}
	got := make([][]string, len(rows))
	for i, r := range rows {
		got[i] = r.Fields()
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, testStation, rows[0].Station)
	assert.Equal(t, "2020-02-03", rows[2].ISODate())
}

func TestAggregator_SentinelBlankForEveryElement(t *testing.T) {
	for _, e := range Elements {
		t.Run(string(e), func(t *testing.T) {
			lines := []string{transcoded(t, 2020, 2, string(e), "-9999")}
			if e != PRCP {
				lines = append(lines, transcoded(t, 2020, 2, "PRCP", "0"))
			}
			rows := aggregate(t, DayCountPRCP, lines...)
			require.Len(t, rows, 1)

			rd := rows[0].Reading(e)
			assert.Empty(t, rd.Value)
			assert.False(t, rd.HasValue)
		})
	}
}

func TestAggregator_ValueScaling(t *testing.T) {
	tests := []struct {
		elem Element
		raw  string
		want string
	}{
		{TMAX, "100", "10.0"},
		{TMIN, "-56", "-5.6"},
		{TOBS, "0", "0.0"},
		{PRCP, "100", "10.0"},
		{SNOW, "100", "100"},
		{SNWD, "100", "100"},
		{TMAX, "9989", "998.9"},
		{TMAX, "9990", ""},
		{SNOW, "999", ""},
		{SNWD, "-999", ""},
		{SNWD, "998", "998"},
	}

	for _, tt := range tests {
		t.Run(string(tt.elem)+"_"+tt.raw, func(t *testing.T) {
			lines := []string{transcoded(t, 2021, 7, string(tt.elem), tt.raw)}
			if tt.elem != PRCP {
				lines = append(lines, transcoded(t, 2021, 7, "PRCP", "0"))
			}
			rows := aggregate(t, DayCountPRCP, lines...)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Reading(tt.elem).Value)
		})
	}
}

func TestAggregator_DayCount_PRCPIsCanonical(t *testing.T) {
	rows := aggregate(t, DayCountPRCP,
		transcoded(t, 2019, 2, "TMAX", repeat("10", 31)...),
		transcoded(t, 2019, 2, "PRCP", repeat("0", 28)...),
		transcoded(t, 2019, 2, "SNOW", repeat("5", 10)...),
	)
	require.Len(t, rows, 28)

	assert.Equal(t, "02/28/2019", rows[27].Date())
	assert.Equal(t, "1.0", rows[27].Reading(TMAX).Value)
	assert.Equal(t, "5", rows[9].Reading(SNOW).Value)
	assert.Empty(t, rows[10].Reading(SNOW).Value, "shorter sequences leave later days blank")
}

func TestAggregator_DayCount_NoPRCPMeansNoRows(t *testing.T) {
	rows := aggregate(t, DayCountPRCP,
		transcoded(t, 2019, 3, "TMAX", repeat("10", 31)...),
		transcoded(t, 2019, 3, "TMIN", repeat("-10", 31)...),
	)
	assert.Empty(t, rows)
}

func TestAggregator_DayCount_MaxPolicy(t *testing.T) {
	rows := aggregate(t, DayCountMax,
		transcoded(t, 2019, 3, "TMAX", repeat("10", 31)...),
		transcoded(t, 2019, 3, "PRCP", repeat("0", 5)...),
	)
	require.Len(t, rows, 31)
	assert.Equal(t, "0.0", rows[4].Reading(PRCP).Value)
	assert.Empty(t, rows[5].Reading(PRCP).Value)
	assert.Equal(t, "1.0", rows[30].Reading(TMAX).Value)
}

func TestAggregator_SecondLineOverwrites(t *testing.T) {
	rows := aggregate(t, DayCountPRCP,
		transcoded(t, 2020, 2, "PRCP", "1", "2", "3"),
		transcoded(t, 2020, 2, "TMAX", "100", "200", "300"),
		transcoded(t, 2020, 2, "TMAX", "-10"),
	)
	require.Len(t, rows, 3)
	assert.Equal(t, "-1.0", rows[0].Reading(TMAX).Value)
	assert.Empty(t, rows[1].Reading(TMAX).Value)
	assert.Empty(t, rows[2].Reading(TMAX).Value)
}

func TestAggregator_MonthsInFirstSeenOrder(t *testing.T) {
	rows := aggregate(t, DayCountPRCP,
		transcoded(t, 2020, 3, "PRCP", "1"),
		transcoded(t, 2020, 1, "PRCP", "2"),
		transcoded(t, 2020, 3, "TMAX", "3"),
		transcoded(t, 2019, 12, "PRCP", "4"),
	)
	dates := make([]string, len(rows))
	for i, r := range rows {
		dates[i] = r.Date()
	}
	assert.Equal(t, []string{"03/1/2020", "01/1/2020", "12/1/2019"}, dates)
}

func TestAggregator_UntrackedElementIgnored(t *testing.T) {
	a := NewAggregator(discardLogger(), DayCountPRCP)
	require.NoError(t, a.Add(transcoded(t, 2020, 4, "WT01", "1", "1")))
	require.NoError(t, a.Add(transcoded(t, 2020, 5, "PRCP", "1")))

	require.Len(t, a.Months(), 2)
	assert.Equal(t, MonthKey{Year: "2020", Month: "04"}, a.Months()[0].Key)
	assert.Empty(t, a.Months()[0].Series(TMAX))

	rows, err := a.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "05/1/2020", rows[0].Date())
}

func TestAggregator_NonNumericValueIsFatal(t *testing.T) {
	a := NewAggregator(discardLogger(), DayCountPRCP)
	require.NoError(t, a.Add(transcoded(t, 2020, 6, "PRCP", "1", "2", "3")))
	require.NoError(t, a.Add(transcoded(t, 2020, 6, "TMAX", "1", "abc")))

	rows, err := a.Rows()
	require.Error(t, err)
	assert.Nil(t, rows)

	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, MonthKey{Year: "2020", Month: "06"}, de.Month)
	assert.Equal(t, TMAX, de.Element)
	assert.Equal(t, 2, de.Day)
	assert.Equal(t, "abc", de.Token)
	assert.Contains(t, err.Error(), "2020-06 TMAX day 2")
}

func TestAggregator_NaNIsFatal(t *testing.T) {
	a := NewAggregator(discardLogger(), DayCountPRCP)
	require.NoError(t, a.Add(transcoded(t, 2020, 6, "PRCP", "NaN")))

	_, err := a.Rows()
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, PRCP, de.Element)
}

func TestAggregator_Add_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too short", "USC0047919"},
		{"bad group", testHeader + ",1|2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAggregator(discardLogger(), DayCountPRCP).Add(tt.line)
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, 1, de.Line)
		})
	}
}

func TestAggregator_Consume(t *testing.T) {
	var b strings.Builder
	for month := 1; month <= 2; month++ {
		b.WriteString(transcoded(t, 2020, month, "PRCP", strconv.Itoa(month*10)))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	a := NewAggregator(discardLogger(), DayCountPRCP)
	require.NoError(t, a.Consume(context.Background(), strings.NewReader(b.String())))

	rows, err := a.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "1.0", rows[0].Reading(PRCP).Value)
	assert.Equal(t, "02/1/2020", rows[1].Date())
}

func TestParseDayCountPolicy(t *testing.T) {
	p, ok := ParseDayCountPolicy("max")
	assert.True(t, ok)
	assert.Equal(t, DayCountMax, p)

	p, ok = ParseDayCountPolicy("prcp")
	assert.True(t, ok)
	assert.Equal(t, DayCountPRCP, p)

	_, ok = ParseDayCountPolicy("longest")
	assert.False(t, ok)
}

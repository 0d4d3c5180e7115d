package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// sentinelLimit bounds plausible converted values; anything at or beyond it
// is the archive's missing-value marker.
const sentinelLimit = 999

var errNotFinite = errors.New("value is not a finite number")

// Reading is one element's cell group in an output row.
type Reading struct {
	Value    string  // formatted value, empty when absent or missing
	Number   float64 // converted value, meaningful only when HasValue
	HasValue bool
	MFlag    string
	QFlag    string
	SFlag    string
}

// OutputRow is one day of the wide table.
type OutputRow struct {
	Station  string
	Month    MonthKey
	Day      int // 1-based day of month
	Readings [len(Elements)]Reading
}

// Date renders the row date as month/day/year, keeping the month exactly as
// parsed and the day unpadded, e.g. "02/1/2020".
func (r OutputRow) Date() string {
	return r.Month.Month + "/" + strconv.Itoa(r.Day) + "/" + r.Month.Year
}

// ISODate renders the row date as YYYY-MM-DD.
func (r OutputRow) ISODate() string {
	day := strconv.Itoa(r.Day)
	if r.Day < 10 {
		day = "0" + day
	}
	return r.Month.Year + "-" + r.Month.Month + "-" + day
}

// Reading returns the cell group for e.
func (r OutputRow) Reading(e Element) Reading {
	i := e.index()
	if i < 0 {
		return Reading{}
	}
	return r.Readings[i]
}

// Fields renders the row as the 25 columns named by Header.
func (r OutputRow) Fields() []string {
	out := make([]string, 0, 1+len(r.Readings)*4)
	out = append(out, r.Date())
	for _, rd := range r.Readings {
		out = append(out, rd.Value, rd.MFlag, rd.QFlag, rd.SFlag)
	}
	return out
}

// String joins Fields with commas.
func (r OutputRow) String() string {
	return strings.Join(r.Fields(), ",")
}

// convertReading turns a raw observation into an output cell group. Scaled
// elements are divided by 10 and always carry a fractional digit; snow
// elements keep their raw integer form. Values at or beyond the sentinel
// limit are blanked.
func convertReading(e Element, obs Observation) (Reading, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(obs.Value), 64)
	if err != nil {
		return Reading{}, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Reading{}, errNotFinite
	}
	if e.Scaled() {
		v /= 10
	}

	rd := Reading{MFlag: obs.MFlag, QFlag: obs.QFlag, SFlag: obs.SFlag}
	if v >= sentinelLimit || v <= -sentinelLimit {
		return rd, nil
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if e.Scaled() && !strings.Contains(s, ".") {
		s += ".0"
	}
	rd.Value = s
	rd.Number = v
	rd.HasValue = true
	return rd, nil
}

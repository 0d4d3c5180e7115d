package domain

// MonthKey identifies a calendar month exactly as it appears in the record
// header: a 4-digit year and a zero-padded 2-digit month.
type MonthKey struct {
	Year  string
	Month string
}

func (k MonthKey) String() string { return k.Year + "-" + k.Month }

// MonthlyRecord accumulates the day sequences of every tracked element for one month.
type MonthlyRecord struct {
	Key     MonthKey
	Station string

	series [len(Elements)][]Observation
}

func newMonthlyRecord(key MonthKey, station string) *MonthlyRecord {
	return &MonthlyRecord{Key: key, Station: station}
}

// Series returns the day sequence for e. Index 0 is day 1. Elements never
// seen for the month have an empty sequence.
func (m *MonthlyRecord) Series(e Element) []Observation {
	i := e.index()
	if i < 0 {
		return nil
	}
	return m.series[i]
}

// set replaces the sequence for e; a second line for the same element wins.
func (m *MonthlyRecord) set(e Element, obs []Observation) {
	m.series[e.index()] = obs
}

// DayCountPolicy selects how many day rows a month produces.
type DayCountPolicy int

const (
	// DayCountPRCP uses the PRCP sequence length, so months without a PRCP
	// record produce no rows.
	DayCountPRCP DayCountPolicy = iota
	// DayCountMax uses the longest sequence among the tracked elements.
	DayCountMax
)

// ParseDayCountPolicy accepts "prcp" or "max".
func ParseDayCountPolicy(s string) (DayCountPolicy, bool) {
	switch s {
	case "prcp":
		return DayCountPRCP, true
	case "max":
		return DayCountMax, true
	default:
		return DayCountPRCP, false
	}
}

func (p DayCountPolicy) String() string {
	if p == DayCountMax {
		return "max"
	}
	return "prcp"
}

// DayCount returns the number of output rows m yields under policy p.
func (m *MonthlyRecord) DayCount(p DayCountPolicy) int {
	if p == DayCountMax {
		n := 0
		for _, s := range m.series {
			n = max(n, len(s))
		}
		return n
	}
	return len(m.Series(PRCP))
}

package domain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// DecodeError identifies an intermediate record or value the aggregator
// could not interpret. It is fatal for the aggregation pass.
type DecodeError struct {
	Line    int // 1-based intermediate line, 0 when raised while pivoting
	Month   MonthKey
	Element Element
	Day     int // 1-based day, 0 when not day specific
	Token   string
	Err     error
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode")
	if e.Line > 0 {
		fmt.Fprintf(&b, " line %d", e.Line)
	}
	if e.Month != (MonthKey{}) {
		fmt.Fprintf(&b, " %s", e.Month)
	}
	if e.Element != "" {
		fmt.Fprintf(&b, " %s", e.Element)
	}
	if e.Day > 0 {
		fmt.Fprintf(&b, " day %d", e.Day)
	}
	fmt.Fprintf(&b, " %q: %v", e.Token, e.Err)
	return b.String()
}

func (e *DecodeError) Unwrap() error { return e.Err }

var errRecordTooShort = errors.New("record shorter than station and date prefix")

// Aggregator groups transcoded records into monthly buckets and pivots them
// into day rows. Months are kept in first-seen order. An Aggregator is used
// for one pass and is not safe for concurrent use.
type Aggregator struct {
	logger *slog.Logger
	policy DayCountPolicy
	months []*MonthlyRecord
	index  map[MonthKey]*MonthlyRecord
	lines  int
}

// NewAggregator creates an empty aggregator using policy to size each month.
func NewAggregator(logger *slog.Logger, policy DayCountPolicy) *Aggregator {
	return &Aggregator{
		logger: logger,
		policy: policy,
		index:  make(map[MonthKey]*MonthlyRecord),
	}
}

// Add consumes one transcoded record. Records for untracked elements still
// register their month but otherwise have no effect.
func (a *Aggregator) Add(line string) error {
	a.lines++
	line = strings.TrimRight(line, "\r\n")
	if len(line) < monthKeyEnd {
		return &DecodeError{Line: a.lines, Token: line, Err: errRecordTooShort}
	}

	key := MonthKey{Year: line[monthKeyStart : monthKeyStart+4], Month: line[monthKeyStart+4 : monthKeyEnd]}
	m, ok := a.index[key]
	if !ok {
		m = newMonthlyRecord(key, strings.TrimSpace(line[:stationWidth]))
		a.index[key] = m
		a.months = append(a.months, m)
		a.logger.Debug("new month", "month", key.String(), "station", m.Station)
	}

	tokens := strings.Split(strings.TrimSpace(line[monthKeyEnd:]), ",")
	elem, ok := ParseElement(tokens[0])
	if !ok {
		a.logger.Debug("ignoring untracked element", "element", tokens[0], "month", key.String())
		return nil
	}

	obs := make([]Observation, 0, len(tokens)-1)
	for i, tok := range tokens[1:] {
		o, err := ParseObservation(tok)
		if err != nil {
			return &DecodeError{Line: a.lines, Month: key, Element: elem, Day: i + 1, Token: tok, Err: err}
		}
		obs = append(obs, o)
	}
	m.set(elem, obs)
	return nil
}

// Consume feeds every line of an intermediate stream to Add.
func (a *Aggregator) Consume(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), 64*1024)
	for sc.Scan() {
		if a.lines%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if strings.TrimSpace(sc.Text()) == "" {
			a.lines++
			continue
		}
		if err := a.Add(sc.Text()); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read intermediate records: %w", err)
	}
	return nil
}

// Months returns the monthly records in first-seen order.
func (a *Aggregator) Months() []*MonthlyRecord {
	return a.months
}

// Rows pivots every month into day rows. A value that fails numeric
// conversion aborts the whole pivot; no partial result is returned.
func (a *Aggregator) Rows() ([]OutputRow, error) {
	var rows []OutputRow
	for _, m := range a.months {
		days := m.DayCount(a.policy)
		for d := range days {
			row := OutputRow{Station: m.Station, Month: m.Key, Day: d + 1}
			for i, e := range Elements {
				series := m.series[i]
				if d >= len(series) {
					continue
				}
				rd, err := convertReading(e, series[d])
				if err != nil {
					return nil, &DecodeError{Month: m.Key, Element: e, Day: d + 1, Token: series[d].Value, Err: err}
				}
				row.Readings[i] = rd
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

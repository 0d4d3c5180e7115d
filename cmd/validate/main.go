// Command validate cross-checks a converted daily table against the .dly file
// it came from. It re-reads the fixed-width source independently of the
// transcoder and verifies the header, the month and day layout, every value,
// and every flag.
//
// Usage:
//
//	go run ./cmd/validate -dly data/mock/USC00479190.dly -csv USC00479190.csv
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// slot is one raw day reading as it appears in the fixed-width file.
type slot struct {
	raw   string
	flags [3]string
}

// sourceMonth collects the last-seen series per tracked element for a month.
type sourceMonth struct {
	key    string // YYYYMM
	series map[domain.Element][]slot
}

func main() {
	dlyPath := flag.String("dly", "", "path to the source .dly file")
	csvPath := flag.String("csv", "", "path to the converted CSV table")
	policyName := flag.String("policy", "prcp", "day count policy used for the conversion: prcp or max")
	flag.Parse()

	if *dlyPath == "" || *csvPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	policy, ok := domain.ParseDayCountPolicy(*policyName)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: invalid -policy %q\n", *policyName)
		os.Exit(1)
	}

	if code := run(*dlyPath, *csvPath, policy); code != 0 {
		os.Exit(code)
	}
}

func run(dlyPath, csvPath string, policy domain.DayCountPolicy) int {
	fmt.Println("=== GHCN-Daily Conversion Validation ===")
	fmt.Println()

	months, err := loadDLY(dlyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load .dly: %v\n", err)
		return 1
	}
	rows, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateHeader(rows),
		validateLayout(months, rows, policy),
		validateValues(months, rows, policy),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Source: %d months; table: %d day rows\n", len(months), max(len(rows)-1, 0))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

// loadDLY reads the fixed-width file directly, in first-seen month order.
func loadDLY(path string) ([]*sourceMonth, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var months []*sourceMonth
	index := map[string]*sourceMonth{}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 512), 64*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if len(line) < 21 {
			continue
		}
		key := line[11:17]
		m, ok := index[key]
		if !ok {
			m = &sourceMonth{key: key, series: map[domain.Element][]slot{}}
			index[key] = m
			months = append(months, m)
		}
		el, ok := domain.ParseElement(line[17:21])
		if !ok {
			continue
		}
		var series []slot
		for i := 21; i+8 <= len(line); i += 8 {
			s := slot{raw: strings.TrimSpace(line[i : i+5])}
			for j := range 3 {
				s.flags[j] = strings.TrimSpace(line[i+5+j : i+6+j])
			}
			series = append(series, s)
		}
		m.series[el] = series
	}
	return months, sc.Err()
}

func loadCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return csv.NewReader(f).ReadAll()
}

func validateHeader(rows [][]string) *phase {
	p := &phase{name: "Header matches 25-column layout"}
	if len(rows) == 0 {
		p.errorf("table is empty")
		return p
	}
	if !slices.Equal(rows[0], domain.Header()) {
		p.errorf("header = %v, want %v", rows[0], domain.Header())
	}
	return p
}

func dayCount(m *sourceMonth, policy domain.DayCountPolicy) int {
	if policy == domain.DayCountMax {
		n := 0
		for _, s := range m.series {
			n = max(n, len(s))
		}
		return n
	}
	return len(m.series[domain.PRCP])
}

func expectedDate(m *sourceMonth, day int) string {
	return fmt.Sprintf("%s/%d/%s", m.key[4:6], day, m.key[:4])
}

func validateLayout(months []*sourceMonth, rows [][]string, policy domain.DayCountPolicy) *phase {
	p := &phase{name: "Months and days in source order"}
	want := 0
	for _, m := range months {
		want += dayCount(m, policy)
	}
	if got := max(len(rows)-1, 0); got != want {
		p.errorf("table has %d day rows, source implies %d", got, want)
	}

	r := 1
	for _, m := range months {
		for d := 1; d <= dayCount(m, policy); d++ {
			if r >= len(rows) {
				return p
			}
			if got := rows[r][0]; got != expectedDate(m, d) {
				p.errorf("row %d: date %q, want %q", r, got, expectedDate(m, d))
			}
			r++
		}
	}
	return p
}

func validateValues(months []*sourceMonth, rows [][]string, policy domain.DayCountPolicy) *phase {
	p := &phase{name: "Values and flags match source"}
	r := 1
	for _, m := range months {
		for d := range dayCount(m, policy) {
			if r >= len(rows) {
				return p
			}
			row := rows[r]
			if len(row) != len(domain.Header()) {
				p.errorf("row %d: %d columns", r, len(row))
				r++
				continue
			}
			for i, el := range domain.Elements {
				col := 1 + i*4
				var s slot
				if series := m.series[el]; d < len(series) {
					s = series[d]
				}
				checkValue(p, r, el, s.raw, row[col])
				for j := range 3 {
					if row[col+1+j] != s.flags[j] {
						p.errorf("row %d %s flag %d: %q, want %q", r, el, j, row[col+1+j], s.flags[j])
					}
				}
			}
			r++
		}
	}
	return p
}

func checkValue(p *phase, row int, el domain.Element, raw, got string) {
	if raw == "" {
		if got != "" {
			p.errorf("row %d %s: %q, want blank", row, el, got)
		}
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errorf("row %d %s: source value %q is not an integer", row, el, raw)
		return
	}
	want := float64(n)
	if el.Scaled() {
		want /= 10
	}
	if math.Abs(want) >= 999 {
		if got != "" {
			p.errorf("row %d %s: %q, want blank for sentinel %s", row, el, got, raw)
		}
		return
	}
	v, err := strconv.ParseFloat(got, 64)
	if err != nil {
		p.errorf("row %d %s: %q is not numeric (source %s)", row, el, got, raw)
		return
	}
	if math.Abs(v-want) > 1e-9 {
		p.errorf("row %d %s: %v, want %v", row, el, v, want)
	}
}

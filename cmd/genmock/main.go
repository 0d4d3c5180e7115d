// Command genmock writes a deterministic synthetic GHCN-Daily .dly file for
// development and load tests. Records are produced with the same fixed-width
// formatter the test suites use, so the output round-trips through the real
// transcoder and aggregator.
//
// Usage:
//
//	go run ./cmd/genmock -station USC00479190 -from 1990 -to 2020 -out data/mock/USC00479190.dly
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/ghcn-daily-etl/internal/domain"
)

// untracked elements appear in real files and must be ignored downstream.
var untracked = []string{"TAVG", "WESF", "WT01"}

type options struct {
	station string
	from    int
	to      int
	seed    uint64
	missing float64
	extra   bool
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	station := flag.String("station", "USC00479190", "station id written into every record")
	from := flag.Int("from", 2000, "first year")
	to := flag.Int("to", 2020, "last year (inclusive)")
	seed := flag.Uint64("seed", 42, "random seed")
	missing := flag.Float64("missing", 0.05, "probability that a day is reported as missing")
	extra := flag.Bool("extra", true, "include elements the converter does not track")
	out := flag.String("out", "", "output path for the .dly fixture")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if !domain.ValidStationID(*station) {
		return fmt.Errorf("invalid station id %q", *station)
	}
	if *from > *to {
		return fmt.Errorf("-from %d is after -to %d", *from, *to)
	}

	opts := options{station: *station, from: *from, to: *to, seed: *seed, missing: *missing, extra: *extra}
	records := generate(opts)

	if err := writeDLY(*out, records); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}
	log.Printf("wrote %d records to %s", len(records), *out)

	printStats(records)
	return nil
}

func generate(opts options) []domain.RawRecord {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))

	elements := make([]string, 0, len(domain.Elements)+len(untracked))
	for _, e := range domain.Elements {
		elements = append(elements, string(e))
	}
	if opts.extra {
		elements = append(elements, untracked...)
	}

	var records []domain.RawRecord
	for year := opts.from; year <= opts.to; year++ {
		for month := 1; month <= 12; month++ {
			days := daysIn(year, time.Month(month))
			for _, el := range elements {
				rec := domain.RawRecord{StationID: opts.station, Year: year, Month: month, Element: el}
				rec.Days = make([]domain.Observation, 31)
				for d := range 31 {
					if d >= days || rng.Float64() < opts.missing {
						rec.Days[d] = domain.MissingObservation()
						continue
					}
					rec.Days[d] = observe(rng, el, month)
				}
				records = append(records, rec)
			}
		}
	}
	return records
}

// observe draws one plausible reading in GHCN units (tenths of degrees C,
// tenths of mm, whole mm).
func observe(rng *rand.Rand, element string, month int) domain.Observation {
	// Seasonal swing peaking in July.
	season := math.Cos(2 * math.Pi * float64(month-7) / 12)
	obs := domain.Observation{SFlag: "7"}

	var v int
	switch element {
	case "TMAX":
		v = int(220 + 120*season + rng.NormFloat64()*40)
	case "TMIN":
		v = int(80 + 100*season + rng.NormFloat64()*35)
	case "TOBS", "TAVG":
		v = int(150 + 110*season + rng.NormFloat64()*40)
	case "PRCP":
		if rng.Float64() < 0.7 {
			v = 0
		} else {
			v = int(rng.ExpFloat64() * 60)
		}
		if v == 0 && rng.Float64() < 0.1 {
			obs.MFlag = "T"
		}
	case "SNOW", "WESF":
		if season < -0.5 && rng.Float64() < 0.2 {
			v = int(rng.ExpFloat64() * 30)
		}
	case "SNWD":
		if season < -0.5 {
			v = rng.IntN(150)
		}
	default:
		v = rng.IntN(2)
	}
	if rng.Float64() < 0.01 {
		obs.QFlag = "I"
	}
	obs.Value = strconv.Itoa(v)
	return obs
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func writeDLY(path string, records []domain.RawRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, rec := range records {
		if _, err := w.WriteString(domain.FormatRawRecord(rec) + "\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printStats(records []domain.RawRecord) {
	counts := map[string]int{}
	missing := map[string]int{}
	for _, rec := range records {
		for _, obs := range rec.Days {
			if obs.Value == strconv.Itoa(domain.MissingValue) {
				missing[rec.Element]++
				continue
			}
			counts[rec.Element]++
		}
	}

	keys := make([]string, 0, len(counts)+len(missing))
	seen := map[string]bool{}
	for _, m := range []map[string]int{counts, missing} {
		for k := range m {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	sort.Strings(keys)

	fmt.Println("\n--- Element Counts ---")
	for _, k := range keys {
		fmt.Printf("  %-5s %7d values %7d missing\n", k, counts[k], missing[k])
	}
}

package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Fixed-width layout of a .dly record.
const (
	headerWidth   = 21 // STATION(11) YEAR(4) MONTH(2) ELEMENT(4)
	slotWidth     = 8  // VALUE(5) MFLAG(1) QFLAG(1) SFLAG(1)
	valueWidth    = 5
	stationWidth  = 11
	monthKeyStart = stationWidth
	monthKeyEnd   = stationWidth + 6

	// MissingValue marks an unset day slot.
	MissingValue = -9999
)

// RawRecord is one physical .dly line: a station's values for one element over one month.
type RawRecord struct {
	StationID string
	Year      int
	Month     int
	Element   string
	Days      []Observation
}

// Observation is one day slot: the value token and its three single-character flags.
type Observation struct {
	Value string
	MFlag string
	QFlag string
	SFlag string
}

// String renders the observation as the pipe-separated group used in the
// intermediate format.
func (o Observation) String() string {
	return o.Value + "|" + o.MFlag + "|" + o.QFlag + "|" + o.SFlag
}

// ParseObservation splits a "VALUE|M|Q|S" group.
func ParseObservation(group string) (Observation, error) {
	parts := strings.Split(group, "|")
	if len(parts) != 4 {
		return Observation{}, fmt.Errorf("observation group %q: want 4 fields, got %d", group, len(parts))
	}
	return Observation{Value: parts[0], MFlag: parts[1], QFlag: parts[2], SFlag: parts[3]}, nil
}

// MissingObservation returns the slot written for a day without data.
func MissingObservation() Observation {
	return Observation{Value: strconv.Itoa(MissingValue)}
}

// FormatRawRecord encodes rec in the .dly fixed-width layout. Values are
// right-aligned in their 5-character field; empty flags become spaces.
func FormatRawRecord(rec RawRecord) string {
	var b strings.Builder
	b.Grow(headerWidth + len(rec.Days)*slotWidth)
	fmt.Fprintf(&b, "%-11.11s%04d%02d%-4.4s", rec.StationID, rec.Year, rec.Month, rec.Element)
	for _, d := range rec.Days {
		fmt.Fprintf(&b, "%5.5s%s%s%s", d.Value, flagChar(d.MFlag), flagChar(d.QFlag), flagChar(d.SFlag))
	}
	return b.String()
}

func flagChar(f string) string {
	if f == "" {
		return " "
	}
	return f[:1]
}

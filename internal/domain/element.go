package domain

// Element is a GHCN-Daily element code such as TMAX or PRCP.
type Element string

// Tracked elements, in output column order.
const (
	TMAX Element = "TMAX" // maximum temperature, tenths of degrees C
	TMIN Element = "TMIN" // minimum temperature, tenths of degrees C
	TOBS Element = "TOBS" // temperature at observation time, tenths of degrees C
	PRCP Element = "PRCP" // precipitation, tenths of mm
	SNOW Element = "SNOW" // snowfall, mm
	SNWD Element = "SNWD" // snow depth, mm
)

// Elements lists the tracked elements in the fixed column order of the output table.
var Elements = [...]Element{TMAX, TMIN, TOBS, PRCP, SNOW, SNWD}

// ParseElement maps an element code to a tracked Element. Codes outside the
// six tracked elements report false.
func ParseElement(code string) (Element, bool) {
	e := Element(code)
	if e.index() < 0 {
		return "", false
	}
	return e, true
}

// index returns the column position of e, or -1 when e is not tracked.
func (e Element) index() int {
	for i, t := range Elements {
		if t == e {
			return i
		}
	}
	return -1
}

// Scaled reports whether raw values are stored in tenths and must be divided by 10.
func (e Element) Scaled() bool {
	switch e {
	case TMAX, TMIN, TOBS, PRCP:
		return true
	default:
		return false
	}
}

// Header returns the 25 column names of the output table.
func Header() []string {
	cols := make([]string, 0, 1+len(Elements)*4)
	cols = append(cols, "Date")
	for _, e := range Elements {
		s := string(e)
		cols = append(cols, s, s+"_m", s+"_q", s+"_s")
	}
	return cols
}

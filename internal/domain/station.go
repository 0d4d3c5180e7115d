package domain

import "regexp"

// stationIDRe matches an 11-character GHCN station id, e.g. USC00479190.
var stationIDRe = regexp.MustCompile(`^[A-Z0-9]{11}$`)

// ValidStationID reports whether id has the shape of a GHCN station id.
func ValidStationID(id string) bool {
	return stationIDRe.MatchString(id)
}

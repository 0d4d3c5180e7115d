// Package domain models NOAA GHCN-Daily station records and their conversion
// into a per-day wide table.
//
// # Data Source
//
// Station files come from the Global Historical Climatology Network Daily
// archive (https://www.ncei.noaa.gov/pub/data/ghcn/daily/all/), one ".dly"
// file per station, e.g. USC00479190.dly (Whitewater, WI).
//
// # Record Layout
//
// Each line holds one element for one station-month:
//
//	columns  0-10  station id        USC00479190
//	columns 11-14  year              2020
//	columns 15-16  month             02
//	columns 17-20  element           TMAX
//	columns 21-    31 day slots of 8 characters each:
//	               VALUE(5) MFLAG(1) QFLAG(1) SFLAG(1)
//
// Values are signed integers, right aligned. -9999 marks a day without data,
// including the trailing slots of short months.
//
// # Units
//
//	TMAX, TMIN, TOBS  tenths of degrees C   -> divided by 10
//	PRCP              tenths of mm          -> divided by 10
//	SNOW, SNWD        mm                    -> raw integer
//
// After conversion any value at or beyond +/-999 is treated as missing and
// rendered as an empty cell.
//
// # Intermediate Format
//
// [TranscodeLine] rewrites a record as the 21-character header followed by
// comma separated "VALUE|M|Q|S" groups, one per slot. The [Aggregator] reads
// that form back, groups it by month, and pivots it into [OutputRow] values.
//
// # Day Count
//
// By default a month yields one row per PRCP slot ([DayCountPRCP]); a month
// with no PRCP record yields no rows even if other elements were reported.
// [DayCountMax] sizes each month by its longest element sequence instead.
package domain

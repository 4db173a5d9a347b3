package pgtype

import (
	"fmt"
	"strconv"
	"strings"

	"oggo/ogerr"
)

// Tick unit constants: ticks are 100 ns units, matching the source's
// internal representation.
const (
	TicksPerSecond = 10_000_000
	TicksPerMinute = 60 * TicksPerSecond
	TicksPerHour   = 60 * TicksPerMinute
	TicksPerDay    = 24 * TicksPerHour
	DaysPerMonth   = 30
)

// Interval is (months, days, ticks): PostgreSQL/openGauss interval
// values keep these three components distinct rather than collapsing to
// a single duration, because "1 month" is not a fixed number of days.
type Interval struct {
	Months int32
	Days   int32
	Ticks  int64
}

// TotalTicks flattens the interval to a single tick count using 30
// days per month and 24 hours per day.
func (iv Interval) TotalTicks() int64 {
	return int64(iv.Months)*DaysPerMonth*TicksPerDay + int64(iv.Days)*TicksPerDay + iv.Ticks
}

// Canonicalize folds Months into Days (at 30 days/month) and normalizes
// Ticks into (-TicksPerDay, TicksPerDay), carrying overflow into Days.
// Postcondition: 0 <= |Ticks| < TicksPerDay and Months == 0.
func Canonicalize(x Interval) Interval {
	days := int64(x.Days) + int64(x.Months)*DaysPerMonth
	days += x.Ticks / TicksPerDay
	ticks := x.Ticks % TicksPerDay
	return Interval{Months: 0, Days: int32(days), Ticks: ticks}
}

// JustifyInterval promotes tick overflow into days, then day overflow
// (past 30) into months, the way PostgreSQL's justify_interval does. It
// is idempotent: applying it twice yields the same result as once.
func JustifyInterval(x Interval) Interval {
	return justifyDays(justifyHours(x))
}

func justifyHours(x Interval) Interval {
	days := int64(x.Days) + x.Ticks/TicksPerDay
	ticks := x.Ticks % TicksPerDay
	return Interval{Months: x.Months, Days: int32(days), Ticks: ticks}
}

func justifyDays(x Interval) Interval {
	months := int64(x.Months) + int64(x.Days)/DaysPerMonth
	days := int64(x.Days) % DaysPerMonth
	return Interval{Months: int32(months), Days: int32(days), Ticks: x.Ticks}
}

// UnjustifyInterval collapses months and days back into a pure tick
// count (Months == 0, Days == 0). Because TotalTicks is invariant under
// any redistribution among months/days/ticks at the fixed 30-day/24-hour
// conversion factors, UnjustifyInterval(JustifyInterval(x)).Ticks ==
// x.TotalTicks() always holds.
func UnjustifyInterval(x Interval) Interval {
	return Interval{Ticks: x.TotalTicks()}
}

// Format renders an interval as "N year[s] M mon[s] D day[s]
// [±]HH:MM:SS[.frac]", omitting zero-valued leading fields.
func Format(iv Interval) string {
	var parts []string
	if iv.Months != 0 {
		years := iv.Months / 12
		mons := iv.Months % 12
		if years != 0 {
			parts = append(parts, pluralize(years, "year"))
		}
		if mons != 0 {
			parts = append(parts, pluralize(mons, "mon"))
		}
	}
	if iv.Days != 0 {
		parts = append(parts, pluralize(iv.Days, "day"))
	}

	ticks := iv.Ticks
	neg := ticks < 0
	if neg {
		ticks = -ticks
	}
	totalSeconds := ticks / TicksPerSecond
	frac := ticks % TicksPerSecond
	hh := totalSeconds / 3600
	mm := (totalSeconds % 3600) / 60
	ss := totalSeconds % 60
	timeStr := fmt.Sprintf("%02d:%02d:%02d", hh, mm, ss)
	if frac != 0 {
		fracStr := strings.TrimRight(fmt.Sprintf("%07d", frac), "0")
		timeStr += "." + fracStr
	}
	if neg {
		timeStr = "-" + timeStr
	}
	if ticks != 0 || len(parts) == 0 {
		parts = append(parts, timeStr)
	}
	return strings.Join(parts, " ")
}

func pluralize(n int32, unit string) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}
	if abs == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// Parse parses "N year[s] M mon[s] D day[s] [±]HH:MM:SS[.frac]", with
// every token optional and space-separated.
func Parse(s string) (Interval, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Interval{}, ogerr.New(ogerr.ConfigurationInvalid, "empty interval literal")
	}
	fields := strings.Fields(s)
	var months, days int32
	var timeStr string

	for i := 0; i < len(fields); {
		f := fields[i]
		if strings.Contains(f, ":") {
			if timeStr != "" {
				return Interval{}, ogerr.Newf(ogerr.ConfigurationInvalid, "multiple time-of-day fields in interval %q", s)
			}
			timeStr = f
			i++
			continue
		}
		num, err := strconv.ParseInt(f, 10, 32)
		if err != nil {
			return Interval{}, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid interval token %q", f)
		}
		if i+1 >= len(fields) {
			return Interval{}, ogerr.Newf(ogerr.ConfigurationInvalid, "interval token %q missing unit", f)
		}
		unit := strings.ToLower(fields[i+1])
		switch {
		case strings.HasPrefix(unit, "year"):
			months += int32(num) * 12
		case strings.HasPrefix(unit, "mon"):
			months += int32(num)
		case strings.HasPrefix(unit, "day"):
			days += int32(num)
		default:
			return Interval{}, ogerr.Newf(ogerr.ConfigurationInvalid, "unknown interval unit %q", fields[i+1])
		}
		i += 2
	}

	var ticks int64
	if timeStr != "" {
		neg := false
		switch {
		case strings.HasPrefix(timeStr, "-"):
			neg = true
			timeStr = timeStr[1:]
		case strings.HasPrefix(timeStr, "+"):
			timeStr = timeStr[1:]
		}
		hms := strings.SplitN(timeStr, ":", 3)
		if len(hms) != 3 {
			return Interval{}, ogerr.Newf(ogerr.ConfigurationInvalid, "invalid time-of-day %q in interval", timeStr)
		}
		hh, err := strconv.ParseInt(hms[0], 10, 64)
		if err != nil {
			return Interval{}, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid hours in interval")
		}
		mm, err := strconv.ParseInt(hms[1], 10, 64)
		if err != nil {
			return Interval{}, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid minutes in interval")
		}
		secParts := strings.SplitN(hms[2], ".", 2)
		ss, err := strconv.ParseInt(secParts[0], 10, 64)
		if err != nil {
			return Interval{}, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid seconds in interval")
		}
		var fracTicks int64
		if len(secParts) == 2 {
			fracStr := secParts[1]
			for len(fracStr) < 7 {
				fracStr += "0"
			}
			fracStr = fracStr[:7]
			fracTicks, err = strconv.ParseInt(fracStr, 10, 64)
			if err != nil {
				return Interval{}, ogerr.Wrapf(ogerr.ConfigurationInvalid, err, "invalid fractional seconds in interval")
			}
		}
		ticks = hh*TicksPerHour + mm*TicksPerMinute + ss*TicksPerSecond + fracTicks
		if neg {
			ticks = -ticks
		}
	}

	return Interval{Months: months, Days: days, Ticks: ticks}, nil
}

package pgtype

import "testing"

func TestLSNRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 0xFFFFFFFF, 0x1600000000, 0x16B374D848} {
		lsn := LSN(n)
		s := lsn.String()
		got, err := ParseLSN(s)
		if err != nil {
			t.Fatalf("ParseLSN(%q): %v", s, err)
		}
		if uint64(got) != n {
			t.Fatalf("round trip mismatch: %d -> %q -> %d", n, s, got)
		}
	}
}

func TestLSNFormatExact(t *testing.T) {
	lsn, err := ParseLSN("16/b374d848")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := lsn.String(); got != "16/B374D848" {
		t.Fatalf("String() = %q, want 16/B374D848", got)
	}
}

func TestIntervalCanonicalize(t *testing.T) {
	iv := Interval{Months: 2, Days: 3, Ticks: TicksPerDay*2 + 5}
	c := Canonicalize(iv)
	if c.Months != 0 {
		t.Fatalf("months = %d, want 0", c.Months)
	}
	if c.Ticks < 0 || c.Ticks >= TicksPerDay {
		if !(c.Ticks > -TicksPerDay && c.Ticks < TicksPerDay) {
			t.Fatalf("ticks out of range: %d", c.Ticks)
		}
	}
	if c.TotalTicks() != iv.TotalTicks() {
		t.Fatalf("canonicalize changed total ticks: %d != %d", c.TotalTicks(), iv.TotalTicks())
	}
}

func TestJustifyIntervalIdempotent(t *testing.T) {
	iv := Interval{Months: 1, Days: 45, Ticks: TicksPerDay + TicksPerHour}
	once := JustifyInterval(iv)
	twice := JustifyInterval(once)
	if once != twice {
		t.Fatalf("justify not idempotent: %+v != %+v", once, twice)
	}
}

func TestUnjustifyPreservesTotalTicks(t *testing.T) {
	iv := Interval{Months: 3, Days: 40, Ticks: -TicksPerHour}
	got := UnjustifyInterval(JustifyInterval(iv))
	if got.Ticks != iv.TotalTicks() {
		t.Fatalf("unjustify(justify(x)).Ticks = %d, want %d", got.Ticks, iv.TotalTicks())
	}
}

func TestIntervalParseFormat(t *testing.T) {
	cases := []string{
		"1 year 2 mons 3 days 04:05:06",
		"3 days 00:00:00",
		"-01:02:03",
		"5 mons",
	}
	for _, s := range cases {
		iv, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		out := Format(iv)
		iv2, err := Parse(out)
		if err != nil {
			t.Fatalf("Parse(Format(%q)=%q): %v", s, out, err)
		}
		if iv != iv2 {
			t.Fatalf("round trip mismatch for %q: %+v != %+v (via %q)", s, iv, iv2, out)
		}
	}
}

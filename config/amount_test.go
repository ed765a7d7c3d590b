package config

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"0", 0},
		{"1", 100_000_000},
		{"1.5", 150_000_000},
		{"0.00000001", 1},
		{".5", 50_000_000},
		{"21000000", 21_000_000 * Coin},
		{"  2.25  ", 225_000_000},
		{"0.1", 10_000_000},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Errorf("ParseAmount(%q) failed: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"-1",
		"1.123456789", // ninth decimal place
		"abc",
		"1.2.3",
		"1e8",
		"200000000000", // overflows uint64 base units
	}
	for _, in := range cases {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) accepted, want error", in)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{1, "0.00000001"},
		{100_000_000, "1"},
		{150_000_000, "1.5"},
		{10_000_000, "0.1"},
		{123_456_789, "1.23456789"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in); got != tc.want {
			t.Errorf("FormatAmount(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAmountRoundTrip(t *testing.T) {
	for _, units := range []uint64{0, 1, 99, Coin, Coin + 1, 42*Coin + 12345678} {
		s := FormatAmount(units)
		back, err := ParseAmount(s)
		if err != nil {
			t.Fatalf("ParseAmount(FormatAmount(%d)) failed: %v", units, err)
		}
		if back != units {
			t.Errorf("round trip: %d -> %q -> %d", units, s, back)
		}
	}
}

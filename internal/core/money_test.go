package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
	}{
		{"5.000.000", 5000000},
		{"50000", 50000},
		{"1.500", 1500},
		{"999", 999},
		{" 25.000 ", 25000},
		{"0", 0},
		{"", 0},
		{"abc", 0},
		{"12,50", 0},
		{"-5000", 0},
		{"99999999999999999999", 0}, // overflows int64
	}
	for _, tc := range cases {
		if got := ParseAmount(tc.in); got != tc.out {
			t.Fatalf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.out)
		}
	}
}

func TestParseAmount_GroupedForms(t *testing.T) {
	// every \d{1,3}(\.\d{3})* string parses to the digits without separators
	cases := map[string]int64{
		"1":           1,
		"12":          12,
		"123":         123,
		"1.000":       1000,
		"12.345":      12345,
		"123.456.789": 123456789,
	}
	for in, want := range cases {
		if got := ParseAmount(in); got != want {
			t.Fatalf("ParseAmount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFormatRupiah(t *testing.T) {
	cases := []struct {
		in  int64
		out string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{460000, "Rp 460.000"},
		{5000000, "Rp 5.000.000"},
		{-40000, "-Rp 40.000"},
	}
	for _, tc := range cases {
		if got := FormatRupiah(tc.in); got != tc.out {
			t.Fatalf("FormatRupiah(%d) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

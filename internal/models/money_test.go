package models

import "testing"

func TestCentsFromDecimalString(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"0.01", 1},
		{"1.00", 100},
		{"12.50", 1250},
		{"12.5", 1250},
		{"100", 10000},
		{"0.015", 2}, // 网关不应出现三位小数，出现时四舍五入
	}
	for _, tc := range cases {
		got, err := CentsFromDecimalString(tc.input)
		if err != nil {
			t.Fatalf("%q failed: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("%q want %d got %d", tc.input, tc.want, got)
		}
	}

	for _, bad := range []string{"", "abc", "1.2.3"} {
		if _, err := CentsFromDecimalString(bad); err == nil {
			t.Fatalf("%q must fail", bad)
		}
	}
}

func TestCentsToDecimalString(t *testing.T) {
	cases := []struct {
		input int64
		want  string
	}{
		{1, "0.01"},
		{100, "1.00"},
		{1250, "12.50"},
		{10000000, "100000.00"},
	}
	for _, tc := range cases {
		if got := CentsToDecimalString(tc.input); got != tc.want {
			t.Fatalf("%d want %s got %s", tc.input, tc.want, got)
		}
	}
}

func TestCentsRoundTrip(t *testing.T) {
	for _, cents := range []int64{1, 99, 100, 101, 123456789} {
		back, err := CentsFromDecimalString(CentsToDecimalString(cents))
		if err != nil {
			t.Fatalf("round trip %d failed: %v", cents, err)
		}
		if back != cents {
			t.Fatalf("round trip want %d got %d", cents, back)
		}
	}
}

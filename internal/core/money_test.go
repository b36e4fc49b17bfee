package core

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"150000", 15000000, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseMoneyAllowsNegative(t *testing.T) {
	m, err := ParseMoney("-12.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Cents != -1250 {
		t.Fatalf("expected -1250, got %d", m.Cents)
	}
}

func TestMoneyJSON(t *testing.T) {
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 12.5, "b": "7,25"}`), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v.A.Cents != 1250 || v.B.Cents != 725 {
		t.Fatalf("got %d and %d", v.A.Cents, v.B.Cents)
	}
	out, _ := json.Marshal(v)
	if string(out) != `{"a":12.50,"b":7.25}` {
		t.Fatalf("got %s", out)
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		part, whole int64
		places      int32
		want        float64
	}{
		{600, 1000, 1, 60},
		{1, 3, 1, 33.3},
		{2, 3, 1, 66.7},
		{500, 1000, 2, 50},
		{5, 0, 1, 0},
	}
	for _, tc := range cases {
		got := Percent(Money{Cents: tc.part}, Money{Cents: tc.whole}, tc.places)
		if got != tc.want {
			t.Errorf("Percent(%d, %d) = %v, want %v", tc.part, tc.whole, got, tc.want)
		}
	}
}

func TestParseMoneyRejectsOverflow(t *testing.T) {
	for _, in := range []string{
		"184467440737095516.17",
		"92233720368547758.07",
		"-92233720368547758.08",
		"1e30",
	} {
		_, err := ParseMoney(in)
		if !errors.Is(err, ErrAmountOutOfRange) {
			t.Errorf("ParseMoney(%q) err = %v, want ErrAmountOutOfRange", in, err)
		}
		if _, err := ParseDecimalToCents(in); err == nil {
			t.Errorf("ParseDecimalToCents(%q) accepted an out-of-range amount", in)
		}
	}

	m, err := ParseMoney("92233720368547758.06")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Cents != math.MaxInt64-1 {
		t.Fatalf("got %d", m.Cents)
	}
}

func TestMoneyCheckedAdd(t *testing.T) {
	big := Money{Cents: math.MaxInt64 - 10}
	if _, err := big.CheckedAdd(Money{Cents: 11}); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := (Money{Cents: math.MinInt64 + 5}).CheckedAdd(Money{Cents: -6}); !errors.Is(err, ErrAmountOutOfRange) {
		t.Fatalf("expected underflow, got %v", err)
	}
	sum, err := big.CheckedAdd(Money{Cents: -20})
	if err != nil || sum.Cents != math.MaxInt64-30 {
		t.Fatalf("got %d (err=%v)", sum.Cents, err)
	}
}

package money

import "testing"

func TestPortionTruncates(t *testing.T) {
	if got := Portion(1001, 3333); got != 333 {
		t.Fatalf("expected 333, got %d", got)
	}
	if got := Portion(3000, 1000); got != 300 {
		t.Fatalf("expected 300, got %d", got)
	}
}

func TestPortionNeverExceedsBase(t *testing.T) {
	for _, amount := range []Money{1, 99, 1000, 123_456_789} {
		if got := Portion(amount, MaxBps); got > amount {
			t.Fatalf("portion %d exceeds base %d", got, amount)
		}
	}
}

func TestPercentToBps(t *testing.T) {
	if got := PercentToBps(10); got != 1000 {
		t.Fatalf("expected 1000 bps, got %d", got)
	}
	if got := PercentToBps(12.5); got != 1250 {
		t.Fatalf("expected 1250 bps, got %d", got)
	}
}

func TestDisplay(t *testing.T) {
	cases := map[Money]string{
		0:      "0.00",
		5:      "0.05",
		270000: "2700.00",
		-1234:  "-12.34",
	}
	for in, want := range cases {
		if got := Display(in); got != want {
			t.Fatalf("Display(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFromMajor(t *testing.T) {
	if got := FromMajor(12.345); got != 1235 {
		t.Fatalf("expected 1235, got %d", got)
	}
}

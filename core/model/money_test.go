package model

import "testing"

func TestMoneyPercentRoundsHalfUp(t *testing.T) {
	cases := []struct {
		amount int64
		pct    int64
		want   int64
	}{
		{10000, 12, 1200},
		{10000, 8, 800},
		{333, 12, 40}, // 39.96 rounds up
		{371, 12, 45}, // 44.52 rounds up
		{104, 12, 12}, // 12.48 rounds down
		{105, 10, 11}, // 10.50 rounds half up
		{100, 0, 0},
		{100, 100, 100},
	}
	for _, c := range cases {
		m := Money{Amount: c.amount, Currency: "EUR"}
		if got := m.Percent(c.pct); got.Amount != c.want {
			t.Fatalf("%d%% of %d: got %d want %d", c.pct, c.amount, got.Amount, c.want)
		}
	}
}

func TestMoneyArithmeticRequiresMatchingCurrency(t *testing.T) {
	eur := Money{Amount: 100, Currency: "EUR"}
	usd := Money{Amount: 100, Currency: "USD"}

	if _, err := eur.Add(usd); err == nil {
		t.Fatalf("add across currencies allowed")
	}
	if _, err := eur.Sub(usd); err == nil {
		t.Fatalf("sub across currencies allowed")
	}

	sum, err := eur.Add(Money{Amount: 50, Currency: "EUR"})
	if err != nil || sum.Amount != 150 {
		t.Fatalf("add: %v %+v", err, sum)
	}
	diff, err := eur.Sub(Money{Amount: 30, Currency: "EUR"})
	if err != nil || diff.Amount != 70 {
		t.Fatalf("sub: %v %+v", err, diff)
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Amount: 12345, Currency: "EUR"}).String(); got != "123.45 EUR" {
		t.Fatalf("got %q", got)
	}
}

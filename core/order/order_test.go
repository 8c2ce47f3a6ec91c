package order

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{Pending, Paid, true},
		{Pending, Canceled, true},
		{Pending, Pending, false},
		{Paid, Canceled, false},
		{Paid, Paid, false},
		{Paid, Pending, false},
		{Canceled, Paid, false},
		{Canceled, Pending, false},
	}

	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}

	if Pending.Terminal() {
		t.Error("pending must not be terminal")
	}
	if !Paid.Terminal() || !Canceled.Terminal() {
		t.Error("paid and canceled must be terminal")
	}
}

func TestExclusionWarning(t *testing.T) {
	got := exclusionWarning([]string{"Alien", "Brazil"})
	want := "WARNING! Movies: Alien, Brazil have not been added to the order" +
		" because they are already in your other orders awaiting payment."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

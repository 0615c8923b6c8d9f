package engine_test

import (
	"testing"

	"github.com/warp/budget-engine/engine"
)

func TestClassify_Grid(t *testing.T) {
	cases := []struct {
		approved  string
		remaining string
		want      engine.HealthStatus
	}{
		{"1000", "200", engine.StatusGreen},    // exactly the 20% threshold
		{"1000", "500", engine.StatusGreen},
		{"1000", "199.99", engine.StatusYellow},
		{"1000", "0.01", engine.StatusYellow},
		{"1000", "0", engine.StatusRed},
		{"1000", "-1", engine.StatusRed},
	}
	for _, c := range cases {
		got := engine.Classify(d(c.approved), d(c.remaining))
		if got != c.want {
			t.Errorf("Classify(%s, %s) = %s, want %s", c.approved, c.remaining, got, c.want)
		}
	}
}

func TestClassify_ZeroApproved_RedWhenSpending(t *testing.T) {
	// approved == 0 makes the 20% threshold vacuous. Policy: spending
	// against nothing is RED.
	if got := engine.Classify(d("0"), d("-5000")); got != engine.StatusRed {
		t.Errorf("got %s, want red", got)
	}
	if got := engine.Classify(d("0"), d("0")); got != engine.StatusRed {
		t.Errorf("got %s, want red", got)
	}
}

func TestClassify_ZeroApproved_GreenWhenIdle(t *testing.T) {
	// Nothing approved, nothing spent or committed: GREEN.
	if got := engine.Classify(d("0"), d("100")); got != engine.StatusGreen {
		t.Errorf("got %s, want green", got)
	}
}

func TestClassify_NegativeApproved_FollowsZeroPolicy(t *testing.T) {
	if got := engine.Classify(d("-100"), d("-200")); got != engine.StatusRed {
		t.Errorf("got %s, want red", got)
	}
}

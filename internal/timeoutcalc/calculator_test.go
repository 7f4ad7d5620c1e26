package timeoutcalc

import "testing"

func TestComputeBaseCase(t *testing.T) {
	b := compute(0, 0)
	if b.TotalSeconds != 600 {
		t.Fatalf("expected base 600s, got %d", b.TotalSeconds)
	}
	if b.ConversionSeconds != 360 {
		t.Fatalf("expected 60%% of 600 = 360, got %d", b.ConversionSeconds)
	}
}

func TestComputeRespectsCeiling(t *testing.T) {
	b := compute(1<<40, 100000)
	if b.TotalSeconds != int(ceilingSeconds) {
		t.Fatalf("expected ceiling %d, got %d", int(ceilingSeconds), b.TotalSeconds)
	}
}

func TestComputeCountComponent(t *testing.T) {
	b := compute(0, 35)
	expected := 600 + 3 // floor(35/10)=3
	if b.TotalSeconds != expected {
		t.Fatalf("expected %d, got %d", expected, b.TotalSeconds)
	}
}

func TestCalculatorCaches(t *testing.T) {
	c := New()
	first := c.Compute("/tmp/project", 1000, 5)
	second := c.Compute("/tmp/project", 999999999, 999999)
	if first != second {
		t.Fatalf("expected cached budget to be reused: %+v vs %+v", first, second)
	}
}

package tuning

import "testing"

func TestClampToRange(t *testing.T) {
	if got := ClampToRange(5, 1, 10); got != 5 {
		t.Fatalf("expected 5, got %v", got)
	}
	if got := ClampToRange(0.5, 1, 10); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
	if got := ClampToRange(15, 1, 10); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
}

func TestClampStepCapsBothDirections(t *testing.T) {
	if got := ClampStep(100, 150); got != 125 {
		t.Fatalf("expected 125, got %v", got)
	}
	if got := ClampStep(100, 50); got != 75 {
		t.Fatalf("expected 75, got %v", got)
	}
	if got := ClampStep(100, 110); got != 110 {
		t.Fatalf("within cap should pass through, got %v", got)
	}
}

func TestStepDirection(t *testing.T) {
	if got := Step(8, 0.25, true); got != 10 {
		t.Fatalf("expected 10, got %v", got)
	}
	if got := Step(100, 0.05, false); got != 95 {
		t.Fatalf("expected 95, got %v", got)
	}
}

func TestEffectiveDetectsNoOp(t *testing.T) {
	if Effective(0.00012, 0.00012) {
		t.Fatalf("identical values are not an effective change")
	}
	if !Effective(0.0001, 0.000125) {
		t.Fatalf("real step must be effective")
	}
}

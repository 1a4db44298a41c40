package anomaly

import "testing"

func TestScoreZeroAtOrBelowThreshold(t *testing.T) {
	th := DefaultThresholds()
	if got := Score(0, 0, th); got != 0 {
		t.Fatalf("score at zero = %d", got)
	}
	if got := Score(th.MaxScans, th.MaxXP, th); got != 0 {
		t.Fatalf("score at threshold = %d", got)
	}
}

func TestScoreRisesWithExcess(t *testing.T) {
	th := DefaultThresholds()
	low := Score(th.MaxScans+5, 0, th)
	high := Score(th.MaxScans+25, 0, th)
	if low <= 0 {
		t.Fatalf("score above threshold = %d, want positive", low)
	}
	if high <= low {
		t.Fatalf("score not monotonic: %d then %d", low, high)
	}
}

func TestScoreSaturates(t *testing.T) {
	th := DefaultThresholds()
	if got := Score(th.MaxScans*10, 0, th); got != 100 {
		t.Fatalf("saturated scan score = %d, want 100", got)
	}
	if got := Score(0, th.MaxXP*10, th); got != 100 {
		t.Fatalf("saturated xp score = %d, want 100", got)
	}
}

func TestScoreTakesWorstMeasure(t *testing.T) {
	th := DefaultThresholds()
	scansOnly := Score(th.MaxScans*2, 0, th)
	both := Score(th.MaxScans*2, th.MaxXP+1, th)
	if both < scansOnly {
		t.Fatalf("combined score %d below single-measure score %d", both, scansOnly)
	}
}

// A burst of rapid scans, like 200 attempts in a minute where the per-day
// rule lets only a handful through as valid, still trips the scan measure
// once the valid count exceeds the limit.
func TestBurstScanningLooksSuspicious(t *testing.T) {
	th := DefaultThresholds()
	score := Score(th.MaxScans+150, 0, th)
	if !Suspicious(score) {
		t.Fatalf("burst score %d should be suspicious", score)
	}
}

func TestSuspicious(t *testing.T) {
	if Suspicious(0) {
		t.Fatal("zero score is not suspicious")
	}
	if !Suspicious(1) {
		t.Fatal("any positive score is suspicious")
	}
}

package classifier

import (
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-smartspar/pkg/pose"
	"github.com/teslashibe/go-smartspar/pkg/pose/posetest"
)

var t0 = time.Unix(1_700_000_000, 0)

const fps30 = time.Second / 30

func at(d time.Duration) time.Time {
	return t0.Add(d)
}

func TestProcess_NoDetection(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Process(nil, t0)

	if res.Detected || res.Err != nil || res.Punch != nil || res.GuardDropped {
		t.Errorf("nil frame should produce an empty result, got %+v", res)
	}
	if c.leftWrist.Len() != 0 || c.rightWrist.Len() != 0 {
		t.Error("buffers must not be updated without a detection")
	}
}

func TestProcess_MalformedFrameLeavesStateUntouched(t *testing.T) {
	c := New(DefaultConfig())
	c.Process(posetest.Guard(), t0)

	res := c.Process(posetest.Without(posetest.Jab(), pose.LeftElbow), at(fps30))

	if !errors.Is(res.Err, pose.ErrMalformedFrame) {
		t.Fatalf("expected ErrMalformedFrame, got %v", res.Err)
	}
	if res.Detected || res.Punch != nil {
		t.Errorf("malformed frame must not classify, got %+v", res)
	}
	if c.leftWrist.Len() != 1 {
		t.Errorf("buffer Len = %d, want 1", c.leftWrist.Len())
	}
	if !c.LastFired(Jab).IsZero() {
		t.Error("cooldown must not change on a dropped frame")
	}
}

func TestProcess_GuardLabels(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Process(posetest.Guard(), t0)
	if !res.GuardUp || len(res.Feedback) == 0 || res.Feedback[0].Label != GuardUpLabel {
		t.Errorf("guard up expected, got %+v", res)
	}

	res = c.Process(posetest.GuardDown(), at(fps30))
	if res.GuardUp || res.Feedback[0].Label != GuardDownLabel {
		t.Errorf("guard down expected, got %+v", res)
	}
	if res.Feedback[0].Color != ColorAlert {
		t.Errorf("guard down should be an alert color")
	}
}

func TestProcess_GuardDropIsEdgeTriggered(t *testing.T) {
	c := New(DefaultConfig())

	drops := 0
	now := t0
	step := func(f *pose.Frame) {
		if c.Process(f, now).GuardDropped {
			drops++
		}
		now = now.Add(fps30)
	}

	step(posetest.GuardDown())
	for i := 0; i < 20; i++ {
		step(posetest.GuardDown())
	}
	step(posetest.Guard())

	if drops != 1 {
		t.Errorf("drops = %d, want 1", drops)
	}

	step(posetest.GuardDown())
	step(posetest.GuardDown())
	if drops != 2 {
		t.Errorf("second drop not counted: drops = %d, want 2", drops)
	}
}

func TestProcess_GuardDownSuppressesPunches(t *testing.T) {
	c := New(DefaultConfig())

	f := posetest.Jab()
	f.Set(pose.RightWrist, pose.Point{X: 0.40, Y: 0.70})

	res := c.Process(f, t0)
	if res.GuardUp {
		t.Fatal("right hand dropped, guard should be down")
	}
	if res.Punch != nil {
		t.Errorf("no punch while guard is down, got %+v", res.Punch)
	}
	if !c.LastFired(Jab).IsZero() {
		t.Error("suppressed rules must not start a cooldown")
	}
}

func TestProcess_Jab(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Process(posetest.Jab(), t0)
	if res.Punch == nil || res.Punch.Type != Jab || res.Punch.Side != Left {
		t.Fatalf("expected left Jab, got %+v", res.Punch)
	}
	if !res.Counted {
		t.Error("first punch should count")
	}
	if !c.LastFired(Jab).Equal(t0) {
		t.Errorf("Jab cooldown = %v, want %v", c.LastFired(Jab), t0)
	}
}

func TestProcess_Cross(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Process(posetest.Cross(), t0)
	if res.Punch == nil || res.Punch.Type != Cross || res.Punch.Side != Right {
		t.Fatalf("expected right Cross, got %+v", res.Punch)
	}
}

func TestProcess_PriorityAndIndependentCooldowns(t *testing.T) {
	c := New(DefaultConfig())

	both := posetest.Jab()
	cross := posetest.Cross()
	for _, l := range []pose.Landmark{pose.RightShoulder, pose.RightElbow, pose.RightWrist} {
		p, _ := cross.Get(l)
		both.Set(l, p)
	}

	res := c.Process(both, t0)
	if res.Punch == nil || res.Punch.Type != Jab {
		t.Fatalf("Jab has priority over Cross, got %+v", res.Punch)
	}
	if !c.LastFired(Cross).IsZero() {
		t.Error("only the winning rule updates its cooldown")
	}

	// Jab is cooling down, so the frame falls through to Cross.
	res = c.Process(both, at(100*time.Millisecond))
	if res.Punch == nil || res.Punch.Type != Cross {
		t.Fatalf("expected Cross while Jab cools down, got %+v", res.Punch)
	}

	// Both cooling down: nothing fires.
	res = c.Process(both, at(200*time.Millisecond))
	if res.Punch != nil {
		t.Errorf("expected no punch, got %+v", res.Punch)
	}
}

func TestProcess_SustainedJabCountsOnce(t *testing.T) {
	c := New(DefaultConfig())

	classified, counted := 0, 0
	frames := int((600 * time.Millisecond) / fps30)
	for i := 0; i < frames; i++ {
		res := c.Process(posetest.Jab(), at(time.Duration(i)*fps30))
		if res.Punch != nil {
			classified++
		}
		if res.Counted {
			counted++
		}
	}

	if counted != 1 {
		t.Errorf("counted = %d, want 1 over %d frames", counted, frames)
	}
	if classified > 2 {
		t.Errorf("classified = %d, cooldown should limit firings", classified)
	}
}

func TestProcess_CombinationCountsEachType(t *testing.T) {
	c := New(DefaultConfig())

	first := c.Process(posetest.Jab(), t0)
	second := c.Process(posetest.Cross(), at(100*time.Millisecond))

	if !first.Counted || !second.Counted {
		t.Errorf("Jab then Cross inside the count window should both count: %v %v",
			first.Counted, second.Counted)
	}
}

func TestProcess_SameTypeDeduplication(t *testing.T) {
	c := New(DefaultConfig())

	tests := []struct {
		offset  time.Duration
		fired   bool
		counted bool
	}{
		{0, true, true},
		{200 * time.Millisecond, false, false}, // punch cooldown
		{450 * time.Millisecond, true, false},  // fires, but inside count window
		{1000 * time.Millisecond, true, true},  // outside both
	}

	for _, tt := range tests {
		res := c.Process(posetest.Jab(), at(tt.offset))
		if (res.Punch != nil) != tt.fired {
			t.Errorf("at %v: fired = %v, want %v", tt.offset, res.Punch != nil, tt.fired)
		}
		if res.Counted != tt.counted {
			t.Errorf("at %v: counted = %v, want %v", tt.offset, res.Counted, tt.counted)
		}
	}
}

func TestProcess_Hook(t *testing.T) {
	c := New(DefaultConfig())

	res := c.Process(posetest.Hook(0.60), t0)
	if res.Punch != nil {
		t.Fatalf("no motion yet, got %+v", res.Punch)
	}

	res = c.Process(posetest.Hook(0.65), at(fps30))
	if res.Punch == nil || res.Punch.Type != Hook || res.Punch.Side != Left {
		t.Fatalf("expected left Hook, got %+v", res.Punch)
	}
}

func TestProcess_HookNeedsEnoughMotion(t *testing.T) {
	c := New(DefaultConfig())

	c.Process(posetest.Hook(0.60), t0)
	res := c.Process(posetest.Hook(0.61), at(fps30))

	if res.Punch != nil {
		t.Errorf("0.01 sweep is below the hook minimum, got %+v", res.Punch)
	}
}

func TestProcess_Uppercut(t *testing.T) {
	c := New(DefaultConfig())

	c.Process(posetest.Uppercut(0.42), t0)
	res := c.Process(posetest.Uppercut(0.35), at(fps30))

	if res.Punch == nil || res.Punch.Type != Uppercut || res.Punch.Side != Right {
		t.Fatalf("expected right Uppercut, got %+v", res.Punch)
	}
}

func TestProcess_UppercutAboveNoseIgnored(t *testing.T) {
	c := New(DefaultConfig())

	c.Process(posetest.Uppercut(0.25), t0)
	res := c.Process(posetest.Uppercut(0.15), at(fps30))

	if res.Punch != nil {
		t.Errorf("wrist above the nose is not an uppercut, got %+v", res.Punch)
	}
}

func TestProcess_DisplaySmoothing(t *testing.T) {
	c := New(DefaultConfig())

	c.Process(posetest.Jab(), t0)

	res := c.Process(posetest.Guard(), at(500*time.Millisecond))
	if len(res.Feedback) != 2 || res.Feedback[1].Label != "[OK] Jab" {
		t.Errorf("label should persist inside the display window, got %+v", res.Feedback)
	}
	if res.Punch != nil || res.Counted {
		t.Error("display smoothing must not create punches")
	}

	res = c.Process(posetest.Guard(), at(1100*time.Millisecond))
	if len(res.Feedback) != 1 {
		t.Errorf("label should expire after the display window, got %+v", res.Feedback)
	}
}

func TestProcess_Deterministic(t *testing.T) {
	seq := []*pose.Frame{
		posetest.Guard(), posetest.Jab(), posetest.Hook(0.6), posetest.Hook(0.66),
		nil, posetest.Uppercut(0.42), posetest.Uppercut(0.34), posetest.GuardDown(),
	}

	run := func() []Result {
		c := New(DefaultConfig())
		out := make([]Result, len(seq))
		for i, f := range seq {
			out[i] = c.Process(f, at(time.Duration(i)*100*time.Millisecond))
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		pa, pb := a[i].Punch, b[i].Punch
		if (pa == nil) != (pb == nil) || (pa != nil && *pa != *pb) || a[i].Counted != b[i].Counted {
			t.Fatalf("frame %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

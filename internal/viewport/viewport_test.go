package viewport

import (
	"image"
	"math"
	"testing"
)

const epsilon = 1e-9

func newViewport(minDepth, maxDepth, width, height float64) *Viewport {
	v := New()
	v.SetDepthRange(minDepth, maxDepth)
	v.Resize(width, height)
	return v
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= epsilon*math.Max(1, math.Abs(b))
}

func TestViewport_AxisRange(t *testing.T) {
	v := newViewport(10, 110, 800, 600)

	axisMin, axisMax := v.AxisRange()
	if axisMax != -10 || axisMin != -110 {
		t.Errorf("Expected axis [-110, -10], got [%v, %v]", axisMin, axisMax)
	}
	if d := v.DepthAt(600); !near(d, 110) {
		t.Errorf("Bottom edge should show 110m, got %v", d)
	}
	if d := v.DepthAt(300); !near(d, 60) {
		t.Errorf("Middle row should show 60m, got %v", d)
	}
}

func TestViewport_WheelKeepsDepthUnderCursor(t *testing.T) {
	steps := []struct {
		angle   float64
		fine    bool
		cursorY float64
	}{
		{120, false, 300},
		{120, false, 0},
		{240, true, 599},
		{-120, false, 150},
		{-960, false, 450},
		{-100000, false, 200}, // clamped at MinZoom
		{360, false, 10},
	}

	v := newViewport(0, 100, 800, 600)
	for i, s := range steps {
		before := v.DepthAt(s.cursorY)
		v.Wheel(s.angle, s.fine, s.cursorY)
		after := v.DepthAt(s.cursorY)

		if !near(after, before) {
			t.Errorf("Step %d: depth under cursor moved from %v to %v", i, before, after)
		}
		if v.Zoom() < MinZoom {
			t.Errorf("Step %d: zoom %v below minimum", i, v.Zoom())
		}
	}
}

func TestViewport_WheelScale(t *testing.T) {
	testCases := []struct {
		name   string
		angle  float64
		fine   bool
		expect float64
	}{
		{"one notch in", 120, false, math.Pow(2, 0.15)},
		{"one notch out", -120, false, math.Pow(2, -0.15)},
		{"fine notch", 120, true, math.Pow(2, 0.05)},
		{"clamped", -1e6, false, MinZoom},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := newViewport(0, 100, 800, 600)
			v.Wheel(tc.angle, tc.fine, 0)
			if !near(v.Zoom(), tc.expect) {
				t.Errorf("Expected zoom %v, got %v", tc.expect, v.Zoom())
			}
		})
	}
}

func TestViewport_WheelWithoutArea(t *testing.T) {
	v := newViewport(0, 100, 0, 0)

	v.Wheel(120, false, 50)
	if v.Zoom() <= 1 {
		t.Errorf("Expected zoom to change, got %v", v.Zoom())
	}
	if v.Pan() != 0 {
		t.Errorf("Expected pan untouched, got %v", v.Pan())
	}

	v.Wheel(math.NaN(), false, 0)
	v.Wheel(math.Inf(1), false, 0)
	if math.IsNaN(v.Zoom()) || math.IsInf(v.Zoom(), 0) {
		t.Errorf("Non-finite wheel delta corrupted zoom: %v", v.Zoom())
	}
}

func TestViewport_Drag(t *testing.T) {
	v := newViewport(0, 100, 800, 500)
	v.Wheel(8/ZoomPerDegree, false, 0) // zoom 2, axis range 50m

	v.Drag(400) // not dragging yet
	if v.Pan() != 0 {
		t.Fatalf("Move without press should not pan, got %v", v.Pan())
	}

	v.BeginDrag(100)
	v.Drag(200)
	if !near(v.Pan(), -10) {
		t.Errorf("Expected pan -10, got %v", v.Pan())
	}
	v.Drag(50)
	if !near(v.Pan(), 5) {
		t.Errorf("Expected pan 5, got %v", v.Pan())
	}

	v.EndDrag()
	v.Drag(500)
	if !near(v.Pan(), 5) {
		t.Errorf("Expected pan to stay at 5 after release, got %v", v.Pan())
	}
}

func TestViewport_Reset(t *testing.T) {
	v := newViewport(0, 100, 800, 500)
	v.Wheel(240, false, 250)
	v.BeginDrag(0)
	v.Drag(30)

	v.Reset()
	if v.Zoom() != 1 || v.Pan() != 0 {
		t.Errorf("Expected defaults after reset, got zoom %v pan %v", v.Zoom(), v.Pan())
	}

	// the gesture in progress was abandoned
	v.Drag(300)
	if v.Pan() != 0 {
		t.Errorf("Expected no pan after reset, got %v", v.Pan())
	}
}

func TestNiceTickInterval(t *testing.T) {
	testCases := []struct {
		name      string
		axisRange float64
		height    float64
		expect    float64
		ok        bool
	}{
		{"100m over 500px", 100, 500, 20, true},
		{"100m over 1000px", 100, 1000, 10, true},
		{"1m over 1000px", 1, 1000, 0.1, true},
		{"tiny range uses smallest candidate", 0.001, 1000, 0.1, true},
		{"30m over 600px", 30, 600, 5, true},
		{"huge range uses largest candidate", 1e20, 100, 5e15, true},
		{"zero range", 0, 500, 0, false},
		{"zero height", 100, 0, 0, false},
		{"NaN range", math.NaN(), 500, 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NiceTickInterval(tc.axisRange, tc.height, MinTickSpacing)
			if ok != tc.ok {
				t.Fatalf("Expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && !near(got, tc.expect) {
				t.Errorf("Expected interval %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestNiceTickInterval_Monotonic(t *testing.T) {
	prev := 0.0
	for r := 0.01; r < 1e7; r *= 1.07 {
		got, ok := NiceTickInterval(r, 600, MinTickSpacing)
		if !ok {
			t.Fatalf("range %v: no interval", r)
		}
		if got < prev {
			t.Fatalf("range %v: interval %v smaller than %v for a smaller range", r, got, prev)
		}
		if got*600/r < MinTickSpacing && got < 5e15 {
			t.Fatalf("range %v: interval %v closer than %v px", r, got, MinTickSpacing)
		}
		prev = got
	}

	prev = math.Inf(1)
	for h := 10.0; h < 20000; h *= 1.1 {
		got, _ := NiceTickInterval(250, h, MinTickSpacing)
		if got > prev {
			t.Fatalf("height %v: interval %v larger than %v for a smaller height", h, got, prev)
		}
		prev = got
	}
}

func TestViewport_TickModes(t *testing.T) {
	v := newViewport(0, 100, 800, 500)
	if !v.AutoTick() || v.TickInterval() != 20 {
		t.Fatalf("Expected auto tick interval 20, got %v (auto=%v)", v.TickInterval(), v.AutoTick())
	}

	if err := v.SetTickInterval(7); err != nil {
		t.Fatalf("SetTickInterval: %v", err)
	}
	v.Resize(800, 1000)
	v.Wheel(120, false, 0)
	if v.TickInterval() != 7 || v.AutoTick() {
		t.Errorf("Manual interval should survive resize and zoom, got %v", v.TickInterval())
	}

	v.Reset()
	v.SetAutoTick(true)
	if v.TickInterval() != 10 {
		t.Errorf("Expected auto interval 10 for 100m over 1000px, got %v", v.TickInterval())
	}

	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := v.SetTickInterval(bad); err == nil {
			t.Errorf("Expected error for tick interval %v", bad)
		}
	}
	if !v.AutoTick() {
		t.Error("Rejected interval should not switch to manual mode")
	}
}

func TestViewport_ZeroAreaKeepsTickInterval(t *testing.T) {
	v := newViewport(0, 100, 800, 500)
	v.Resize(0, 0)
	if v.TickInterval() != 20 {
		t.Errorf("Expected interval to stay at 20, got %v", v.TickInterval())
	}
}

func TestViewport_Ticks(t *testing.T) {
	v := newViewport(0, 100, 800, 500)

	ticks := v.Ticks()
	expect := []float64{0, -20, -40, -60, -80, -100}
	if len(ticks) != len(expect) {
		t.Fatalf("Expected %d ticks, got %v", len(expect), ticks)
	}
	for i := range expect {
		if !near(ticks[i], expect[i]) {
			t.Errorf("Tick %d: expected %v, got %v", i, expect[i], ticks[i])
		}
	}

	v.SetDepthRange(0, 0)
	if got := v.Ticks(); got != nil {
		t.Errorf("Expected no ticks without a depth span, got %v", got)
	}
}

func TestViewport_Placement(t *testing.T) {
	testCases := []struct {
		name    string
		area    [2]float64
		spacing float64
		zoom    float64
		expect  Placement
	}{
		{
			name:    "fit",
			area:    [2]float64{400, 300},
			spacing: 1,
			zoom:    1,
			expect: Placement{
				Source: image.Rect(0, 0, 100, 200),
				ScaleX: 4, ScaleY: 1.5,
			},
		},
		{
			name:    "double spacing shows newest half",
			area:    [2]float64{400, 300},
			spacing: 2,
			zoom:    1,
			expect: Placement{
				Source: image.Rect(50, 0, 100, 200),
				ScaleX: 8, ScaleY: 1.5, OffsetX: -400,
			},
		},
		{
			name:    "area narrower than raster",
			area:    [2]float64{50, 300},
			spacing: 1,
			zoom:    1,
			expect: Placement{
				Source: image.Rect(50, 0, 100, 200),
				ScaleX: 1, ScaleY: 1.5, OffsetX: -50,
			},
		},
		{
			name:    "zoomed in at the surface",
			area:    [2]float64{400, 300},
			spacing: 1,
			zoom:    2,
			expect: Placement{
				Source: image.Rect(0, 0, 100, 100),
				ScaleX: 4, ScaleY: 3,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			v := newViewport(0, 100, tc.area[0], tc.area[1])
			if err := v.SetPingSpacing(tc.spacing); err != nil {
				t.Fatalf("SetPingSpacing: %v", err)
			}
			if tc.zoom != 1 {
				v.Wheel(8*math.Log2(tc.zoom)/ZoomPerDegree, false, 0)
			}

			got, ok := v.Placement(100, 200, 0, 0.5)
			if !ok {
				t.Fatal("Expected a placement")
			}
			if got.Source != tc.expect.Source {
				t.Errorf("Source: expected %v, got %v", tc.expect.Source, got.Source)
			}
			if !near(got.ScaleX, tc.expect.ScaleX) || !near(got.ScaleY, tc.expect.ScaleY) {
				t.Errorf("Scale: expected %v/%v, got %v/%v", tc.expect.ScaleX, tc.expect.ScaleY, got.ScaleX, got.ScaleY)
			}
			if !near(got.OffsetX, tc.expect.OffsetX) || !near(got.OffsetY, tc.expect.OffsetY) {
				t.Errorf("Offset: expected %v/%v, got %v/%v", tc.expect.OffsetX, tc.expect.OffsetY, got.OffsetX, got.OffsetY)
			}

			// newest column ends at the right edge
			m := got.Transform()
			if right := m[0]*100 + m[2]; !near(right, tc.area[0]) {
				t.Errorf("Newest column should end at %v, ends at %v", tc.area[0], right)
			}
		})
	}
}

func TestViewport_PlacementPannedBelowData(t *testing.T) {
	v := newViewport(0, 100, 400, 300)
	v.BeginDrag(300)
	v.Drag(0) // pan by a full screen
	v.EndDrag()

	got, ok := v.Placement(100, 200, 0, 0.5)
	if !ok {
		t.Fatal("Expected a placement")
	}
	if got.Source.Dy() != 0 {
		t.Errorf("Expected no visible rows, got %v", got.Source)
	}
	if !near(got.OffsetY, -300) {
		t.Errorf("Expected raster top at -300, got %v", got.OffsetY)
	}
}

func TestViewport_PlacementEmpty(t *testing.T) {
	v := newViewport(0, 100, 0, 300)
	if _, ok := v.Placement(100, 200, 0, 0.5); ok {
		t.Error("Expected no placement for an empty area")
	}

	v.Resize(400, 300)
	if _, ok := v.Placement(0, 0, 0, 0.5); ok {
		t.Error("Expected no placement for an empty raster")
	}

	// background raster without depth extent is stretched over the area
	v.SetDepthRange(0, 0)
	got, ok := v.Placement(64, 64, 0, 0)
	if !ok {
		t.Fatal("Expected a placement for the background raster")
	}
	if got.Source != image.Rect(0, 0, 64, 64) || !near(got.ScaleY, 300.0/64) {
		t.Errorf("Unexpected background placement %+v", got)
	}
}

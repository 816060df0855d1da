package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnobDragFollowsEndpointFormula(t *testing.T) {
	tests := []struct {
		name      string
		start     float64
		origin    Point
		path      []Point
		precision bool
		speed     float64
		want      float64
	}{
		{name: "up increases", start: 0.5, origin: Point{10, 100}, path: []Point{{10, 99.8}}, speed: 1, want: 0.7},
		{name: "down decreases", start: 0.5, origin: Point{10, 100}, path: []Point{{10, 100.25}}, speed: 1, want: 0.25},
		{name: "clamped high", start: 0.5, origin: Point{0, 100}, path: []Point{{0, 0}}, speed: 1, want: 1},
		{name: "clamped low", start: 0.5, origin: Point{0, 100}, path: []Point{{0, 500}}, speed: 1, want: 0},
		{name: "precision", start: 0.5, origin: Point{0, 100}, path: []Point{{0, 99}}, precision: true, speed: 1, want: 0.6},
		{name: "speed", start: 0, origin: Point{0, 100}, path: []Point{{0, 99.75}}, speed: 2, want: 0.5},
		{
			name: "path independent", start: 0.2, origin: Point{0, 50}, speed: 1, want: 0.5,
			path: []Point{{0, 0}, {0, 80}, {3, 49.9}, {0, 1000}, {0, 49.7}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slot := NewSlot(tt.start)
			k := NewKnob("p", 0, 1, slot)
			k.Speed = tt.speed

			require.True(t, k.Press(ButtonPrimary, tt.origin))
			for _, p := range tt.path {
				k.Move(p, tt.precision)
			}
			k.Release()

			assert.InDelta(t, tt.want, slot.Read(), 1e-9)
			assert.Equal(t, Idle, k.State())
		})
	}
}

func TestKnobIgnoresHorizontalMotion(t *testing.T) {
	slot := NewSlot(0.3)
	k := NewKnob("p", 0, 1, slot)

	k.Press(ButtonPrimary, Point{0, 10})
	k.Move(Point{400, 10}, false)
	assert.InDelta(t, 0.3, slot.Read(), 1e-12)
}

func TestKnobOnlyPrimaryButtonStartsDrag(t *testing.T) {
	slot := NewSlot(0.3)
	k := NewKnob("p", 0, 1, slot)

	assert.False(t, k.Press(ButtonSecondary, Point{0, 10}))
	assert.Equal(t, Idle, k.State())
	k.Move(Point{0, 0}, false)
	assert.InDelta(t, 0.3, slot.Read(), 1e-12)
}

func TestKnobNoWritesAfterRelease(t *testing.T) {
	slot := NewSlot(0.3)
	k := NewKnob("p", 0, 1, slot)

	k.Press(ButtonPrimary, Point{0, 10})
	k.Move(Point{0, 9.9}, false)
	k.DragEnd()

	slot.Store(0.9) // engine-side write
	k.Move(Point{0, 0}, false)
	assert.InDelta(t, 0.9, slot.Read(), 1e-12)
}

func TestKnobRepressResetsOrigin(t *testing.T) {
	run := func(start float64) float64 {
		slot := NewSlot(start)
		k := NewKnob("p", -10, 10, slot)
		k.Press(ButtonPrimary, Point{0, 100})
		k.Move(Point{0, 97}, false)
		k.Release()
		k.Press(ButtonPrimary, Point{5, 40})
		k.Move(Point{5, 38}, false)
		k.Release()
		return slot.Read()
	}

	a := run(1)
	b := run(-2.5)
	assert.InDelta(t, 3.5, a-b, 1e-9)
	assert.InDelta(t, 6, a, 1e-9)
}

func TestKnobsDoNotShareOrigin(t *testing.T) {
	s1, s2 := NewSlot(0.1), NewSlot(0.9)
	k1 := NewKnob("a", 0, 1, s1)
	k2 := NewKnob("b", 0, 1, s2)

	k1.Press(ButtonPrimary, Point{0, 100})
	k2.Press(ButtonPrimary, Point{0, 10})
	k1.Move(Point{0, 99.8}, false)
	k2.Move(Point{0, 10.4}, false)

	assert.InDelta(t, 0.3, s1.Read(), 1e-9)
	assert.InDelta(t, 0.5, s2.Read(), 1e-9)
}

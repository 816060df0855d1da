package param

// DefaultSpeed is the pointer-to-value multiplier of a fresh knob.
const DefaultSpeed = 1.0

// PrecisionFactor scales drag motion while the precision modifier is held.
const PrecisionFactor = 0.1

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Point is a pointer position. Y grows downward, as on screen.
type Point struct {
	X, Y float64
}

// DragState is the knob's pointer-interaction state.
type DragState int

const (
	Idle DragState = iota
	Dragging
)

func (s DragState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Knob maps vertical pointer drags to a bounded parameter value.
// Motion is always measured from the press origin, never accumulated from
// deltas, so lost motion events cannot make the value drift.
type Knob struct {
	ID       string
	Min, Max float64
	Speed    float64

	ch          Channel
	state       DragState
	originValue float64
	originPos   Point
}

// NewKnob binds a knob to a channel it does not own.
func NewKnob(id string, min, max float64, ch Channel) *Knob {
	return &Knob{ID: id, Min: min, Max: max, Speed: DefaultSpeed, ch: ch}
}

// KnobFor binds a knob to a live parameter.
func KnobFor(p *Param) *Knob {
	return NewKnob(p.ID, p.Min, p.Max, p.Slot)
}

func (k *Knob) State() DragState { return k.state }

// Value reads the channel's current value.
func (k *Knob) Value() float64 { return k.ch.Read() }

// Press starts a drag on the primary button. It reports whether a drag began.
func (k *Knob) Press(b Button, pos Point) bool {
	if b != ButtonPrimary || k.state != Idle {
		return false
	}
	k.state = Dragging
	k.originValue = k.ch.Read()
	k.originPos = pos
	return true
}

// Move proposes a new value for the current pointer position and returns it.
// Outside a drag it does nothing and returns the channel's current value.
func (k *Knob) Move(pos Point, precision bool) float64 {
	if k.state != Dragging {
		return k.ch.Read()
	}
	modifier := 1.0
	if precision {
		modifier = PrecisionFactor
	}
	// Upward motion (decreasing Y) increases the value. X is ignored.
	delta := (k.originPos.Y - pos.Y) * k.Speed * modifier
	v := clamp(k.originValue+delta, k.Min, k.Max)
	k.ch.Propose(v)
	return v
}

// Release ends the drag.
func (k *Knob) Release() { k.state = Idle }

// DragEnd ends the drag; same as Release for a knob.
func (k *Knob) DragEnd() { k.state = Idle }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

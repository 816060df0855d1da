package bridge

// ParamResponse describes one parameter and its live value.
type ParamResponse struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Value   float64 `json:"value"`
}

// SetParamRequest is the body of PUT /params/{id}.
type SetParamRequest struct {
	Value *float64 `json:"value"`
}

// MIDIRequest is the body of POST /midi: one message as hex bytes, e.g. "b04a7f".
type MIDIRequest struct {
	Data string `json:"data"`
}

// MIDIResponse reports how a MIDI message was routed.
type MIDIResponse struct {
	Mapped     bool    `json:"mapped"`
	Param      string  `json:"param,omitempty"`
	Value      float64 `json:"value,omitempty"`
	Queued     bool    `json:"queued,omitempty"`
	Channel    uint8   `json:"channel"`
	Controller uint8   `json:"controller"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Ready         bool   `json:"ready"`
	Params        int    `json:"params"`
}

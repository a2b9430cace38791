package servo

// State describes where the servo is in its bootstrap sequence.
// The sequence is fixed: each state is visited exactly once, in order,
// before the servo settles into Tracking forever.
type State uint8

// All the states of servo
const (
	// StateInit0 zeroes the destination clock frequency to get a known baseline
	StateInit0 State = iota
	// StateInit1 records a timestamp so the next call can measure an interval
	StateInit1
	// StateMeasure estimates gross frequency error from one sample interval
	StateMeasure
	// StateStep steps out the residual absolute offset
	StateStep
	// StateTracking is the steady-state PI loop
	StateTracking
)

func (s State) String() string {
	switch s {
	case StateInit0:
		return "INIT0"
	case StateInit1:
		return "INIT1"
	case StateMeasure:
		return "MEASURE"
	case StateStep:
		return "STEP"
	case StateTracking:
		return "TRACKING"
	}
	return "UNSUPPORTED"
}

// DefaultMaxFreqPPB is the largest frequency adjustment the servo will
// ever command, hardware-plausible maximum in PPB
const DefaultMaxFreqPPB = 512000.0

// PiServoCfg holds the PI controller gains, fixed at configuration time
type PiServoCfg struct {
	Kp float64
	Ki float64
}

// DefaultPiServoCfg to create default pi servo config
func DefaultPiServoCfg() *PiServoCfg {
	return &PiServoCfg{
		Kp: 0.7,
		Ki: 0.3,
	}
}

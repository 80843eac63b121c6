package debias

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Phase is the training stage a Trainer is in.
//
//	Uninitialized → PretrainingPredictor → PretrainingAdversary → AdversarialTraining → Fitted
//
// The two adversary phases are skipped when debiasing is disabled. A fit that
// fails or is cancelled ends in Aborted.
type Phase int

const (
	Uninitialized        Phase = iota + 1 // Parameters initialised, not trained.
	PretrainingPredictor                  // Predictor alone on classification loss.
	PretrainingAdversary                  // Adversary alone against a frozen predictor.
	AdversarialTraining                   // Alternating minimax updates.
	Fitted                                // Training complete; Predict is allowed.
	Aborted                               // Training failed; the model is unusable.
)

var (
	phaseNames = [...]string{
		Uninitialized:        "Uninitialized",
		PretrainingPredictor: "PretrainingPredictor",
		PretrainingAdversary: "PretrainingAdversary",
		AdversarialTraining:  "AdversarialTraining",
		Fitted:               "Fitted",
		Aborted:              "Aborted",
	}
	phaseByName = map[string]Phase{
		"Uninitialized":        Uninitialized,
		"PretrainingPredictor": PretrainingPredictor,
		"PretrainingAdversary": PretrainingAdversary,
		"AdversarialTraining":  AdversarialTraining,
		"Fitted":               Fitted,
		"Aborted":              Aborted,
	}
)

// Compile-time interface checks.
var (
	_ fmt.Stringer             = Phase(0)
	_ json.Marshaler           = Phase(0)
	_ json.Unmarshaler         = (*Phase)(nil)
	_ encoding.TextMarshaler   = Phase(0)
	_ encoding.TextUnmarshaler = (*Phase)(nil)
)

func (p Phase) isValid() bool {
	return p >= Uninitialized && p <= Aborted
}

// String returns the name of the phase. For invalid values it returns "Phase(n)".
func (p Phase) String() string {
	if p.isValid() {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// canTransition reports whether the transition p → to is allowed.
func (p Phase) canTransition(to Phase) bool {
	if to == Aborted {
		return p != Fitted && p != Aborted
	}
	switch p {
	case Uninitialized:
		return to == PretrainingPredictor
	case PretrainingPredictor:
		return to == PretrainingAdversary || to == Fitted
	case PretrainingAdversary:
		return to == AdversarialTraining
	case AdversarialTraining:
		return to == Fitted
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	if !p.isValid() {
		return nil, fmt.Errorf("debias: invalid phase: %d", int(p))
	}
	return []byte(phaseNames[p]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Phase) UnmarshalText(text []byte) error {
	v, ok := phaseByName[string(text)]
	if !ok {
		return fmt.Errorf("debias: invalid phase: %q", text)
	}
	*p = v
	return nil
}

// MarshalJSON implements json.Marshaler. Phase serializes as a JSON string.
func (p Phase) MarshalJSON() ([]byte, error) {
	text, err := p.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("debias: invalid phase: %s", data)
	}
	return p.UnmarshalText([]byte(str))
}

package debias

// EpochStats records the losses of one completed training epoch.
type EpochStats struct {
	Phase           Phase   `json:"phase"`
	Epoch           int     `json:"epoch"`                      // 1-based within the phase.
	ClassifierLoss  float64 `json:"classifier_loss"`            // mean BCE against labels.
	AdversaryLoss   float64 `json:"adversary_loss,omitempty"`   // mean BCE against protected attributes.
	AdversaryWeight float64 `json:"adversary_weight,omitempty"` // annealed weight at the end of the epoch.
}

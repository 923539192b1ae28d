package workflow

import "eaiser/models"

// ConfidenceThreshold is the score below which AI-recommended authorities
// are hidden in favor of the manual selector.
const ConfidenceThreshold = 40

// LowConfidence reports whether a report follows the low-confidence path.
// Manual reports always do.
func LowConfidence(confidence float64, manual bool) bool {
	return manual || confidence < ConfidenceThreshold
}

type PanelMode string

const (
	PanelNone         PanelMode = "none"
	PanelRecommended  PanelMode = "recommended"
	PanelManualPrompt PanelMode = "manual_prompt"
)

// AuthorityPanel is what the review step shows about authorities.
type AuthorityPanel struct {
	Mode        PanelMode          `json:"mode"`
	Recommended []models.Authority `json:"recommended,omitempty"`
	Candidates  []models.Authority `json:"candidates,omitempty"`
	Selected    []models.Authority `json:"selected"`
}

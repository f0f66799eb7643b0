package engine

import (
	"encoding/json"

	"wacrm/internal/models"
)

// Labels the annotation pipeline writes into business_classification.
const (
	aiLabelOpportunity = "OPORTUNIDAD"
	aiLabelTrash       = "BASURA"
)

// mediaAnalysis is the slice of the annotation payload this engine cares
// about; the rest of the payload stays opaque.
type mediaAnalysis struct {
	BusinessClassification string `json:"business_classification"`
}

// deriveClassification scans the media analyses attached to a
// conversation's messages. OPORTUNIDAD outranks everything and
// short-circuits the scan; BASURA is kept as a fallback; no recognizable
// label means no derivation ("" — leave the stored classification alone).
// Malformed payloads are skipped without aborting the scan.
func deriveClassification(messages []*models.Message) string {
	derived := ""
	for _, msg := range messages {
		for i := range msg.Media {
			switch businessClassification(msg.Media[i].AIAnalysis) {
			case aiLabelOpportunity:
				return models.ClassificationOpportunity
			case aiLabelTrash:
				derived = models.ClassificationTrash
			}
		}
	}
	return derived
}

// businessClassification extracts the business_classification field from a
// raw analysis payload. The annotation pipeline writes either a JSON object
// or a JSON-encoded string of one, so a string payload is unquoted and
// parsed again. Anything unparsable yields "".
func businessClassification(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var analysis mediaAnalysis
	if err := json.Unmarshal(raw, &analysis); err == nil && analysis.BusinessClassification != "" {
		return analysis.BusinessClassification
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return ""
	}
	if err := json.Unmarshal([]byte(encoded), &analysis); err != nil {
		return ""
	}
	return analysis.BusinessClassification
}

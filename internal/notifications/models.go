package notifications

import (
	"time"

	"github.com/google/uuid"
)

// EventFactorGap is published when entries were dropped for lack of a factor.
const EventFactorGap = "factor_gap"

// FactorGap is one (category, unit) pair the factor table could not serve.
type FactorGap struct {
	Category string `json:"category"`
	Unit     string `json:"unit"`
	Entries  int    `json:"entries"`
}

// FactorGapAlert is the message body sent to operators.
type FactorGapAlert struct {
	Event      string      `json:"event"`
	CompanyID  uuid.UUID   `json:"company_id"`
	DocumentID uuid.UUID   `json:"document_id"`
	FileName   string      `json:"file_name"`
	Gaps       []FactorGap `json:"gaps"`
	OccurredAt time.Time   `json:"occurred_at"`
}

package model

// RiskLevel is the four-tier classification of an accumulated risk score.
type RiskLevel string

const (
	RiskLow       RiskLevel = "low"
	RiskLowMedium RiskLevel = "low-medium"
	RiskMedium    RiskLevel = "medium"
	RiskHigh      RiskLevel = "high"
)

// RiskAssessment is the scored outcome for one transaction.
type RiskAssessment struct {
	TransactionID     string    `json:"transaction_id,omitempty"`
	Score             float64   `json:"risk_score"`
	Level             RiskLevel `json:"risk_level"`
	Factors           []string  `json:"factors"`
	RecommendedAction string    `json:"recommended_action"`
	IsAnomaly         bool      `json:"is_anomaly"`
}

package domain

// NotificationReceipt reports a dispatched SMS.
type NotificationReceipt struct {
	MessageSID    string `json:"message_sid,omitempty"`
	PhoneNumber   string `json:"phone_number"`
	Status        string `json:"status,omitempty"`
	MessageLength int    `json:"message_length,omitempty"`
}

// AlertOutcome records the gate decision and, when a send was attempted,
// how it went. A failed dispatch never invalidates the assessment it
// accompanied.
type AlertOutcome struct {
	Decision AlertDecision        `json:"decision"`
	Sent     bool                 `json:"sent"`
	Receipt  *NotificationReceipt `json:"receipt,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// PredictionOutcome is the composite result of one analysis request. All
// fields are request-scoped value objects owned by the orchestration call
// that produced them. When Available is false only Validation, Location,
// Station and Suggestion carry data.
type PredictionOutcome struct {
	Available  bool                `json:"prediction_available"`
	RequestID  string              `json:"request_id"`
	Validation ValidationResult    `json:"validation"`
	Location   Location            `json:"location"`
	Station    ReferenceStation    `json:"station_reference"`
	Weather    *WeatherSnapshot    `json:"weather,omitempty"`
	ML         *MLPrediction       `json:"ml_prediction,omitempty"`
	AI         *AIAnalysis         `json:"ai_analysis,omitempty"`
	Assessment *CombinedAssessment `json:"assessment,omitempty"`
	Alert      *AlertOutcome       `json:"alert,omitempty"`
	Suggestion string              `json:"suggestion,omitempty"`
}

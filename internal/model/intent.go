package model

// IntentType is the classified purpose behind a customer message.
type IntentType string

const (
	IntentTrackingNumber  IntentType = "tracking_number"
	IntentDeliveryProblem IntentType = "delivery_problem"
	IntentDeliveryDate    IntentType = "delivery_date"
	IntentOrderStatus     IntentType = "order_status"
	IntentReturnRequest   IntentType = "return_request"
	IntentStockInquiry    IntentType = "stock_inquiry"
	IntentCancellation    IntentType = "cancellation"
	IntentAddressChange   IntentType = "address_change"
	IntentGeneral         IntentType = "general"
)

// Problem types extracted from delivery complaints.
const (
	ProblemDamaged     = "damaged"
	ProblemLost        = "lost"
	ProblemWrongItem   = "wrong_item"
	ProblemMissingItem = "missing_item"
	ProblemDelayed     = "delayed"
)

// ExtractedFields are best-effort values pulled out of the message text.
// Zero values mean the field was not found.
type ExtractedFields struct {
	OrderID        int64  `json:"orderId,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Size           string `json:"size,omitempty"`
	ProblemType    string `json:"problemType,omitempty"`
	Email          string `json:"email,omitempty"`
}

// Intent is the result of classifying one message.
type Intent struct {
	Type            IntentType      `json:"type"`
	Confidence      float64         `json:"confidence"`
	ExtractedFields ExtractedFields `json:"extractedFields"`
}

package models

// Requests for the review and signal HTTP endpoints. Defined in domain for consistency and reuse.

type SignalHistoryRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type EvaluateRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required"`
}

type ListAdjustmentsRequest struct {
	Status string `query:"status" json:"status" default:"pending" validate:"oneof=pending approved reverted applied"`
}

type ReviewRequest struct {
	Reviewer string `json:"reviewer" validate:"required,min=2,max=64"`
}

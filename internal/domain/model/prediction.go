package model

// Prediction is one row of the offline score table.
// Fields mirror the got_prediction table and the /api/v1/predictions schema.
type Prediction struct {
	ID         int            `json:"id"`
	Features   map[string]int `json:"features"` // binary feature name -> 0/1
	Score      int            `json:"score"`    // predicted class code
	Prediction string         `json:"prediction"`
	Remarks    string         `json:"remarks"`
}

package domain

// Route is the department a complaint should be dispatched to.
// Department is empty when the underlying answer is not grounded.
type Route struct {
	Complaint  string    `json:"complaint"`
	Department string    `json:"department"`
	Confidence float64   `json:"confidence"`
	Grounded   bool      `json:"grounded"`
	Citation   *Citation `json:"citation,omitempty"`
}

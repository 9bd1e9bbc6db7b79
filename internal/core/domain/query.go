package domain

import "fmt"

// QueryState is a position in the query lifecycle.
type QueryState string

// Query lifecycle states.
const (
	QueryReceived    QueryState = "RECEIVED"
	QueryEmbedded    QueryState = "EMBEDDED"
	QueryRetrieved   QueryState = "RETRIEVED"
	QuerySynthesized QueryState = "SYNTHESIZED"
	QueryScored      QueryState = "SCORED"
	QueryReturned    QueryState = "RETURNED"
	QueryErrored     QueryState = "ERRORED"
)

var queryTransitions = map[QueryState][]QueryState{
	QueryReceived:    {QueryEmbedded, QueryErrored},
	QueryEmbedded:    {QueryRetrieved, QueryErrored},
	QueryRetrieved:   {QuerySynthesized, QueryReturned},
	QuerySynthesized: {QueryScored},
	QueryScored:      {QueryReturned},
}

// CanTransition reports whether next may follow s.
func (s QueryState) CanTransition(next QueryState) bool {
	for _, allowed := range queryTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for states with no outgoing transitions.
func (s QueryState) IsTerminal() bool {
	return s == QueryReturned || s == QueryErrored
}

// String returns the string representation.
func (s QueryState) String() string {
	return string(s)
}

// IllegalTransitionError reports a lifecycle step that is not allowed.
type IllegalTransitionError struct {
	From QueryState
	To   QueryState
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal query transition %s -> %s", e.From, e.To)
}

// QueryOptions configures a single query.
// Zero values fall back to configured defaults.
type QueryOptions struct {
	// Collection is the collection to search.
	Collection string

	// TopK is the number of chunks to retrieve.
	TopK int

	// IncludeMetadata controls whether citations carry title, section,
	// department, document type and snippet. Nil means true.
	IncludeMetadata *bool
}

// WantsMetadata resolves IncludeMetadata, defaulting to true.
func (o QueryOptions) WantsMetadata() bool {
	return o.IncludeMetadata == nil || *o.IncludeMetadata
}

// QueryResult is the cited, confidence-scored answer to one question.
type QueryResult struct {
	Question        string     `json:"question"`
	Collection      string     `json:"collection"`
	Answer          string     `json:"answer"`
	Sources         []Citation `json:"sources"`
	Confidence      float64    `json:"confidence"`
	Grounded        bool       `json:"grounded"`
	Verdict         Verdict    `json:"verdict"`
	RetrievedChunks int        `json:"retrieved_chunks"`
	State           QueryState `json:"state"`
	Message         string     `json:"message,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// IsError reports whether the result is error-flavoured.
func (r *QueryResult) IsError() bool {
	return r.State == QueryErrored
}

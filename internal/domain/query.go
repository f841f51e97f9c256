package domain

// Row is a flat column-name-to-value mapping for one result row.
type Row map[string]any

// QueryResult is the outcome of executing a validated query. Rejected or
// failed queries are expressed as a zero-result value with an explanatory
// Message rather than an error.
//
// Invariants: Showing <= TotalAvailable and HasMore == (TotalAvailable > Showing).
type QueryResult struct {
	TotalAvailable int    `json:"total_available"`
	Results        []Row  `json:"results"`
	Query          string `json:"query"`
	Message        string `json:"message"`
	Showing        int    `json:"showing"`
	HasMore        bool   `json:"has_more"`
}

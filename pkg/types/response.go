package types

// Envelope is the body of every JSON response. A request that failed sets
// Error and leaves Data empty; a partial success sets both Data and Warning.
type Envelope struct {
	Data    any      `json:"data,omitempty"`
	Warning *Problem `json:"warning,omitempty"`
	Error   *Problem `json:"error,omitempty"`
}

// Problem is the public shape of a typed error.
type Problem struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

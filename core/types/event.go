package types

// Event is a record of something the escrow engine did: funds locked,
// a payout released, an admin action taken. Attributes carry the
// operation-specific details as strings so any sink can consume them.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

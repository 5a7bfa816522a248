package dto

// BounceMessage is a parsed delivery-failure notification pulled from a
// sender's inbound mailbox.
type BounceMessage struct {
	Subject    string
	References []string
	InReplyTo  string
}

// OriginalMessageID extracts the identifier correlating the bounce back to
// the message that triggered it: the first References entry when present,
// the In-Reply-To header otherwise. Angle brackets are kept; callers
// normalize before lookup. Empty means the bounce cannot be attributed.
func (m BounceMessage) OriginalMessageID() string {
	if len(m.References) > 0 && m.References[0] != "" {
		return m.References[0]
	}
	return m.InReplyTo
}

// BounceUpdate describes one recipient flipped by reconciliation.
type BounceUpdate struct {
	RecipientID string `json:"recipientId"`
	BatchID     string `json:"batchId"`
	Email       string `json:"email"`
	Status      string `json:"status"`
	Error       string `json:"error"`
}

// BounceResult is the outcome of one reconciliation pass over a sender's
// mailbox.
type BounceResult struct {
	BouncedCount int            `json:"bouncedCount"`
	Updates      []BounceUpdate `json:"updates"`
}

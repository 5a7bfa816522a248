package dto

// OutboundMessage is one rendered email handed to the mail transport.
type OutboundMessage struct {
	FromAddress string
	FromName    string
	ToAddress   string
	Subject     string
	BodyHTML    string
}

package enum

type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "PENDING"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusCompleted  BatchStatus = "COMPLETED"
)

func (t BatchStatus) String() string {
	return string(t)
}

type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "PENDING"
	RecipientStatusSent    RecipientStatus = "SENT"
	RecipientStatusFailed  RecipientStatus = "FAILED"
)

func (t RecipientStatus) String() string {
	return string(t)
}

type SmtpSecurity string

const (
	SmtpSecurityTLS      SmtpSecurity = "tls"
	SmtpSecurityStartTLS SmtpSecurity = "startTLS"
)

func (t SmtpSecurity) String() string {
	return string(t)
}

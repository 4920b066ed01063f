package model

import "time"

// Email is one synced message as returned by the search endpoint.
// Ordering within a page is server-assigned and must not be changed
// locally.
type Email struct {
	// ID is the server-side unique identifier for this message.
	ID string `json:"messageId"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// From is the sender address.
	From string `json:"from"`

	// To is the recipient address.
	To string `json:"to"`

	// Date is when the message was received.
	Date time.Time `json:"date"`

	// Read indicates whether the message has been read.
	Read bool `json:"read"`

	// Flagged indicates whether the message is flagged.
	Flagged bool `json:"flagged"`
}

// EmailPage is the decoded body of the email search endpoint. The
// records and the total belong to the same response and are applied
// to a view together.
type EmailPage struct {
	Data  []Email    `json:"data"`
	Total EmailTotal `json:"total"`
}

// EmailTotal wraps the server's total-hit count.
type EmailTotal struct {
	Value int `json:"value"`
}

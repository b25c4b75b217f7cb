package model

// Recipient holds the contact identifiers a user can be reached on. A
// recipient is addressable on a channel only when the corresponding field is
// non-empty; format validation is left to the channel adapters.
type Recipient struct {
	UserID      int64
	PhoneNumber string
	PushToken   string
}

func (r Recipient) HasPhone() bool     { return r.PhoneNumber != "" }
func (r Recipient) HasPushToken() bool { return r.PushToken != "" }

package message

// Message represents a chat or donation event from any platform (Chzzk,
// Soop, etc.) normalized into a single shape. At least one of Content and
// Donated is meaningful per event; consumers must tolerate either being
// absent.
type Message struct {
	Platform  string  `json:"platform"`          // Platform name: "chzzk", "soop", etc.
	Timestamp string  `json:"timestamp"`         // Event timestamp in RFC3339 format (UTC)
	Channel   string  `json:"channel"`           // Platform-specific channel identifier
	Sender    string  `json:"sender"`            // Sender's display name
	Content   *string `json:"content,omitempty"` // Chat body, nil for pure donation events
	Donated   *uint64 `json:"donated,omitempty"` // Donation amount in the smallest unit, nil for pure chat
}

// Text returns a Content pointer for a chat event.
func Text(s string) *string {
	return &s
}

// Amount returns a Donated pointer for a donation event.
func Amount(n uint64) *uint64 {
	return &n
}

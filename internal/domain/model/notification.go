package model

import "time"

// Announcement is an operator-authored notice posted to the community chat.
type Announcement struct {
	Title      string
	Reason     string
	Message    string
	RemindKick bool
	Operator   string
}

// ChatMessage is a recent message read back from the community chat channel.
type ChatMessage struct {
	ID        string
	Author    string
	Avatar    string
	Content   string
	Timestamp time.Time
}

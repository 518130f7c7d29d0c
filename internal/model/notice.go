package model

import "time"

// NoticeLevel is the severity of a user-visible notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a user-visible signal raised by a session container.
type Notice struct {
	Level     NoticeLevel `json:"level"`
	Principal string      `json:"principal,omitempty"`
	TenantID  string      `json:"tenant_id,omitempty"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"created_at"`
	Sequence  uint64      `json:"sequence,omitempty"`
}

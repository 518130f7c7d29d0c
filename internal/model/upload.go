package model

import "time"

// MaxUploads bounds the number of visible upload items.
const MaxUploads = 3

// UploadStatus is the lifecycle state of an upload item.
type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadSuccess    UploadStatus = "success"
	UploadError      UploadStatus = "error"
)

// Terminal reports whether the status is final.
func (s UploadStatus) Terminal() bool {
	return s == UploadSuccess || s == UploadError
}

// UploadFile is a file submitted for processing.
type UploadFile struct {
	Name    string
	Content []byte
}

// UploadResult is the payload returned by the document processor.
type UploadResult struct {
	DocumentKey string `json:"document_key"`
	Category    string `json:"category"`
}

// UploadItem is a transient entry of the upload queue.
type UploadItem struct {
	ID        uint64        `json:"id"`
	TenantID  string        `json:"tenant_id"`
	FileName  string        `json:"file_name"`
	Status    UploadStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Result    *UploadResult `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// SubmitResult reports which files of a submission were queued.
type SubmitResult struct {
	Accepted []uint64 `json:"accepted"`
	Rejected []string `json:"rejected,omitempty"`
}

package model

// Receipt is a processed document listed in the gallery.
type Receipt struct {
	DocID        string `json:"doc_id"`
	CreatedAt    string `json:"created_at"`
	ImageURL     string `json:"image_url"`
	DocumentType string `json:"document_type"`
}

// Export is a spreadsheet rendering of one document.
type Export struct {
	FileName    string
	ContentType string
	Content     []byte
}

package session

import (
	"strings"

	"legalchat/internal/domain"
)

// Draft is the user's unsent input. The pdf path and the attachment are mutually exclusive:
// selecting one drops the other.
type Draft struct {
	Question     string
	Prompt       string
	DocumentType domain.DocumentType

	pdfPath    string
	attachment *domain.Attachment
}

func NewDraft() *Draft {
	return &Draft{DocumentType: domain.DocumentNotice}
}

// SetPDFPath selects a document already known to the backend and drops any attachment.
func (d *Draft) SetPDFPath(path string) {
	d.pdfPath = strings.TrimSpace(path)
	if d.pdfPath != "" {
		d.attachment = nil
	}
}

// SetAttachment selects a local file for upload and drops any path.
func (d *Draft) SetAttachment(a *domain.Attachment) {
	if a.IsZero() {
		d.attachment = nil
		return
	}
	d.attachment = a
	d.pdfPath = ""
}

func (d *Draft) PDFPath() string                { return d.pdfPath }
func (d *Draft) Attachment() *domain.Attachment { return d.attachment }

// SummarizeSource returns whichever document is currently selected.
func (d *Draft) SummarizeSource() domain.SummarizeSource {
	return domain.SummarizeSource{Path: d.pdfPath, Attachment: d.attachment}
}

// ClearDocument forgets both the path and the attachment.
func (d *Draft) ClearDocument() {
	d.pdfPath = ""
	d.attachment = nil
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentType string

const (
	DocumentID            DocumentType = "ID_DOCUMENT"
	DocumentResume        DocumentType = "RESUME"
	DocumentCertificate   DocumentType = "CERTIFICATE"
	DocumentContract      DocumentType = "CONTRACT"
	DocumentBankStatement DocumentType = "BANK_STATEMENT"
	DocumentOther         DocumentType = "OTHER"
)

var documentTypes = []DocumentType{
	DocumentID,
	DocumentResume,
	DocumentCertificate,
	DocumentContract,
	DocumentBankStatement,
	DocumentOther,
}

// RequiredDocumentTypes must all be present before onboarding can be submitted.
var RequiredDocumentTypes = []DocumentType{DocumentID, DocumentResume}

// ParseDocumentType accepts only the exact upper-case names.
func ParseDocumentType(raw string) (DocumentType, error) {
	for _, t := range documentTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown document type %q", raw)
}

// Document is the metadata of an uploaded file. Several documents of the
// same type may exist for one user.
type Document struct {
	ID         string       `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     string       `gorm:"type:varchar(36);not null;index" json:"userId"`
	Type       DocumentType `gorm:"type:varchar(32);not null" json:"type"`
	FileName   string       `gorm:"type:varchar(255);not null" json:"fileName"`
	FilePath   string       `gorm:"type:varchar(512);uniqueIndex;not null" json:"filePath"`
	FileSize   int64        `gorm:"not null" json:"fileSize"`
	MimeType   string       `gorm:"type:varchar(128);not null" json:"mimeType"`
	UploadedAt time.Time    `gorm:"autoCreateTime" json:"uploadedAt"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// MissingRequired returns the required types absent from docs, in
// RequiredDocumentTypes order. Upload order does not matter.
func MissingRequired(docs []Document) []DocumentType {
	present := make(map[DocumentType]bool, len(docs))
	for _, d := range docs {
		present[d.Type] = true
	}

	var missing []DocumentType
	for _, t := range RequiredDocumentTypes {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

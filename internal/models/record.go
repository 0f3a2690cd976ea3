package models

import (
	"time"
)

// Record categories act as folder labels on the dashboard.
const (
	CategorySonography     = "Sonography"
	CategoryBloodTest      = "Blood Test"
	CategoryRegularCheckup = "Regular Checkup"
)

// Categories lists the folder labels a record may be filed under.
var Categories = []string{
	CategorySonography,
	CategoryBloodTest,
	CategoryRegularCheckup,
}

// ValidCategory reports whether c is one of the known folder labels.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Record represents one uploaded medical document. The file content itself
// lives in the blob store; the row holds metadata plus the blob handle.
type Record struct {
	BaseModel
	// UserID is the owner. It is set at creation and never changes.
	UserID      string    `gorm:"size:36;index;not null" json:"userId"`
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	Category    string    `gorm:"size:100;not null" json:"category"`
	RecordDate  time.Time `json:"date"`

	// FileURL is the retrievable location of the blob, FileKey the deletable handle.
	FileURL  string `gorm:"size:512" json:"fileUrl"`
	FileKey  string `gorm:"size:512" json:"-"`
	FileName string `gorm:"size:255" json:"fileName,omitempty"`
	FileType string `gorm:"size:100" json:"fileType,omitempty"`

	// ShareToken, when non-nil, grants anonymous read access to this record.
	// Unique index so a token can never resolve to more than one record.
	ShareToken *string `gorm:"size:64;uniqueIndex" json:"shareToken,omitempty"`

	// Relations
	Owner User `gorm:"foreignKey:UserID" json:"-"`
}

package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Project represents a portfolio entry with its media and descriptive metadata
type Project struct {
	ID          uuid.UUID                   `json:"id" db:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid();not null"`
	Title       string                      `json:"title" db:"title" gorm:"type:text;not null"`
	Category    string                      `json:"category" db:"category" gorm:"type:text;not null"`
	Location    string                      `json:"location" db:"location" gorm:"type:text;not null"`
	Year        Year                        `json:"year" db:"year" gorm:"type:text;not null"`
	Image       string                      `json:"image" db:"image" gorm:"type:text;not null"`
	Images      datatypes.JSONSlice[string] `json:"images" db:"images" gorm:"type:jsonb;not null;default:'[]'"`
	Video       *string                     `json:"video,omitempty" db:"video" gorm:"type:text"`
	Description string                      `json:"description" db:"description" gorm:"type:text;not null"`
	Services    datatypes.JSON              `json:"services" db:"services" gorm:"type:jsonb"`
	Highlights  datatypes.JSON              `json:"highlights" db:"highlights" gorm:"type:jsonb"`
	Stats       datatypes.JSON              `json:"stats" db:"stats" gorm:"type:jsonb"`
	Client      *string                     `json:"client,omitempty" db:"client" gorm:"type:text"`
	Budget      *string                     `json:"budget,omitempty" db:"budget" gorm:"type:text"`
	CreatedAt   time.Time                   `json:"createdAt" db:"created_at" gorm:"type:timestamptz;not null;index:idx_projects_created_at,sort:desc;autoCreateTime"`
	UpdatedAt   time.Time                   `json:"updatedAt" db:"updated_at" gorm:"type:timestamptz;not null;autoUpdateTime"`
}

// VideoRef returns the video reference or "" when none is attached.
func (p *Project) VideoRef() string {
	if p.Video == nil {
		return ""
	}
	return *p.Video
}

// MediaRefs lists every media reference attached to the project: image, gallery, then video.
func (p *Project) MediaRefs() []string {
	refs := make([]string, 0, len(p.Images)+2)
	if p.Image != "" {
		refs = append(refs, p.Image)
	}
	refs = append(refs, p.Images...)
	if v := p.VideoRef(); v != "" {
		refs = append(refs, v)
	}
	return refs
}

// Year is stored as text but accepts either a JSON string or a JSON number,
// since portfolio clients send both ("2024" and 2024).
type Year string

func (y *Year) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*y = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*y = Year(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("year must be a string or a number: %w", err)
	}
	*y = Year(n.String())
	return nil
}

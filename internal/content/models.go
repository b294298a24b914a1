package content

import (
	"time"
)

const (
	RevisionLogCreated = "Automatic creation from Post API."
	RevisionLogUpdated = "Automatic update from Post API."
)

// Entity is a piece of site content created through the Post API.
// LogicalKey identifies the document inside its bundle, independent of the submission uuid.
type Entity struct {
	ID          uint                   `gorm:"primaryKey" json:"id"`
	EntityType  string                 `gorm:"type:varchar(32);not null" json:"entity_type"`
	Bundle      string                 `gorm:"type:varchar(64);not null;uniqueIndex:idx_content_bundle_key" json:"bundle"`
	LogicalKey  string                 `gorm:"type:char(64);not null;uniqueIndex:idx_content_bundle_key" json:"logical_key"`
	UUID        string                 `gorm:"type:varchar(36);index" json:"uuid"`
	Title       string                 `gorm:"type:text" json:"title"`
	URL         string                 `gorm:"type:text" json:"url"`
	Fields      map[string]interface{} `gorm:"serializer:json;type:longtext" json:"fields"`
	ContentHash string                 `gorm:"type:char(64);not null" json:"content_hash"`
	ProviderID  string                 `gorm:"type:varchar(128);index" json:"provider_id"`
	UserID      int                    `json:"user_id"`
	RevisionLog string                 `gorm:"type:varchar(255)" json:"revision_log"`
	CreatedAt   time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time              `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Entity) TableName() string {
	return "post_api_content"
}

package tutorial

// Tutorial is a single tutorial entry persisted in the tutorials table.
type Tutorial struct {
	ID          uint   `gorm:"primaryKey"`
	Title       string `gorm:"type:text;not null"`
	Description string `gorm:"type:text;not null"`
	Published   bool   `gorm:"not null;default:false;index:idx_tutorials_published"`
}

// TableName defines the table name for the Tutorial model.
func (Tutorial) TableName() string {
	return "tutorials"
}

// New returns an unsaved tutorial. The ID is assigned on first Save.
func New(title, description string, published bool) Tutorial {
	return Tutorial{
		Title:       title,
		Description: description,
		Published:   published,
	}
}

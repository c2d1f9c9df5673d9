package database

import "fourwcycle/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []any {
	return []any{
		&models.Submission{},
		&models.SubmissionPhoto{},
	}
}

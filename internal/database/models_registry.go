package database

import "tutorx/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.Comment{},
		&models.PostCommentRef{},
		&models.Rating{},
		&models.Like{},
		&models.Follow{},
		&models.Favorite{},
		&models.PasswordResetToken{},
	}
}

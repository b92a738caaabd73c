package models

import (
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Roles gating workflow actions.
const (
	RoleAdmin     = "admin"
	RoleAnnotator = "annotator"
	RoleVerifier  = "verifier"
	RoleViewer    = "viewer"
)

type User struct {
	gorm.Model
	Username     string `json:"username" gorm:"uniqueIndex;size:150"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role" gorm:"size:20;default:viewer"`
}

// EnsureAdminUser seeds the first admin account when the user table is empty.
// Every route except login sits behind authentication and registration is
// admin-only, so a fresh database gets its admin from the configuration.
func EnsureAdminUser(db *gorm.DB, username, password string) error {
	var count int64
	if err := db.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if username == "" || password == "" {
		log.Warn("user table is empty and no bootstrap admin is configured; nobody can log in")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := User{Username: username, PasswordHash: string(hash), Role: RoleAdmin}
	if err := db.Create(&user).Error; err != nil {
		return err
	}
	log.Info("Created bootstrap admin ", username)
	return nil
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleAnnotator, RoleVerifier, RoleViewer:
		return true
	}
	return false
}

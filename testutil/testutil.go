// Package testutil provides shared test helpers for setting up databases and
// media roots.
package testutil

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	uuid "github.com/twinj/uuid"
	"gorm.io/gorm"

	"posescope/models"
	"posescope/storage"
	"posescope/utils"
)

// TestDB creates a temporary SQLite database with migrations applied.
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.Open("sqlite", filepath.Join(t.TempDir(), "posescope-test.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	return db
}

// TestStore creates a temporary media root with an FS store.
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// TestUser creates a user with the given role.
func TestUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Role: role}
	if err := db.Create(user).Error; err != nil {
		t.Fatal(err)
	}
	return user
}

// TestImage writes a small PNG into the store's images area and creates the
// matching database row.
func TestImage(t *testing.T, db *gorm.DB, store storage.Store, uploaderID uint) *models.Image {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 0xff})
		}
	}
	buf, err := utils.ImageToPngBuffer(img)
	if err != nil {
		t.Fatal(err)
	}

	identifier := uuid.NewV4().String()
	record := &models.Image{
		Identifier:   identifier,
		Path:         "images/" + identifier + ".png",
		Width:        320,
		Height:       240,
		Status:       models.StatusUnlabeled,
		UploadedByID: uploaderID,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatal(err)
	}
	if err := store.Write(record.Path, *buf); err != nil {
		t.Fatal(err)
	}
	return record
}

// Package lifecycle owns the annotation state machine: versioned submission,
// in-place correction, and the approve/reject transition with its artifact
// relocation. The engine assumes callers are already authorized for their role
// and enforces state invariants only.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"posescope/apperr"
	"posescope/audit"
	"posescope/keypoints"
	"posescope/models"
	"posescope/render"
	"posescope/storage"
)

// Engine executes lifecycle operations against the database and artifact store.
type Engine struct {
	db       *gorm.DB
	store    storage.Store
	renderer *render.Renderer
	sink     audit.Sink

	imageLocks      *keyMutex
	annotationLocks *keyMutex
}

// NewEngine wires the engine to its collaborators.
func NewEngine(db *gorm.DB, store storage.Store, renderer *render.Renderer, sink audit.Sink) *Engine {
	return &Engine{
		db:              db,
		store:           store,
		renderer:        renderer,
		sink:            sink,
		imageLocks:      newKeyMutex(),
		annotationLocks: newKeyMutex(),
	}
}

// CreateAnnotation persists a new annotation version for the image, renders
// its pending overlay, and notifies the assigned verifier if any. Version
// numbers per image are 1..N with no gaps; concurrent calls are serialized.
func (e *Engine) CreateAnnotation(imageID, annotatorID uint, pts keypoints.Set, verifierID *uint) (*models.Annotation, error) {
	if err := pts.Validate(); err != nil {
		return nil, err
	}

	var image models.Image
	if err := e.db.First(&image, imageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("image %d", imageID)
		}
		return nil, err
	}

	if verifierID != nil {
		var verifier models.User
		if err := e.db.First(&verifier, *verifierID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFoundf("verifier %d", *verifierID)
			}
			return nil, err
		}
		if verifier.Role != models.RoleVerifier {
			return nil, apperr.Validationf("user %d does not hold the verifier role", *verifierID)
		}
	}

	unlock := e.imageLocks.Lock(image.ID)
	defer unlock()

	var annotation *models.Annotation
	var err error
	for attempt := 0; ; attempt++ {
		annotation, err = e.insertVersion(&image, annotatorID, pts, verifierID)
		if err == nil {
			break
		}
		// The unique (image_id, version) index backstops the lock against
		// writers outside this process. Retry the read-max-write once.
		if isDuplicateKey(err) && attempt == 0 {
			log.Warn(fmt.Sprintf("version conflict on image %d, retrying", image.ID))
			continue
		}
		return nil, err
	}

	e.sink.Record(annotatorID, fmt.Sprintf("Created annotation %d (version %d) for image %d", annotation.ID, annotation.Version, image.ID))
	if verifierID != nil {
		e.sink.Notify(*verifierID, fmt.Sprintf("Annotation %d for image %d is awaiting your review", annotation.ID, image.ID))
	}
	return annotation, nil
}

// insertVersion allocates the next version number and creates the row, the
// overlay artifact and the image status transition as one unit.
func (e *Engine) insertVersion(image *models.Image, annotatorID uint, pts keypoints.Set, verifierID *uint) (*models.Annotation, error) {
	payload, err := pts.MarshalPayload()
	if err != nil {
		return nil, fmt.Errorf("encode keypoints: %w", err)
	}

	annotation := models.Annotation{
		ImageID:     image.ID,
		AnnotatorID: annotatorID,
		VerifierID:  verifierID,
		Data:        string(payload),
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		var maxVersion int
		err := tx.Model(&models.Annotation{}).
			Where("image_id = ?", image.ID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&maxVersion).Error
		if err != nil {
			return err
		}
		annotation.Version = maxVersion + 1

		if err := tx.Create(&annotation).Error; err != nil {
			return err
		}

		overlayPath, err := e.renderer.RenderPending(annotation.ID, image.Path, pts)
		if err != nil {
			return fmt.Errorf("render overlay: %w", err)
		}
		annotation.OverlayPath = overlayPath
		if err := tx.Model(&annotation).Update("overlay_path", overlayPath).Error; err != nil {
			return err
		}

		// Re-annotation of an already annotated or verified image must not
		// regress its status.
		if image.Status == models.StatusUnlabeled || image.Status == models.StatusMachineLabeled {
			if err := tx.Model(image).Update("status", models.StatusAnnotated).Error; err != nil {
				return err
			}
			image.Status = models.StatusAnnotated
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &annotation, nil
}

// EditAnnotation replaces the keypoint data of an existing annotation in
// place: same row, same version. Only the original annotator may edit, and an
// approved annotation can no longer be edited. The assigned verifier is
// notified that the annotation changed.
func (e *Engine) EditAnnotation(annotationID, editorID uint, pts keypoints.Set) (*models.Annotation, error) {
	if err := pts.Validate(); err != nil {
		return nil, err
	}

	unlock := e.annotationLocks.Lock(annotationID)
	defer unlock()

	var annotation models.Annotation
	err := e.db.Preload("Verification").First(&annotation, annotationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("annotation %d", annotationID)
		}
		return nil, err
	}
	if annotation.AnnotatorID != editorID {
		return nil, fmt.Errorf("annotation %d belongs to another annotator: %w", annotationID, apperr.ErrForbidden)
	}
	if annotation.Verification != nil && annotation.Verification.Status == models.VerificationApproved {
		return nil, apperr.Conflictf("annotation %d is already approved", annotationID)
	}

	var image models.Image
	if err := e.db.First(&image, annotation.ImageID).Error; err != nil {
		return nil, err
	}

	payload, err := pts.MarshalPayload()
	if err != nil {
		return nil, fmt.Errorf("encode keypoints: %w", err)
	}

	// Corrections re-render in place; only a fresh CreateAnnotation call
	// forks version history.
	overlayPath, err := e.renderer.RenderPending(annotation.ID, image.Path, pts)
	if err != nil {
		return nil, fmt.Errorf("render overlay: %w", err)
	}

	updates := map[string]interface{}{
		"data":         string(payload),
		"overlay_path": overlayPath,
	}
	if err := e.db.Model(&annotation).Updates(updates).Error; err != nil {
		return nil, err
	}
	annotation.Data = string(payload)
	annotation.OverlayPath = overlayPath

	e.sink.Record(editorID, fmt.Sprintf("Edited annotation %d", annotation.ID))
	if annotation.VerifierID != nil {
		e.sink.Notify(*annotation.VerifierID, fmt.Sprintf("Annotation %d changed since it was assigned to you", annotation.ID))
	}
	return &annotation, nil
}

// Decide records a verifier's decision on an annotation. A repeat decision
// overwrites the previous one atomically; last write wins. Approval relocates
// the overlay to the verified area before the database transition commits,
// with a compensating move back if the commit fails.
func (e *Engine) Decide(annotationID, verifierID uint, status, feedback string) (*models.Verification, error) {
	if status != models.VerificationApproved && status != models.VerificationRejected {
		return nil, apperr.Validationf("status must be %q or %q, got %q", models.VerificationApproved, models.VerificationRejected, status)
	}

	var verifier models.User
	if err := e.db.First(&verifier, verifierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("verifier %d", verifierID)
		}
		return nil, err
	}

	unlock := e.annotationLocks.Lock(annotationID)
	defer unlock()

	var annotation models.Annotation
	if err := e.db.First(&annotation, annotationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFoundf("annotation %d", annotationID)
		}
		return nil, err
	}

	verification := models.Verification{
		AnnotationID: annotation.ID,
		VerifierID:   verifierID,
		Status:       status,
		Feedback:     feedback,
		DecidedAt:    time.Now(),
	}

	if status == models.VerificationApproved {
		if err := e.approve(&annotation, &verification); err != nil {
			return nil, err
		}
	} else {
		if err := e.reject(&annotation, &verification); err != nil {
			return nil, err
		}
	}

	e.sink.Record(verifierID, fmt.Sprintf("Verified annotation %d as %s", annotation.ID, status))
	if status == models.VerificationRejected {
		e.sink.Notify(annotation.AnnotatorID, fmt.Sprintf("Annotation %d was rejected: %s", annotation.ID, feedback))
	} else {
		e.sink.Notify(annotation.AnnotatorID, fmt.Sprintf("Annotation %d was approved", annotation.ID))
	}

	if err := e.db.Where("annotation_id = ?", annotation.ID).First(&verification).Error; err != nil {
		return nil, err
	}
	return &verification, nil
}

// approve relocates the overlay and commits the verified transition as one
// logical unit: the move happens first, and the database never records a
// verified annotation whose artifact still lives in the pending area.
func (e *Engine) approve(annotation *models.Annotation, verification *models.Verification) error {
	src := render.PendingPath(annotation.ID)
	dst := render.VerifiedPath(annotation.ID)

	moved := false
	if err := e.store.Move(src, dst); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		// The pending render should always exist when the annotation does.
		// A missing source is a recoverable data-integrity fault: a repeat
		// approval already relocated it, otherwise the render was lost.
		// Log and continue rather than abort the transition.
		if e.store.Exists(dst) {
			log.Warn(fmt.Sprintf("overlay for annotation %d already in verified area", annotation.ID))
		} else {
			log.Warn(fmt.Sprintf("overlay for annotation %d missing from pending area: %s", annotation.ID, apperr.ErrConflict))
		}
	} else {
		moved = true
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.upsertVerification(tx, verification); err != nil {
			return err
		}
		if err := tx.Model(annotation).Update("overlay_path", dst).Error; err != nil {
			return err
		}
		return tx.Model(&models.Image{}).
			Where("id = ?", annotation.ImageID).
			Update("status", models.StatusVerified).Error
	})
	if err != nil {
		if moved {
			if moveBack := e.store.Move(dst, src); moveBack != nil {
				log.Error(fmt.Sprintf("compensating move for annotation %d failed: %s", annotation.ID, moveBack.Error()))
			}
		}
		return err
	}
	annotation.OverlayPath = dst
	return nil
}

// reject records the rejection. Ordinarily the artifact stays in the pending
// area and the image stays at StatusAnnotated, eligible for the next
// CreateAnnotation version. When the rejection overturns an earlier approval
// it also reverses that transition: the overlay returns to the pending area
// and the image drops back to StatusAnnotated.
func (e *Engine) reject(annotation *models.Annotation, verification *models.Verification) error {
	var prior models.Verification
	wasApproved := false
	if err := e.db.Where("annotation_id = ?", annotation.ID).First(&prior).Error; err == nil {
		wasApproved = prior.Status == models.VerificationApproved
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if !wasApproved {
		return e.upsertVerification(e.db, verification)
	}

	src := render.VerifiedPath(annotation.ID)
	dst := render.PendingPath(annotation.ID)

	moved := false
	if err := e.store.Move(src, dst); err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		log.Warn(fmt.Sprintf("overlay for annotation %d missing from verified area: %s", annotation.ID, apperr.ErrConflict))
	} else {
		moved = true
	}

	err := e.db.Transaction(func(tx *gorm.DB) error {
		if err := e.upsertVerification(tx, verification); err != nil {
			return err
		}
		if err := tx.Model(annotation).Update("overlay_path", dst).Error; err != nil {
			return err
		}
		return tx.Model(&models.Image{}).
			Where("id = ?", annotation.ImageID).
			Update("status", models.StatusAnnotated).Error
	})
	if err != nil {
		if moved {
			if moveBack := e.store.Move(dst, src); moveBack != nil {
				log.Error(fmt.Sprintf("compensating move for annotation %d failed: %s", annotation.ID, moveBack.Error()))
			}
		}
		return err
	}
	annotation.OverlayPath = dst
	return nil
}

// upsertVerification writes the decision as a single conditional insert, so
// concurrent decisions resolve to a deterministic last-write-wins at the
// database rather than racing a read-then-write.
func (e *Engine) upsertVerification(tx *gorm.DB, verification *models.Verification) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "annotation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"verifier_id", "status", "feedback", "decided_at", "updated_at",
		}),
	}).Create(verification).Error
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry")
}

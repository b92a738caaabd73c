package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"posescope/apperr"
	"posescope/keypoints"
	"posescope/models"
	"posescope/render"
	"posescope/storage"
	"posescope/testutil"
)

// recordingSink captures audit and notification events for assertions.
type recordingSink struct {
	mu            sync.Mutex
	records       []string
	notifications map[uint][]string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notifications: make(map[uint][]string)}
}

func (s *recordingSink) Record(userID uint, action string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, action)
}

func (s *recordingSink) Notify(userID uint, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[userID] = append(s.notifications[userID], message)
}

func (s *recordingSink) notified(userID uint, substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.notifications[userID] {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

type fixture struct {
	engine    *Engine
	db        *gorm.DB
	store     *storage.FS
	sink      *recordingSink
	annotator *models.User
	verifier  *models.User
	image     *models.Image
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	store := testutil.TestStore(t)
	sink := newRecordingSink()
	engine := NewEngine(db, store, render.NewRenderer(store), sink)

	annotator := testutil.TestUser(t, db, "ann", models.RoleAnnotator)
	verifier := testutil.TestUser(t, db, "ver", models.RoleVerifier)
	image := testutil.TestImage(t, db, store, annotator.ID)

	return &fixture{
		engine:    engine,
		db:        db,
		store:     store,
		sink:      sink,
		annotator: annotator,
		verifier:  verifier,
		image:     image,
	}
}

func validPoints() keypoints.Set {
	s := make(keypoints.Set, keypoints.NumPoints)
	for i := range s {
		s[i] = keypoints.Point{X: float64(30 + i*5), Y: float64(40 + i*3)}
	}
	return s
}

func TestCreateAnnotationFirstVersion(t *testing.T) {
	f := newFixture(t)

	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), &f.verifier.ID)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}
	if a.Version != 1 {
		t.Errorf("version = %d, want 1", a.Version)
	}
	if a.OverlayPath != render.PendingPath(a.ID) {
		t.Errorf("overlay path = %q, want %q", a.OverlayPath, render.PendingPath(a.ID))
	}
	if !f.store.Exists(a.OverlayPath) {
		t.Error("pending overlay artifact should exist")
	}

	var img models.Image
	if err := f.db.First(&img, f.image.ID).Error; err != nil {
		t.Fatalf("reload image: %v", err)
	}
	if img.Status != models.StatusAnnotated {
		t.Errorf("image status = %q, want %q", img.Status, models.StatusAnnotated)
	}
	if !f.sink.notified(f.verifier.ID, "awaiting your review") {
		t.Error("assigned verifier should be notified")
	}
}

func TestCreateAnnotationDoesNotRegressStatus(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := f.db.Model(f.image).Update("status", models.StatusVerified).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil); err != nil {
		t.Fatalf("second create: %v", err)
	}
	var img models.Image
	if err := f.db.First(&img, f.image.ID).Error; err != nil {
		t.Fatal(err)
	}
	if img.Status != models.StatusVerified {
		t.Errorf("status regressed to %q", img.Status)
	}
}

func TestCreateAnnotationRejectsEmptyPayload(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, keypoints.Set{}, nil)
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestCreateAnnotationMissingImage(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateAnnotation(99999, f.annotator.ID, validPoints(), nil)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateAnnotationMissingVerifier(t *testing.T) {
	f := newFixture(t)
	missing := uint(99999)
	_, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), &missing)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateAnnotationVerifierMustHoldRole(t *testing.T) {
	f := newFixture(t)
	viewer := testutil.TestUser(t, f.db, "viewer", models.RoleViewer)
	_, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), &viewer.ID)
	if !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestConcurrentCreatesYieldSequentialVersions(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent create: %v", err)
	}

	var versions []int
	if err := f.db.Model(&models.Annotation{}).Where("image_id = ?", f.image.ID).Pluck("version", &versions).Error; err != nil {
		t.Fatal(err)
	}
	sort.Ints(versions)
	if len(versions) != n {
		t.Fatalf("got %d annotations, want %d", len(versions), n)
	}
	for i, v := range versions {
		if v != i+1 {
			t.Fatalf("versions = %v, want 1..%d with no gaps", versions, n)
		}
	}
}

func TestEditKeepsVersionAndRow(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), &f.verifier.ID)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}

	edited := validPoints()
	edited[0] = keypoints.Point{X: 111, Y: 99}
	got, err := f.engine.EditAnnotation(a.ID, f.annotator.ID, edited)
	if err != nil {
		t.Fatalf("EditAnnotation: %v", err)
	}
	if got.Version != a.Version {
		t.Errorf("version changed: %d -> %d", a.Version, got.Version)
	}
	if got.Data == a.Data {
		t.Error("data should have changed")
	}

	var count int64
	if err := f.db.Model(&models.Annotation{}).Where("image_id = ?", f.image.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("row count = %d, edit must not create rows", count)
	}
	if !f.sink.notified(f.verifier.ID, "changed since it was assigned") {
		t.Error("verifier should be notified about the edit")
	}
}

func TestEditByOtherAnnotatorForbidden(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}
	other := testutil.TestUser(t, f.db, "other", models.RoleAnnotator)
	if _, err := f.engine.EditAnnotation(a.ID, other.ID, validPoints()); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestEditApprovedAnnotationConflicts(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}
	if _, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationApproved, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if _, err := f.engine.EditAnnotation(a.ID, f.annotator.ID, validPoints()); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestDecideRejected(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), &f.verifier.ID)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}

	v, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationRejected, "fix ankle")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Status != models.VerificationRejected {
		t.Errorf("status = %q, want rejected", v.Status)
	}

	var img models.Image
	if err := f.db.First(&img, f.image.ID).Error; err != nil {
		t.Fatal(err)
	}
	if img.Status != models.StatusAnnotated {
		t.Errorf("image status = %q, want %q after rejection", img.Status, models.StatusAnnotated)
	}
	if !f.store.Exists(render.PendingPath(a.ID)) {
		t.Error("pending artifact should stay in place on rejection")
	}
	if !f.sink.notified(f.annotator.ID, "fix ankle") {
		t.Error("annotator should receive the rejection feedback")
	}

	// The image is eligible for a fresh annotation round.
	next, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("re-annotation after rejection: %v", err)
	}
	if next.Version != 2 {
		t.Errorf("next version = %d, want 2", next.Version)
	}
}

func TestDecideApprovedMovesArtifact(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), &f.verifier.ID)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}

	if _, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationApproved, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	pendingExists := f.store.Exists(render.PendingPath(a.ID))
	verifiedExists := f.store.Exists(render.VerifiedPath(a.ID))
	if pendingExists || !verifiedExists {
		t.Errorf("artifact state pending=%v verified=%v, want exactly the verified artifact", pendingExists, verifiedExists)
	}

	var img models.Image
	if err := f.db.First(&img, f.image.ID).Error; err != nil {
		t.Fatal(err)
	}
	if img.Status != models.StatusVerified {
		t.Errorf("image status = %q, want %q", img.Status, models.StatusVerified)
	}

	var reloaded models.Annotation
	if err := f.db.First(&reloaded, a.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.OverlayPath != render.VerifiedPath(a.ID) {
		t.Errorf("overlay path = %q, want %q", reloaded.OverlayPath, render.VerifiedPath(a.ID))
	}
}

func TestDecideUpsertOverwrites(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}

	if _, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationRejected, "too sloppy"); err != nil {
		t.Fatalf("first Decide: %v", err)
	}
	second := testutil.TestUser(t, f.db, "ver2", models.RoleVerifier)
	v, err := f.engine.Decide(a.ID, second.ID, models.VerificationApproved, "fine after all")
	if err != nil {
		t.Fatalf("second Decide: %v", err)
	}

	if v.Status != models.VerificationApproved {
		t.Errorf("status = %q, want approved", v.Status)
	}
	if v.VerifierID != second.ID {
		t.Errorf("verifier of record = %d, want %d", v.VerifierID, second.ID)
	}
	if v.Feedback != "fine after all" {
		t.Errorf("feedback = %q, want overwrite", v.Feedback)
	}

	var count int64
	if err := f.db.Model(&models.Verification{}).Where("annotation_id = ?", a.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("verification rows = %d, want exactly 1", count)
	}
}

func TestRejectAfterApprovalReversesTransition(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}
	if _, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationApproved, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	v, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationRejected, "missed the left wrist")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if v.Status != models.VerificationRejected {
		t.Errorf("status = %q, want rejected", v.Status)
	}

	var img models.Image
	if err := f.db.First(&img, f.image.ID).Error; err != nil {
		t.Fatal(err)
	}
	if img.Status != models.StatusAnnotated {
		t.Errorf("image status = %q, want %q after overturned approval", img.Status, models.StatusAnnotated)
	}

	pendingExists := f.store.Exists(render.PendingPath(a.ID))
	verifiedExists := f.store.Exists(render.VerifiedPath(a.ID))
	if !pendingExists || verifiedExists {
		t.Errorf("artifact state pending=%v verified=%v, want overlay back in the pending area", pendingExists, verifiedExists)
	}

	var reloaded models.Annotation
	if err := f.db.First(&reloaded, a.ID).Error; err != nil {
		t.Fatal(err)
	}
	if reloaded.OverlayPath != render.PendingPath(a.ID) {
		t.Errorf("overlay path = %q, want %q", reloaded.OverlayPath, render.PendingPath(a.ID))
	}

	// The annotation is editable again now that the approval is gone.
	if _, err := f.engine.EditAnnotation(a.ID, f.annotator.ID, validPoints()); err != nil {
		t.Errorf("edit after overturned approval: %v", err)
	}
}

func TestDecideInvalidStatus(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}
	if _, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationPending, ""); !apperr.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestDecideMissingAnnotation(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Decide(99999, f.verifier.ID, models.VerificationApproved, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDecideApprovedWithMissingPendingArtifact(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}

	abs, err := f.store.Abs(render.PendingPath(a.ID))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(abs); err != nil {
		t.Fatal(err)
	}

	// The lost render is a data-integrity fault, not a reason to wedge the
	// workflow: the transition still commits.
	v, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationApproved, "")
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if v.Status != models.VerificationApproved {
		t.Errorf("status = %q, want approved", v.Status)
	}
	var img models.Image
	if err := f.db.First(&img, f.image.ID).Error; err != nil {
		t.Fatal(err)
	}
	if img.Status != models.StatusVerified {
		t.Errorf("image status = %q, want %q", img.Status, models.StatusVerified)
	}
}

func TestAuditTrailRecorded(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.CreateAnnotation(f.image.ID, f.annotator.ID, validPoints(), nil)
	if err != nil {
		t.Fatalf("CreateAnnotation: %v", err)
	}
	if _, err := f.engine.Decide(a.ID, f.verifier.ID, models.VerificationApproved, ""); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	wantPrefixes := []string{
		fmt.Sprintf("Created annotation %d", a.ID),
		fmt.Sprintf("Verified annotation %d as approved", a.ID),
	}
	for _, want := range wantPrefixes {
		found := false
		for _, r := range f.sink.records {
			if strings.HasPrefix(r, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("audit trail missing entry starting %q, got %v", want, f.sink.records)
		}
	}
}

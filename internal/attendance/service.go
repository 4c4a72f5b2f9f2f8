package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/classtrack/attendance/internal/store"
)

// Detector is the external face detection collaborator. It extracts one
// fixed-width embedding per face found in a photo; an empty result means
// zero faces and is not an error.
type Detector interface {
	Detect(ctx context.Context, photo []byte) ([][]float32, error)
}

// Service is the façade used by the capture pipelines. Every marking path —
// face photo, QR scan, manual action — routes through the ledger here, so
// the precedence and uniqueness rules hold no matter how a mark arrives.
type Service struct {
	store     *store.Store
	processor *Processor
	ledger    *Ledger
	detector  Detector
	index     *store.TemplateIndex // enrollment duplicate guard, may be empty

	embeddingDim       int
	duplicateThreshold float64
	now                func() time.Time
}

// NewService wires the reconciliation façade.
func NewService(st *store.Store, processor *Processor, ledger *Ledger, detector Detector, index *store.TemplateIndex, embeddingDim int, duplicateThreshold float64) *Service {
	return &Service{
		store:              st,
		processor:          processor,
		ledger:             ledger,
		detector:           detector,
		index:              index,
		embeddingDim:       embeddingDim,
		duplicateThreshold: duplicateThreshold,
		now:                time.Now,
	}
}

// SubmitFacePhoto runs the full photo pipeline: session creation, external
// detection, matching and ledger commits. A detector fault marks the session
// failed and surfaces as ErrDetectorFailure; no marks are committed for a
// failed session.
func (s *Service) SubmitFacePhoto(ctx context.Context, classID int64, teacherID string, photo []byte) (*SessionResult, error) {
	session, err := s.processor.Begin(ctx, classID, teacherID, uuid.NewString())
	if err != nil {
		return nil, err
	}

	embeddings, err := s.detector.Detect(ctx, photo)
	if err != nil {
		s.processor.Fail(ctx, session.ID)
		return &SessionResult{SessionID: session.ID, Status: store.SessionFailed},
			fmt.Errorf("%w: %v", ErrDetectorFailure, err)
	}

	return s.processor.Process(ctx, session, embeddings)
}

// SubmitFaceSession processes already-extracted embeddings, for callers that
// run detection themselves.
func (s *Service) SubmitFaceSession(ctx context.Context, classID int64, teacherID, photoRef string, embeddings [][]float32) (*SessionResult, error) {
	session, err := s.processor.Begin(ctx, classID, teacherID, photoRef)
	if err != nil {
		return nil, err
	}
	return s.processor.Process(ctx, session, embeddings)
}

// SubmitQRScan decodes a scanned QR payload and marks the student present.
// The identity lookup is always by student_id against the roster, never by
// the payload's display fields.
func (s *Service) SubmitQRScan(ctx context.Context, payload string, classID int64, teacherID string) (Outcome, error) {
	studentID, err := decodeQRPayload(payload)
	if err != nil {
		return Outcome{}, err
	}

	student, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return Outcome{}, err
	}
	if student.ClassID != classID {
		return Outcome{}, validationErrorf("student %s is not enrolled in class %d", studentID, classID)
	}

	return s.ledger.Mark(ctx, MarkRequest{
		StudentID: studentID,
		Date:      store.DateOf(s.now()),
		Status:    store.StatusPresent,
		Method:    store.MethodQR,
		Notes:     "QR code scan",
	})
}

// SubmitManual applies a teacher's explicit mark. Manual is the only method
// that can assert absence, and it always locks the record as verified.
func (s *Service) SubmitManual(ctx context.Context, studentID string, classID int64, teacherID string, status store.Status, notes string) (Outcome, error) {
	student, err := s.activeStudent(ctx, studentID)
	if err != nil {
		return Outcome{}, err
	}
	if student.ClassID != classID {
		return Outcome{}, validationErrorf("student %s is not enrolled in class %d", studentID, classID)
	}

	return s.ledger.Mark(ctx, MarkRequest{
		StudentID: studentID,
		Date:      store.DateOf(s.now()),
		Status:    status,
		Method:    store.MethodManual,
		Notes:     notes,
	})
}

// EnrollFace registers a student's face template from a single-face photo.
// The photo must contain exactly one face, and the embedding must not be
// nearly identical to a template already owned by a different student.
func (s *Service) EnrollFace(ctx context.Context, studentID string, photo []byte) (*store.Template, error) {
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}

	embeddings, err := s.detector.Detect(ctx, photo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorFailure, err)
	}
	switch {
	case len(embeddings) == 0:
		return nil, validationErrorf("no face detected in the enrollment photo")
	case len(embeddings) > 1:
		return nil, validationErrorf("multiple faces detected; provide a photo with a single face")
	}

	embedding := embeddings[0]
	if len(embedding) != s.embeddingDim {
		return nil, validationErrorf("embedding width %d does not match configured width %d", len(embedding), s.embeddingDim)
	}

	if err := s.guardDuplicate(ctx, studentID, embedding); err != nil {
		return nil, err
	}

	tpl, err := s.store.Templates.Register(ctx, studentID, embedding)
	if err != nil {
		return nil, err
	}
	if s.index != nil {
		s.index.Add(tpl)
	}
	return tpl, nil
}

// RemoveFace deletes all templates for a student, e.g. on deactivation.
func (s *Service) RemoveFace(ctx context.Context, studentID string) error {
	if err := s.store.Templates.Remove(ctx, studentID); err != nil {
		return err
	}
	if s.index != nil {
		s.index.Remove(studentID)
	}
	return nil
}

// guardDuplicate rejects a template that sits closer to another student's
// existing template than the duplicate threshold. Twins enrolled from the
// same photo would otherwise make every later match ambiguous. The in-memory
// index answers the lookup when loaded; otherwise a store that can search
// nearest neighbors itself is consulted.
func (s *Service) guardDuplicate(ctx context.Context, studentID string, embedding []float32) error {
	if s.duplicateThreshold <= 0 {
		return nil
	}

	var neighbors []store.Neighbor
	switch {
	case s.index != nil && s.index.Count() > 0:
		found, err := s.index.Search(embedding, 3)
		if err != nil {
			return nil // index unavailable, registration proceeds
		}
		neighbors = found
	default:
		searcher, ok := s.store.Templates.(store.NearestSearcher)
		if !ok {
			return nil
		}
		found, err := searcher.Nearest(ctx, embedding, 3)
		if err != nil {
			return nil
		}
		neighbors = found
	}

	for _, n := range neighbors {
		if n.StudentID != studentID && n.Distance < s.duplicateThreshold {
			return validationErrorf("face is nearly identical to a template of student %s", n.StudentID)
		}
	}
	return nil
}

func (s *Service) activeStudent(ctx context.Context, studentID string) (*store.Student, error) {
	student, err := s.store.Students.Get(ctx, studentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, validationErrorf("unknown student %q", studentID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up student %s: %w", studentID, err)
	}
	if !student.Active {
		return nil, validationErrorf("student %q is deactivated", studentID)
	}
	return student, nil
}

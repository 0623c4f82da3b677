package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/constants"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/draft"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/models"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/wizard"
)

// SessionView is what the HTTP layer returns for a live wizard session.
type SessionView struct {
	SessionID  string                     `json:"sessionId"`
	Draft      models.DraftSubjectProfile `json:"draft"`
	Wizard     wizard.View                `json:"wizard"`
	Submitting bool                       `json:"submitting"`
	LastResult *models.SubmissionResult   `json:"lastResult,omitempty"`
	UpdatedAt  time.Time                  `json:"updatedAt"`
}

// NextOutcome reports a forward move. Session is nil once a completed
// submission has discarded the session.
type NextOutcome struct {
	Completed bool                     `json:"completed"`
	Session   *SessionView             `json:"session,omitempty"`
	Result    *models.SubmissionResult `json:"result,omitempty"`
}

// SubjectRecord is a subject created through onboarding.
type SubjectRecord struct {
	SubjectID          string                    `json:"subjectId"`
	Kind               models.SubjectKind        `json:"kind"`
	PhotoUploadOutcome models.PhotoUploadOutcome `json:"photoUploadOutcome"`
	Photo              *models.PhotoUpload       `json:"photo,omitempty"`
	CreatedAt          time.Time                 `json:"createdAt"`
}

// UserSessionState is the application-wide state written back after a
// successful submission.
type UserSessionState struct {
	Own    *SubjectRecord  `json:"own,omitempty"`
	Guests []SubjectRecord `json:"guests"`
}

type SessionService interface {
	Start(userID string, kind models.SubjectKind) SessionView
	Get(userID, sessionID string) (SessionView, error)
	ApplyPatch(userID, sessionID string, p draft.Patch) (SessionView, error)
	SearchPlaces(ctx context.Context, userID, sessionID, query, lang string) ([]models.PlaceSuggestion, error)
	SelectPlace(ctx context.Context, userID, sessionID string, suggestion models.PlaceSuggestion) (SessionView, error)
	AttachPhoto(userID, sessionID string, r io.Reader, mimeType string) (SessionView, error)
	RemovePhoto(userID, sessionID string) (SessionView, error)
	Next(ctx context.Context, userID, sessionID string) (NextOutcome, error)
	Back(userID, sessionID string) (SessionView, error)
	EditJump(userID, sessionID string, index int) (SessionView, error)
	Abandon(userID, sessionID string) error
	UserState(userID string) UserSessionState
	RetrySubjectPhoto(ctx context.Context, userID, subjectID string, r io.Reader, mimeType string) (models.PhotoUpload, error)
	RemoveSubjectPhoto(ctx context.Context, userID, subjectID string) error
	// SweepIdle drops sessions untouched since cutoff and returns how
	// many went. Sessions mid-submission are kept.
	SweepIdle(cutoff time.Time) int
}

type SessionServiceConfig struct {
	StagingDir    string
	MaxPhotoBytes int64
}

type session struct {
	mu         sync.Mutex
	id         string
	userID     string
	store      *draft.Store
	flow       *wizard.Flow
	submitting bool
	lastResult *models.SubmissionResult
	updatedAt  time.Time
}

type sessionService struct {
	mu       sync.RWMutex
	sessions map[string]*session
	users    map[string]*UserSessionState

	location     LocationService
	orchestrator SubmissionOrchestrator
	media        MediaUploadService
	cfg          SessionServiceConfig
	now          func() time.Time
}

func NewSessionService(
	location LocationService,
	orchestrator SubmissionOrchestrator,
	media MediaUploadService,
	cfg SessionServiceConfig,
) SessionService {
	if cfg.StagingDir == "" {
		cfg.StagingDir = filepath.Join(os.TempDir(), constants.DefaultStagingDirName)
	}
	if cfg.MaxPhotoBytes <= 0 {
		cfg.MaxPhotoBytes = constants.DefaultMaxPhotoBytes
	}
	return &sessionService{
		sessions:     make(map[string]*session),
		users:        make(map[string]*UserSessionState),
		location:     location,
		orchestrator: orchestrator,
		media:        media,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *sessionService) Start(userID string, kind models.SubjectKind) SessionView {
	sess := &session{
		id:        uuid.NewString(),
		userID:    userID,
		store:     draft.NewStore(kind),
		flow:      wizard.NewFlow(wizard.DefaultSteps()),
		updatedAt: s.now(),
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	utils.Logger.WithFields(logrus.Fields{
		"session_id": sess.id,
		"user_id":    userID,
		"kind":       kind,
	}).Info("[Session] Wizard session started")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

// lookup returns the session only to its owner.
func (s *sessionService) lookup(userID, sessionID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || sess.userID != userID {
		return nil, utils.ErrSessionNotFound
	}
	return sess, nil
}

// edit runs fn under the session lock unless a submission is in flight.
func (s *sessionService) edit(userID, sessionID string, fn func(sess *session) error) (SessionView, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.submitting {
		return sess.view(), utils.ErrSubmissionInFlight
	}
	if err := fn(sess); err != nil {
		return sess.view(), err
	}
	sess.updatedAt = s.now()
	return sess.view(), nil
}

func (s *sessionService) Get(userID, sessionID string) (SessionView, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return SessionView{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

func (s *sessionService) ApplyPatch(userID, sessionID string, p draft.Patch) (SessionView, error) {
	return s.edit(userID, sessionID, func(sess *session) error {
		return sess.store.Apply(p)
	})
}

// SearchPlaces records the typed query on the draft, then looks it up.
// Lookup failures come back as an empty list.
func (s *sessionService) SearchPlaces(ctx context.Context, userID, sessionID, query, lang string) ([]models.PlaceSuggestion, error) {
	if _, err := s.edit(userID, sessionID, func(sess *session) error {
		sess.store.SetLocationQuery(query)
		return nil
	}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, constants.PlaceLookupTimeout)
	defer cancel()
	return s.location.SearchPlaces(ctx, query, lang), nil
}

// SelectPlace resolves the suggestion and writes the result back whole.
// A failed resolution clears any earlier one.
func (s *sessionService) SelectPlace(ctx context.Context, userID, sessionID string, suggestion models.PlaceSuggestion) (SessionView, error) {
	if _, err := s.lookup(userID, sessionID); err != nil {
		return SessionView{}, err
	}

	lookupCtx, cancel := context.WithTimeout(ctx, constants.PlaceLookupTimeout)
	place, resolveErr := s.location.SelectPlace(lookupCtx, suggestion)
	cancel()

	return s.edit(userID, sessionID, func(sess *session) error {
		if resolveErr != nil {
			sess.store.ClearResolvedLocation()
			return resolveErr
		}
		sess.store.ResolveLocation(suggestion.Description, place)
		return nil
	})
}

// AttachPhoto stages the image bytes under the staging dir and points the
// draft at the staged file. A replaced image's file is removed.
func (s *sessionService) AttachPhoto(userID, sessionID string, r io.Reader, mimeType string) (SessionView, error) {
	if _, err := s.lookup(userID, sessionID); err != nil {
		return SessionView{}, err
	}
	ref, err := s.stagePhoto(sessionID, r, mimeType)
	if err != nil {
		return SessionView{}, err
	}

	view, err := s.edit(userID, sessionID, func(sess *session) error {
		if prev := sess.store.SetLocalImage(ref); prev != nil {
			removeQuietly(prev.URI)
		}
		return nil
	})
	if err != nil {
		removeQuietly(ref.URI)
	}
	return view, err
}

func (s *sessionService) RemovePhoto(userID, sessionID string) (SessionView, error) {
	return s.edit(userID, sessionID, func(sess *session) error {
		if prev := sess.store.ClearLocalImage(); prev != nil {
			removeQuietly(prev.URI)
		}
		return nil
	})
}

func (s *sessionService) Back(userID, sessionID string) (SessionView, error) {
	return s.edit(userID, sessionID, func(sess *session) error {
		return sess.flow.Back()
	})
}

func (s *sessionService) EditJump(userID, sessionID string, index int) (SessionView, error) {
	return s.edit(userID, sessionID, func(sess *session) error {
		return sess.flow.EditJump(index)
	})
}

// Next advances the wizard. On the review step it runs the submission
// with the session marked in flight, so edits and a second Next get
// ErrSubmissionInFlight until it settles. The submission is not tied to
// the caller's cancellation.
func (s *sessionService) Next(ctx context.Context, userID, sessionID string) (NextOutcome, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return NextOutcome{}, err
	}

	sess.mu.Lock()
	if sess.submitting {
		view := sess.view()
		sess.mu.Unlock()
		return NextOutcome{Session: &view}, utils.ErrSubmissionInFlight
	}
	snapshot := sess.store.Snapshot()
	if !sess.flow.State().IsLastStep() {
		defer sess.mu.Unlock()
		_, err := sess.flow.Next(ctx, snapshot, nil)
		if err == nil {
			sess.updatedAt = s.now()
		}
		view := sess.view()
		return NextOutcome{Session: &view}, err
	}
	sess.submitting = true
	sess.mu.Unlock()

	var result models.SubmissionResult
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.SubmissionTimeout)
	defer cancel()
	completed, err := sess.flow.Next(submitCtx, snapshot, func(ctx context.Context) error {
		var submitErr error
		result, submitErr = s.orchestrator.Submit(ctx, userID, snapshot)
		return submitErr
	})

	sess.mu.Lock()
	sess.submitting = false
	sess.updatedAt = s.now()
	if !completed {
		// The review step rejected the draft before anything was sent.
		view := sess.view()
		sess.mu.Unlock()
		return NextOutcome{Session: &view}, err
	}
	if err != nil {
		sess.lastResult = &result
		view := sess.view()
		sess.mu.Unlock()
		return NextOutcome{Completed: true, Session: &view, Result: &result}, err
	}
	sess.mu.Unlock()

	s.recordSubject(userID, snapshot.Kind, result)
	s.discard(sess, snapshot.LocalImageRef)
	return NextOutcome{Completed: true, Result: &result}, nil
}

func (s *sessionService) Abandon(userID, sessionID string) error {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	if sess.submitting {
		sess.mu.Unlock()
		return utils.ErrSubmissionInFlight
	}
	img := sess.store.Snapshot().LocalImageRef
	sess.mu.Unlock()

	s.discard(sess, img)
	utils.Logger.WithField("session_id", sessionID).Info("[Session] Wizard session abandoned")
	return nil
}

func (s *sessionService) discard(sess *session, img *models.LocalImageRef) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	if img != nil {
		removeQuietly(img.URI)
	}
}

func (s *sessionService) recordSubject(userID string, kind models.SubjectKind, result models.SubmissionResult) {
	rec := SubjectRecord{
		SubjectID:          result.SubjectID,
		Kind:               kind,
		PhotoUploadOutcome: result.PhotoUploadOutcome,
		Photo:              result.Photo,
		CreatedAt:          s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.userState(userID)
	if kind == models.SubjectKindGuest {
		st.Guests = append(st.Guests, rec)
	} else {
		st.Own = &rec
	}
}

// userState must be called with s.mu held.
func (s *sessionService) userState(userID string) *UserSessionState {
	st, ok := s.users[userID]
	if !ok {
		st = &UserSessionState{Guests: []SubjectRecord{}}
		s.users[userID] = st
	}
	return st
}

func (s *sessionService) UserState(userID string) UserSessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.users[userID]
	if !ok {
		return UserSessionState{Guests: []SubjectRecord{}}
	}
	out := UserSessionState{Guests: make([]SubjectRecord, len(st.Guests))}
	copy(out.Guests, st.Guests)
	if st.Own != nil {
		own := *st.Own
		out.Own = &own
	}
	return out
}

// subjectRecord must be called with s.mu held.
func (s *sessionService) subjectRecord(userID, subjectID string) *SubjectRecord {
	st, ok := s.users[userID]
	if !ok {
		return nil
	}
	if st.Own != nil && st.Own.SubjectID == subjectID {
		return st.Own
	}
	for i := range st.Guests {
		if st.Guests[i].SubjectID == subjectID {
			return &st.Guests[i]
		}
	}
	return nil
}

func (s *sessionService) ownsSubject(userID, subjectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subjectRecord(userID, subjectID) != nil
}

// RetrySubjectPhoto uploads a new photo for a subject this user created
// earlier, typically after the upload during submission failed.
func (s *sessionService) RetrySubjectPhoto(ctx context.Context, userID, subjectID string, r io.Reader, mimeType string) (models.PhotoUpload, error) {
	if !s.ownsSubject(userID, subjectID) {
		return models.PhotoUpload{}, utils.ErrSubjectNotFound
	}
	ref, err := s.stagePhoto("subject-"+subjectID, r, mimeType)
	if err != nil {
		return models.PhotoUpload{}, err
	}
	defer removeQuietly(ref.URI)

	photo, uploadErr := s.media.Upload(ctx, subjectID, ref)

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.subjectRecord(userID, subjectID); rec != nil {
		if uploadErr != nil {
			rec.PhotoUploadOutcome = models.PhotoUploadFailed
		} else {
			rec.PhotoUploadOutcome = models.PhotoUploadSuccess
			rec.Photo = &photo
		}
	}
	return photo, uploadErr
}

func (s *sessionService) RemoveSubjectPhoto(ctx context.Context, userID, subjectID string) error {
	if !s.ownsSubject(userID, subjectID) {
		return utils.ErrSubjectNotFound
	}
	if err := s.media.RemovePhoto(ctx, subjectID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.subjectRecord(userID, subjectID); rec != nil {
		rec.Photo = nil
		rec.PhotoUploadOutcome = models.PhotoUploadSkipped
	}
	return nil
}

func (s *sessionService) SweepIdle(cutoff time.Time) int {
	s.mu.RLock()
	candidates := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		candidates = append(candidates, sess)
	}
	s.mu.RUnlock()

	swept := 0
	for _, sess := range candidates {
		sess.mu.Lock()
		if sess.submitting || !sess.updatedAt.Before(cutoff) {
			sess.mu.Unlock()
			continue
		}
		img := sess.store.Snapshot().LocalImageRef
		sess.mu.Unlock()

		s.discard(sess, img)
		swept++
	}
	return swept
}

var stagedPhotoExt = map[string]string{
	constants.MimeTypeJPEG: ".jpg",
	constants.MimeTypePNG:  ".png",
	constants.MimeTypeHEIC: ".heic",
	constants.MimeTypeWEBP: ".webp",
}

// stagePhoto writes r to a new file under the staging dir. Unsupported,
// empty or oversized images are rejected and leave nothing behind.
func (s *sessionService) stagePhoto(prefix string, r io.Reader, mimeType string) (models.LocalImageRef, error) {
	mimeType = constants.NormalizeMimeType(strings.ToLower(strings.TrimSpace(mimeType)))
	if !constants.SupportedImageMimeTypes[mimeType] {
		return models.LocalImageRef{}, fmt.Errorf("%w: unsupported type %q", utils.ErrInvalidImage, mimeType)
	}

	if err := os.MkdirAll(s.cfg.StagingDir, 0o700); err != nil {
		return models.LocalImageRef{}, fmt.Errorf("create staging dir: %w", err)
	}
	f, err := os.CreateTemp(s.cfg.StagingDir, prefix+"-*"+stagedPhotoExt[mimeType])
	if err != nil {
		return models.LocalImageRef{}, fmt.Errorf("create staged photo: %w", err)
	}
	path := f.Name()

	n, copyErr := io.Copy(f, io.LimitReader(r, s.cfg.MaxPhotoBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil || closeErr != nil:
		err = fmt.Errorf("stage photo: %w", errors.Join(copyErr, closeErr))
	case n == 0:
		err = fmt.Errorf("%w: empty image", utils.ErrInvalidImage)
	case n > s.cfg.MaxPhotoBytes:
		err = fmt.Errorf("%w: image exceeds %d bytes", utils.ErrInvalidImage, s.cfg.MaxPhotoBytes)
	}
	if err != nil {
		removeQuietly(path)
		return models.LocalImageRef{}, err
	}
	return models.LocalImageRef{URI: path, MimeType: mimeType}, nil
}

// view must be called with sess.mu held.
func (sess *session) view() SessionView {
	d := sess.store.Snapshot()
	return SessionView{
		SessionID:  sess.id,
		Draft:      d,
		Wizard:     sess.flow.View(d),
		Submitting: sess.submitting,
		LastResult: sess.lastResult,
		UpdatedAt:  sess.updatedAt,
	}
}

package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lvalenta/pilltrack/internal/domain/model"
	"github.com/lvalenta/pilltrack/internal/domain/port/driven"
)

const (
	defaultDraftMaxAge   = 7 * 24 * time.Hour
	defaultSweepInterval = 6 * time.Hour
)

// DraftService owns the draft lifecycle: ID generation, upserts with
// non-fatal failure semantics, resume-time payload validation,
// submission to the remote, and age-based eviction. Write debouncing
// (one save per field-blur, not per keystroke) is the form layer's job;
// the service exposes a plain upsert.
type DraftService struct {
	store  driven.DraftStore
	client driven.MedicationClient
	maxAge time.Duration
	every  time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// NewDraftService creates a DraftService. maxAge and sweepInterval fall
// back to 7 days and 6 hours when zero.
func NewDraftService(
	store driven.DraftStore,
	client driven.MedicationClient,
	maxAge, sweepInterval time.Duration,
	logger *slog.Logger,
) *DraftService {
	if maxAge <= 0 {
		maxAge = defaultDraftMaxAge
	}
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &DraftService{
		store:  store,
		client: client,
		maxAge: maxAge,
		every:  sweepInterval,
		logger: logger,
		now:    time.Now,
	}
}

// Init runs the startup sweep, evicting drafts untouched for longer
// than the configured max age. Also invoked on explicit user-triggered
// cleanup.
func (s *DraftService) Init(ctx context.Context) error {
	evicted, err := s.store.Sweep(ctx, s.maxAge)
	if err != nil {
		return fmt.Errorf("draft sweep: %w", err)
	}
	if evicted > 0 {
		s.logger.Info("evicted expired drafts", "count", evicted, "max_age", s.maxAge)
	}
	return nil
}

// Start runs the periodic sweep loop. It blocks until the context is
// canceled.
func (s *DraftService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("draft sweep loop stopped")
			return
		case <-ticker.C:
			if err := s.Init(ctx); err != nil {
				s.logger.Error("draft sweep failed", "error", err)
			}
		}
	}
}

// Create builds a new draft with a unique kind-prefixed ID and persists
// it. The draft is returned even when persistence fails so the
// in-progress form keeps working.
func (s *DraftService) Create(ctx context.Context, kind model.DraftKind, data map[string]any, imagePaths []string) (model.Draft, error) {
	now := s.now()
	draft := model.Draft{
		ID:           model.NewDraftID(kind, now),
		Data:         data,
		ImagePaths:   imagePaths,
		LastModified: now,
	}
	return draft, s.Save(ctx, draft)
}

// Save upserts the draft. A storage failure is logged and returned as a
// non-fatal warning: losing a draft must never block the user's primary
// action.
func (s *DraftService) Save(ctx context.Context, draft model.Draft) error {
	if err := s.store.Save(ctx, draft); err != nil {
		s.logger.Warn("draft save failed, continuing without persistence",
			"draft", draft.ID,
			"error", err,
		)
		return fmt.Errorf("save draft %s: %w", draft.ID, err)
	}
	return nil
}

// Get returns the stored draft, nil when absent.
func (s *DraftService) Get(ctx context.Context, id string) (*model.Draft, error) {
	return s.store.Get(ctx, id)
}

// ListIDs returns all draft IDs, most recently modified first.
func (s *DraftService) ListIDs(ctx context.Context) ([]string, error) {
	return s.store.ListIDs(ctx)
}

// Remove permanently deletes a draft and its attached files.
func (s *DraftService) Remove(ctx context.Context, id string) error {
	return s.store.Remove(ctx, id)
}

// Resume loads a draft and validates its payload against the schema its
// kind prefix selects. This is the boundary where opaque stored data
// becomes typed form state.
func (s *DraftService) Resume(ctx context.Context, id string) (*model.Draft, any, error) {
	draft, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if draft == nil {
		return nil, nil, fmt.Errorf("resume %s: %w", id, model.ErrDraftNotFound)
	}

	payload, err := draft.DecodePayload()
	if err != nil {
		return nil, nil, err
	}
	return draft, payload, nil
}

// Submit sends a resumed draft to the remote as a new prescription and
// deletes the draft on success. Submission errors propagate verbatim;
// a failed post-submit cleanup is logged, not surfaced.
func (s *DraftService) Submit(ctx context.Context, ownerID, id string) error {
	draft, payload, err := s.Resume(ctx, id)
	if err != nil {
		return err
	}

	sub, err := submissionFromPayload(payload, draft.ImagePaths)
	if err != nil {
		return fmt.Errorf("submit draft %s: %w", id, err)
	}

	if err := s.client.SubmitPrescription(ctx, ownerID, sub); err != nil {
		return fmt.Errorf("submit draft %s: %w", id, err)
	}

	if err := s.store.Remove(ctx, id); err != nil {
		s.logger.Warn("submitted draft cleanup failed", "draft", id, "error", err)
	}
	return nil
}

func submissionFromPayload(payload any, imagePaths []string) (driven.PrescriptionSubmission, error) {
	switch p := payload.(type) {
	case model.OCRDraftPayload:
		return driven.PrescriptionSubmission{
			Medication:   p.Medication,
			Dosage:       p.Dosage,
			Instructions: p.Notes,
			ImagePaths:   imagePaths,
		}, nil
	case model.NFCDraftPayload:
		return driven.PrescriptionSubmission{
			Medication: p.MedicationCode,
			ImagePaths: imagePaths,
		}, nil
	default:
		return driven.PrescriptionSubmission{}, fmt.Errorf("unsupported payload type %T", payload)
	}
}

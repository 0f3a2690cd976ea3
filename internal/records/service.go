// Package records implements the record access control core: every record
// operation is gated here on ownership or share-token possession before the
// repository or the blob store is touched.
package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"medilog-server/internal/errs"
	"medilog-server/internal/models"
	"medilog-server/internal/storage"
)

// tokenIssueAttempts bounds regeneration when a fresh share token collides
// with the unique index. With 128-bit tokens a collision means something is
// badly wrong, so a handful of retries is plenty.
const tokenIssueAttempts = 3

// NewRecord carries the uploader-supplied metadata for record creation.
type NewRecord struct {
	Title       string
	Description string
	Category    string
	RecordDate  time.Time
	FileName    string
	FileType    string
}

// Service mediates every record operation through ownership and token checks.
type Service interface {
	// List returns all records owned by callerID, newest first.
	List(ctx context.Context, callerID string) ([]models.Record, error)
	// Create persists a record owned by callerID referencing an already
	// stored blob. It never touches the blob store itself; on failure the
	// caller must roll the blob back.
	Create(ctx context.Context, callerID string, in NewRecord, blob storage.StoredObject) (*models.Record, error)
	// Get returns the record when callerID owns it.
	Get(ctx context.Context, callerID, recordID string) (*models.Record, error)
	// Delete releases the blob, then removes the record. The record survives
	// a failed blob deletion so no row ever references a blob it cannot reach.
	Delete(ctx context.Context, callerID, recordID string) error
	// ResolveShareToken returns the record the token grants access to.
	// Possession of the token is the authorization; there is no owner check.
	ResolveShareToken(ctx context.Context, token string) (*models.Record, error)
	// IssueShareToken generates a fresh token for the record, replacing any
	// previous one, and returns it.
	IssueShareToken(ctx context.Context, callerID, recordID string) (string, error)
	// RevokeShareToken clears the record's token. The old token stops resolving.
	RevokeShareToken(ctx context.Context, callerID, recordID string) error
	// FileLocation authorizes via the owner path and returns the blob URL.
	FileLocation(ctx context.Context, callerID, recordID string, download bool) (string, error)
	// SharedFileLocation authorizes via the token path and returns the blob URL.
	SharedFileLocation(ctx context.Context, token string) (string, error)
}

type service struct {
	repo        Repository
	store       storage.Store
	blobTimeout time.Duration
	log         *zap.Logger
}

// NewService wires the access control core with its collaborators.
func NewService(repo Repository, store storage.Store, blobTimeout time.Duration, log *zap.Logger) Service {
	if blobTimeout <= 0 {
		blobTimeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &service{repo: repo, store: store, blobTimeout: blobTimeout, log: log}
}

func (s *service) List(ctx context.Context, callerID string) ([]models.Record, error) {
	recs, err := s.repo.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	if recs == nil {
		recs = []models.Record{}
	}
	return recs, nil
}

func (s *service) Create(ctx context.Context, callerID string, in NewRecord, blob storage.StoredObject) (*models.Record, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", errs.ErrValidation)
	}
	if in.Category == "" {
		return nil, fmt.Errorf("%w: category is required", errs.ErrValidation)
	}
	if !models.ValidCategory(in.Category) {
		return nil, fmt.Errorf("%w: unknown category %q", errs.ErrValidation, in.Category)
	}
	if in.RecordDate.IsZero() {
		return nil, fmt.Errorf("%w: date is required", errs.ErrValidation)
	}

	rec := &models.Record{
		UserID:      callerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		RecordDate:  in.RecordDate,
		FileURL:     blob.URL,
		FileKey:     blob.Key,
		FileName:    in.FileName,
		FileType:    in.FileType,
		// A record starts unshared; issuing a token is a separate step.
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create record: %w", err)
	}

	s.log.Info("record created",
		zap.String("record_id", rec.ID),
		zap.String("owner_id", callerID),
		zap.String("category", rec.Category))
	return rec, nil
}

func (s *service) Get(ctx context.Context, callerID, recordID string) (*models.Record, error) {
	return s.authorize(ctx, callerID, recordID)
}

func (s *service) Delete(ctx context.Context, callerID, recordID string) error {
	rec, err := s.authorize(ctx, callerID, recordID)
	if err != nil {
		return err
	}

	// Blob first: if this fails the record stays, so the row never dangles.
	if rec.FileKey != "" {
		blobCtx, cancel := context.WithTimeout(ctx, s.blobTimeout)
		err := s.store.Delete(blobCtx, rec.FileKey)
		cancel()
		if err != nil {
			s.log.Warn("blob deletion failed, keeping record",
				zap.String("record_id", rec.ID), zap.Error(err))
			return fmt.Errorf("%w: delete blob: %v", errs.ErrDependency, err)
		}
	}

	if err := s.repo.Delete(ctx, recordID); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	s.log.Info("record deleted", zap.String("record_id", rec.ID), zap.String("owner_id", callerID))
	return nil
}

func (s *service) ResolveShareToken(ctx context.Context, token string) (*models.Record, error) {
	if token == "" {
		return nil, errs.ErrNotFound
	}
	rec, err := s.repo.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("resolve share token: %w", err)
	}
	// The index lookup found a candidate; re-check in constant time before
	// serving it.
	if rec.ShareToken == nil || !tokenMatches(*rec.ShareToken, token) {
		return nil, errs.ErrNotFound
	}
	return rec, nil
}

func (s *service) IssueShareToken(ctx context.Context, callerID, recordID string) (string, error) {
	rec, err := s.authorize(ctx, callerID, recordID)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < tokenIssueAttempts; attempt++ {
		token, err := newShareToken()
		if err != nil {
			return "", err
		}
		err = s.repo.UpdateShareToken(ctx, rec.ID, &token)
		if err == nil {
			s.log.Info("share token issued", zap.String("record_id", rec.ID))
			return token, nil
		}
		if !errors.Is(err, errs.ErrConflict) {
			return "", fmt.Errorf("issue share token: %w", err)
		}
		// Unique index collision. Regenerate rather than ever letting one
		// token resolve to two records.
		s.log.Warn("share token collision, regenerating", zap.String("record_id", rec.ID))
	}
	return "", fmt.Errorf("%w: could not issue a unique share token", errs.ErrDependency)
}

func (s *service) RevokeShareToken(ctx context.Context, callerID, recordID string) error {
	rec, err := s.authorize(ctx, callerID, recordID)
	if err != nil {
		return err
	}
	if err := s.repo.UpdateShareToken(ctx, rec.ID, nil); err != nil {
		return fmt.Errorf("revoke share token: %w", err)
	}
	s.log.Info("share token revoked", zap.String("record_id", rec.ID))
	return nil
}

func (s *service) FileLocation(ctx context.Context, callerID, recordID string, download bool) (string, error) {
	rec, err := s.authorize(ctx, callerID, recordID)
	if err != nil {
		return "", err
	}
	return s.blobURL(ctx, rec, download)
}

func (s *service) SharedFileLocation(ctx context.Context, token string) (string, error) {
	rec, err := s.ResolveShareToken(ctx, token)
	if err != nil {
		return "", err
	}
	return s.blobURL(ctx, rec, false)
}

// authorize fetches the record and enforces ownership. Missing records and
// foreign records return distinct sentinels so internal logging can tell
// them apart; the API surface collapses both to "not found".
func (s *service) authorize(ctx context.Context, callerID, recordID string) (*models.Record, error) {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("fetch record: %w", err)
	}
	if rec.UserID != callerID {
		s.log.Warn("record access denied",
			zap.String("record_id", recordID), zap.String("caller_id", callerID))
		return nil, errs.ErrNotAuthorized
	}
	return rec, nil
}

func (s *service) blobURL(ctx context.Context, rec *models.Record, download bool) (string, error) {
	urlCtx, cancel := context.WithTimeout(ctx, s.blobTimeout)
	defer cancel()
	u, err := s.store.URL(urlCtx, rec.FileKey, download)
	if err != nil {
		return "", fmt.Errorf("%w: blob url: %v", errs.ErrDependency, err)
	}
	return u, nil
}

package policy

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/boxkite-mcp/boxkite/internal/dropbox"
	"github.com/boxkite-mcp/boxkite/internal/logging"
)

// Status and operation values returned by SafeDelete.
const (
	StatusSuccess              = "success"
	StatusConfirmationRequired = "confirmation_required"

	OpSoftDelete      = "soft_delete"
	OpPermanentDelete = "permanent_delete"
)

// LegacyUserID is the synthetic user the deprecated single-argument
// delete is attributed to.
const LegacyUserID = "legacy_user"

// Provider is the slice of the storage API the engine needs.
type Provider interface {
	GetMetadata(ctx context.Context, path string) (*dropbox.Metadata, error)
	Move(ctx context.Context, fromPath, toPath string) (*dropbox.Metadata, error)
	CreateFolder(ctx context.Context, path string) (*dropbox.Metadata, error)
	PermanentlyDelete(ctx context.Context, path string) error
}

// Auditor receives delete lifecycle events.
type Auditor interface {
	DeleteRequested(ctx context.Context, userID, path string, meta *dropbox.Metadata)
	DeleteExecuted(ctx context.Context, version *VersionMetadata)
	DeleteFailed(ctx context.Context, userID, path string, err error)
}

type nopAuditor struct{}

func (nopAuditor) DeleteRequested(context.Context, string, string, *dropbox.Metadata) {}
func (nopAuditor) DeleteExecuted(context.Context, *VersionMetadata)                   {}
func (nopAuditor) DeleteFailed(context.Context, string, string, error)                {}

// Config holds the policy knobs.
type Config struct {
	RecycleBinPath   string
	MaxDeletesPerDay int
	RetentionDays    int
	AllowedPaths     []string
	BlockedPaths     []string
}

// DeleteRequest describes one delete attempt.
type DeleteRequest struct {
	Path             string
	UserID           string
	SkipConfirmation bool
	RetentionDays    int
	Reason           string
	Permanent        bool
}

// DeleteResult is the outcome of a SafeDelete call.
type DeleteResult struct {
	Status      string            `json:"status"`
	Operation   string            `json:"operation,omitempty"`
	Path        string            `json:"path"`
	Metadata    *dropbox.Metadata `json:"metadata,omitempty"`
	VersionID   string            `json:"versionId,omitempty"`
	RecyclePath string            `json:"recyclePath,omitempty"`
	DeletedAt   *time.Time        `json:"deletedAt,omitempty"`
	ExpiresAt   *time.Time        `json:"expiresAt,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// VersionMetadata describes a soft-deleted item. It is emitted to the
// audit sink and mirrored into the recycle path naming; there is no
// separate version store. An external retention sweeper is expected to
// purge items past ExpiresAt.
type VersionMetadata struct {
	ID           string            `json:"id"`
	OriginalPath string            `json:"originalPath"`
	RecyclePath  string            `json:"recyclePath,omitempty"`
	Operation    string            `json:"operation"`
	DeletedAt    time.Time         `json:"deletedAt"`
	ExpiresAt    time.Time         `json:"expiresAt,omitempty"`
	UserID       string            `json:"userId"`
	Reason       string            `json:"reason,omitempty"`
	Snapshot     *dropbox.Metadata `json:"providerMetadataSnapshot,omitempty"`
}

// Engine enforces the deletion policy against a storage provider.
type Engine struct {
	cfg      Config
	provider Provider
	limiter  *rateLimiter
	audit    Auditor
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditor sets the audit sink.
func WithAuditor(a Auditor) Option {
	return func(e *Engine) { e.audit = a }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.limiter.now = now
	}
}

// WithVersionIDs overrides version identifier generation. Used in tests.
func WithVersionIDs(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates a policy engine. Paths in the allow and block lists
// are normalized once up front.
func NewEngine(cfg Config, provider Provider, opts ...Option) *Engine {
	if cfg.RecycleBinPath == "" {
		cfg.RecycleBinPath = "/.recycle_bin"
	}
	if cfg.MaxDeletesPerDay <= 0 {
		cfg.MaxDeletesPerDay = 100
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	if len(cfg.AllowedPaths) == 0 {
		cfg.AllowedPaths = []string{"/"}
	}
	cfg.RecycleBinPath = NormalizePath(cfg.RecycleBinPath)
	cfg.AllowedPaths = normalizeAll(cfg.AllowedPaths)
	cfg.BlockedPaths = normalizeAll(cfg.BlockedPaths)

	e := &Engine{
		cfg:      cfg,
		provider: provider,
		limiter:  newRateLimiter(cfg.MaxDeletesPerDay, time.Now),
		audit:    nopAuditor{},
		logger:   slog.Default(),
		now:      time.Now,
		newID:    func() string { return xid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SafeDelete runs one delete request through the policy pipeline. Path
// and quota checks happen before any provider call, so rejected
// attempts never consume provider quota. With SkipConfirmation unset
// the provider is only read, never mutated.
func (e *Engine) SafeDelete(ctx context.Context, req DeleteRequest) (*DeleteResult, error) {
	target := NormalizePath(req.Path)

	if err := e.checkPath(target); err != nil {
		e.logger.Warn("delete rejected by path policy",
			logging.Path(target),
			logging.UserHash(req.UserID),
			logging.Err(err),
		)
		return nil, err
	}

	if err := e.limiter.check(req.UserID); err != nil {
		e.logger.Warn("delete rejected by quota",
			logging.Path(target),
			logging.UserHash(req.UserID),
			logging.Err(err),
		)
		return nil, err
	}

	meta, err := e.provider.GetMetadata(ctx, target)
	if err != nil {
		return nil, err
	}

	if !req.SkipConfirmation {
		e.audit.DeleteRequested(ctx, req.UserID, target, meta)
		return &DeleteResult{
			Status:   StatusConfirmationRequired,
			Path:     target,
			Metadata: meta,
			Message:  "confirmation required: re-invoke with skipConfirmation=true to execute the delete",
		}, nil
	}

	if req.Permanent {
		return e.permanentDelete(ctx, req, target, meta)
	}
	return e.softDelete(ctx, req, target, meta)
}

// DeleteItem is the deprecated single-argument delete. It hard-deletes
// without confirmation, attributed to a synthetic legacy user. Kept for
// callers of the old tool surface; do not soften it to a soft delete.
func (e *Engine) DeleteItem(ctx context.Context, path string) (*DeleteResult, error) {
	return e.SafeDelete(ctx, DeleteRequest{
		Path:             path,
		UserID:           LegacyUserID,
		SkipConfirmation: true,
		Permanent:        true,
	})
}

// QuotaUsed returns how many deletes the user has executed in the
// current 24-hour window.
func (e *Engine) QuotaUsed(userID string) int {
	return e.limiter.count(userID)
}

// RecycleBinPath returns the configured recycle folder.
func (e *Engine) RecycleBinPath() string {
	return e.cfg.RecycleBinPath
}

// RetentionDays returns the default retention period.
func (e *Engine) RetentionDays() int {
	return e.cfg.RetentionDays
}

func (e *Engine) permanentDelete(ctx context.Context, req DeleteRequest, target string, meta *dropbox.Metadata) (*DeleteResult, error) {
	if err := e.provider.PermanentlyDelete(ctx, target); err != nil {
		e.deleteFailed(ctx, req.UserID, target, err)
		return nil, err
	}

	deletedAt := e.now()
	e.limiter.record(req.UserID, target)
	e.audit.DeleteExecuted(ctx, &VersionMetadata{
		ID:           e.newID(),
		OriginalPath: target,
		Operation:    OpPermanentDelete,
		DeletedAt:    deletedAt,
		UserID:       req.UserID,
		Reason:       req.Reason,
		Snapshot:     meta,
	})
	e.logger.Info("item permanently deleted",
		logging.Path(target),
		logging.UserHash(req.UserID),
	)

	return &DeleteResult{
		Status:    StatusSuccess,
		Operation: OpPermanentDelete,
		Path:      target,
		Metadata:  meta,
		DeletedAt: &deletedAt,
	}, nil
}

func (e *Engine) softDelete(ctx context.Context, req DeleteRequest, target string, meta *dropbox.Metadata) (*DeleteResult, error) {
	versionID := e.newID()
	basename := meta.Name
	if basename == "" {
		basename = path.Base(target)
	}
	recyclePath := e.cfg.RecycleBinPath + "/" + versionID + "_" + basename

	// The recycle folder is created lazily; a conflict means another
	// delete already created it.
	if _, err := e.provider.CreateFolder(ctx, e.cfg.RecycleBinPath); err != nil && !dropbox.IsConflict(err) {
		err = fmt.Errorf("failed to ensure recycle folder %s: %w", e.cfg.RecycleBinPath, err)
		e.deleteFailed(ctx, req.UserID, target, err)
		return nil, err
	}

	if _, err := e.provider.Move(ctx, target, recyclePath); err != nil {
		err = fmt.Errorf("failed to move %s to recycle folder: %w", target, err)
		e.deleteFailed(ctx, req.UserID, target, err)
		return nil, err
	}

	retentionDays := req.RetentionDays
	if retentionDays <= 0 {
		retentionDays = e.cfg.RetentionDays
	}
	deletedAt := e.now()
	expiresAt := deletedAt.Add(time.Duration(retentionDays) * 24 * time.Hour)

	e.limiter.record(req.UserID, target)
	e.audit.DeleteExecuted(ctx, &VersionMetadata{
		ID:           versionID,
		OriginalPath: target,
		RecyclePath:  recyclePath,
		Operation:    OpSoftDelete,
		DeletedAt:    deletedAt,
		ExpiresAt:    expiresAt,
		UserID:       req.UserID,
		Reason:       req.Reason,
		Snapshot:     meta,
	})
	e.logger.Info("item soft deleted",
		logging.Path(target),
		logging.UserHash(req.UserID),
		slog.String("version_id", versionID),
		slog.Time("expires_at", expiresAt),
	)

	return &DeleteResult{
		Status:      StatusSuccess,
		Operation:   OpSoftDelete,
		Path:        target,
		Metadata:    meta,
		VersionID:   versionID,
		RecyclePath: recyclePath,
		DeletedAt:   &deletedAt,
		ExpiresAt:   &expiresAt,
	}, nil
}

// deleteFailed records a provider failure during delete execution in the
// audit trail before the error is surfaced to the caller.
func (e *Engine) deleteFailed(ctx context.Context, userID, target string, err error) {
	e.audit.DeleteFailed(ctx, userID, target, err)
	e.logger.Error("delete failed",
		logging.Path(target),
		logging.UserHash(userID),
		logging.Err(err),
	)
}

// checkPath applies the block list before the allow list. A path under
// both a blocked and an allowed prefix is rejected.
func (e *Engine) checkPath(target string) error {
	for _, blocked := range e.cfg.BlockedPaths {
		if underPrefix(target, blocked) {
			return &Error{
				Kind:    KindBlockedPath,
				Message: fmt.Sprintf("path %s is blocked by policy (%s)", target, blocked),
			}
		}
	}
	for _, allowed := range e.cfg.AllowedPaths {
		if underPrefix(target, allowed) {
			return nil
		}
	}
	return &Error{
		Kind:    KindPathNotAllowed,
		Message: fmt.Sprintf("path %s is not in the allowed paths", target),
	}
}

// NormalizePath forces a single leading slash and strips any trailing
// slash. Comparison happens lowercased because the provider treats
// paths case-insensitively.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = "/" + strings.Trim(p, "/")
	return path.Clean(p)
}

func normalizeAll(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, NormalizePath(p))
	}
	return out
}

func underPrefix(target, prefix string) bool {
	target = strings.ToLower(target)
	prefix = strings.ToLower(prefix)
	if prefix == "/" {
		return true
	}
	return target == prefix || strings.HasPrefix(target, prefix+"/")
}

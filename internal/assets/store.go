package assets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/geodirectory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/geodirectory-backend/pkg/errors"
	"github.com/angelmondragon/geodirectory-backend/pkg/logger"
	"github.com/angelmondragon/geodirectory-backend/pkg/storage"
)

const (
	stagingRoot   = "staging"
	permanentRoot = "listings"
)

// Store manages listing images across the staging and permanent zones.
// Staging areas are keyed by an opaque id until the listing row exists.
type Store struct {
	backend  storage.Backend
	maxBytes int64
	logg     *logger.Logger
	now      func() time.Time
	suffix   func() string
}

// NewStore wires the asset store onto a blob backend.
func NewStore(backend storage.Backend, maxBytes int64, logg *logger.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("storage backend required")
	}
	if maxBytes <= 0 {
		return nil, errors.New("asset size ceiling must be positive")
	}
	return &Store{
		backend:  backend,
		maxBytes: maxBytes,
		logg:     logg,
		now:      time.Now,
		suffix:   randomSuffix,
	}, nil
}

// MaxBytes exposes the per-file ceiling.
func (s *Store) MaxBytes() int64 {
	return s.maxBytes
}

// BeginStaging allocates a fresh staging id and its namespace.
func (s *Store) BeginStaging(ctx context.Context) (string, error) {
	stagingID := uuid.NewString()
	if err := s.backend.EnsurePrefix(ctx, stagingPrefix(stagingID)); err != nil {
		return "", storageError(err, "create staging area")
	}
	return stagingID, nil
}

// StageFile validates and writes a file under staging/{id}/{role}/.
func (s *Store) StageFile(ctx context.Context, stagingID string, role enums.AssetRole, data []byte, originalName string) (string, error) {
	if err := validateStagingID(stagingID); err != nil {
		return "", err
	}
	if !role.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown asset role %q", role))
	}
	contentType, err := ValidateFile(data, originalName, s.maxBytes)
	if err != nil {
		return "", err
	}
	filename := s.storedName(originalName)
	key := storage.Join(stagingPrefix(stagingID), role.String(), filename)
	if err := s.backend.Put(ctx, key, data, contentType); err != nil {
		return "", storageError(err, "stage file")
	}
	return filename, nil
}

// CommitStaging copies the staging area into the listing's namespace and then
// removes it. Every file is attempted; failures are reported together and
// leave the staging area in place. A blank staging id means the request
// carried no files.
func (s *Store) CommitStaging(ctx context.Context, stagingID string, listingID uuid.UUID) error {
	if strings.TrimSpace(stagingID) == "" {
		return nil
	}
	if err := validateStagingID(stagingID); err != nil {
		return err
	}
	prefix := storage.AsPrefix(stagingPrefix(stagingID))
	objects, err := s.backend.List(ctx, prefix)
	if err != nil {
		return storageError(err, "list staging area")
	}
	var errs error
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if err := s.backend.Copy(ctx, obj.Key, storage.Join(listingPrefix(listingID), rel)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("copy %s: %w", rel, err))
		}
	}
	if errs != nil {
		// the staging area stays for the reaper
		return storageError(errs, "commit staged files")
	}
	if err := s.backend.DeletePrefix(ctx, prefix); err != nil && s.logg != nil {
		logCtx := s.logg.WithStagingID(s.logg.WithListingID(ctx, listingID.String()), stagingID)
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "staging area left behind after commit")
	}
	return nil
}

// DiscardStaging removes a staging area. Unknown ids are a no-op.
func (s *Store) DiscardStaging(ctx context.Context, stagingID string) error {
	if strings.TrimSpace(stagingID) == "" {
		return nil
	}
	if err := validateStagingID(stagingID); err != nil {
		return err
	}
	if err := s.backend.DeletePrefix(ctx, stagingPrefix(stagingID)); err != nil {
		return storageError(err, "discard staging area")
	}
	return nil
}

// PutAsset writes a validated file straight into the permanent namespace.
func (s *Store) PutAsset(ctx context.Context, listingID uuid.UUID, role enums.AssetRole, data []byte, originalName string) (string, error) {
	if !role.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown asset role %q", role))
	}
	contentType, err := ValidateFile(data, originalName, s.maxBytes)
	if err != nil {
		return "", err
	}
	filename := s.storedName(originalName)
	if err := s.backend.Put(ctx, assetKey(listingID, role, filename), data, contentType); err != nil {
		return "", storageError(err, "write asset")
	}
	return filename, nil
}

// ReplaceAsset stores the new file and then removes the old one, so a failed
// write never leaves the slot empty.
func (s *Store) ReplaceAsset(ctx context.Context, listingID uuid.UUID, role enums.AssetRole, oldFilename *string, data []byte, originalName string) (string, error) {
	filename, err := s.PutAsset(ctx, listingID, role, data, originalName)
	if err != nil {
		return "", err
	}
	if oldFilename != nil && *oldFilename != "" && *oldFilename != filename {
		if err := s.DeleteAsset(ctx, listingID, role, *oldFilename); err != nil {
			return filename, err
		}
	}
	return filename, nil
}

// DeleteAsset removes one file. Missing files are not an error.
func (s *Store) DeleteAsset(ctx context.Context, listingID uuid.UUID, role enums.AssetRole, filename string) error {
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown asset role %q", role))
	}
	clean := path.Base(strings.TrimSpace(filename))
	if clean != strings.TrimSpace(filename) || clean == "." || clean == ".." || clean == "/" || clean == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid asset filename").WithDetails(map[string]string{"file": filename})
	}
	if err := s.backend.Delete(ctx, assetKey(listingID, role, clean)); err != nil {
		return storageError(err, "delete asset")
	}
	return nil
}

// DeleteAllAssets removes the listing's namespace.
func (s *Store) DeleteAllAssets(ctx context.Context, listingID uuid.UUID) error {
	if err := s.backend.DeletePrefix(ctx, listingPrefix(listingID)); err != nil {
		return storageError(err, "delete listing assets")
	}
	return nil
}

// ListGalleryFiles returns the gallery filenames in lexical order, which is
// also upload order given the timestamp prefix.
func (s *Store) ListGalleryFiles(ctx context.Context, listingID uuid.UUID) ([]string, error) {
	prefix := storage.AsPrefix(storage.Join(listingPrefix(listingID), enums.AssetRoleGallery.String()))
	objects, err := s.backend.List(ctx, prefix)
	if err != nil {
		return nil, storageError(err, "list gallery")
	}
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" || strings.Contains(rel, "/") {
			continue
		}
		names = append(names, rel)
	}
	sort.Strings(names)
	return names, nil
}

// ReapStaging removes staging areas whose newest file is older than
// olderThan and returns how many were removed.
func (s *Store) ReapStaging(ctx context.Context, olderThan time.Duration) (int, error) {
	root := storage.AsPrefix(stagingRoot)
	objects, err := s.backend.List(ctx, root)
	if err != nil {
		return 0, storageError(err, "list staging areas")
	}
	newest := map[string]time.Time{}
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, root)
		stagingID, _, _ := strings.Cut(rel, "/")
		if stagingID == "" {
			continue
		}
		if obj.LastModified.After(newest[stagingID]) {
			newest[stagingID] = obj.LastModified
		}
	}

	cutoff := s.now().Add(-olderThan)
	reaped := 0
	var errs error
	for stagingID, last := range newest {
		if last.After(cutoff) {
			continue
		}
		if err := s.backend.DeletePrefix(ctx, stagingPrefix(stagingID)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("reap %s: %w", stagingID, err))
			continue
		}
		reaped++
	}
	if errs != nil {
		return reaped, storageError(errs, "reap staging areas")
	}
	return reaped, nil
}

// Ping checks the backing store.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// PublicPath is the stable path a static file server exposes for an asset.
func PublicPath(listingID uuid.UUID, role enums.AssetRole, filename string) string {
	return storage.Join(listingID.String(), role.String(), filename)
}

func (s *Store) storedName(originalName string) string {
	clean := sanitizeFileName(originalName)
	if clean == "" {
		clean = "image"
	}
	return fmt.Sprintf("%d-%s-%s", s.now().UnixMilli(), s.suffix(), clean)
}

func stagingPrefix(stagingID string) string {
	return storage.Join(stagingRoot, stagingID)
}

func listingPrefix(listingID uuid.UUID) string {
	return storage.Join(permanentRoot, listingID.String())
}

func assetKey(listingID uuid.UUID, role enums.AssetRole, filename string) string {
	return storage.Join(listingPrefix(listingID), role.String(), filename)
}

// validateStagingID only accepts the canonical form produced by BeginStaging.
func validateStagingID(stagingID string) error {
	parsed, err := uuid.Parse(stagingID)
	if err != nil || parsed.String() != stagingID {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid staging id")
	}
	return nil
}

func storageError(err error, op string) error {
	return pkgerrors.Wrap(pkgerrors.CodeStorage, err, op)
}

func randomSuffix() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return hex.EncodeToString(buf)
}

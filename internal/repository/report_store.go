package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eligibility-report-api/internal/models"
	appErrors "github.com/noah-isme/eligibility-report-api/pkg/errors"
	"github.com/noah-isme/eligibility-report-api/pkg/retry"
	"github.com/noah-isme/eligibility-report-api/pkg/storage"
)

const (
	reportKeysCachePrefix = "report-keys:"
	readinessProbeName    = "readiness-probe"
)

// MetadataCache caches the report index between enumerations.
type MetadataCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// StoreMetrics receives backend call outcomes.
type StoreMetrics interface {
	ObserveStoreOperation(operation, outcome string, duration time.Duration)
	IncStoreRetry(operation string)
}

// ReportStoreConfig configures a ReportStore.
type ReportStoreConfig struct {
	Container string
	CacheTTL  time.Duration
	Retry     retry.Policy
}

// StoreResult describes a successful upsert.
type StoreResult struct {
	ID      string           `json:"id"`
	Created bool             `json:"created"`
	Key     models.ReportKey `json:"key"`
}

// ReportStore persists one report document per key on a blob backend. Upserts for the same key
// are serialised within the process and rely on the backend's create-if-absent across processes.
type ReportStore struct {
	backend   storage.Backend
	cache     MetadataCache
	metrics   StoreMetrics
	policy    retry.Policy
	container string
	cacheTTL  time.Duration
	logger    *zap.Logger
	locks     *keyedMutex

	// indexMu orders index cache writes against invalidations; indexGen counts invalidations.
	indexMu  sync.Mutex
	indexGen uint64
}

// NewReportStore wires the backend, cache and metrics. cache and metrics may be nil.
func NewReportStore(backend storage.Backend, cache MetadataCache, metrics StoreMetrics, cfg ReportStoreConfig, logger *zap.Logger) *ReportStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Container == "" {
		cfg.Container = "reports"
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	policy := cfg.Retry
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}
	policy.Logger = logger
	if metrics != nil {
		policy.OnRetry = func(name string, _ int, _ error) { metrics.IncStoreRetry(name) }
	}

	return &ReportStore{
		backend:   backend,
		cache:     cache,
		metrics:   metrics,
		policy:    policy,
		container: cfg.Container,
		cacheTTL:  cfg.CacheTTL,
		logger:    logger,
		locks:     newKeyedMutex(),
	}
}

// Container returns the storage container reports are written to.
func (s *ReportStore) Container() string {
	return s.container
}

// Ping issues a single unretried lookup against the backend for readiness probes.
func (s *ReportStore) Ping(ctx context.Context) error {
	_, err := s.backend.List(ctx, storage.BlobQuery{Container: s.container, Name: readinessProbeName})
	return err
}

// Upsert writes the full report under its key, updating the existing blob when there is one.
func (s *ReportStore) Upsert(ctx context.Context, report models.Report) (StoreResult, error) {
	key := report.Key
	if err := key.Validate(); err != nil {
		return StoreResult{}, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid report key")
	}

	payload, err := json.Marshal(report.ToDocument())
	if err != nil {
		return StoreResult{}, appErrors.WrapAs(err, appErrors.ErrInternal, "encode report")
	}

	unlock := s.locks.Lock(key.Token())
	defer unlock()

	result, err := s.write(ctx, key, payload)
	if err != nil {
		s.logger.Error("report upsert failed", zap.String("key", key.Token()), zap.Error(err))
		return StoreResult{}, appErrors.WrapAs(err, appErrors.ErrStore, fmt.Sprintf("save report %s", key.Token()))
	}

	s.invalidateIndex(ctx)
	s.logger.Info("report saved",
		zap.String("key", key.Token()),
		zap.String("id", result.ID),
		zap.Bool("created", result.Created),
	)
	return result, nil
}

func (s *ReportStore) write(ctx context.Context, key models.ReportKey, payload []byte) (StoreResult, error) {
	name := key.FileName()
	for attempt := 0; attempt < 2; attempt++ {
		refs, err := s.resolve(ctx, name)
		if err != nil {
			return StoreResult{}, err
		}

		if len(refs) > 0 {
			if len(refs) > 1 {
				s.logger.Warn("duplicate report blobs, updating most recent",
					zap.String("key", key.Token()),
					zap.Int("count", len(refs)),
				)
			}
			id := refs[0].ID
			err := s.call(ctx, "update", func(ctx context.Context) error {
				return s.backend.Update(ctx, id, payload)
			})
			if errors.Is(err, storage.ErrBlobNotFound) {
				continue
			}
			if err != nil {
				return StoreResult{}, err
			}
			return StoreResult{ID: id, Created: false, Key: key}, nil
		}

		var id string
		err = s.call(ctx, "create", func(ctx context.Context) error {
			var createErr error
			id, createErr = s.backend.Create(ctx, name, s.container, payload)
			return createErr
		})
		if errors.Is(err, storage.ErrBlobExists) {
			s.logger.Debug("report created concurrently, re-resolving", zap.String("key", key.Token()))
			continue
		}
		if err != nil {
			return StoreResult{}, err
		}
		return StoreResult{ID: id, Created: true, Key: key}, nil
	}
	return StoreResult{}, fmt.Errorf("report %s changed concurrently while saving", key.Token())
}

// Fetch loads the report stored under key.
func (s *ReportStore) Fetch(ctx context.Context, key models.ReportKey) (models.Report, error) {
	if err := key.Validate(); err != nil {
		return models.Report{}, appErrors.WrapAs(err, appErrors.ErrValidation, "invalid report key")
	}

	refs, err := s.resolve(ctx, key.FileName())
	if err != nil {
		return models.Report{}, appErrors.WrapAs(err, appErrors.ErrStore, fmt.Sprintf("fetch report %s", key.Token()))
	}
	if len(refs) == 0 {
		s.logger.Debug("report not found", zap.String("key", key.Token()))
		return models.Report{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("report %s not found", key.Token()))
	}

	var content []byte
	err = s.call(ctx, "get", func(ctx context.Context) error {
		var getErr error
		content, getErr = s.backend.GetContent(ctx, refs[0].ID)
		return getErr
	})
	if errors.Is(err, storage.ErrBlobNotFound) {
		return models.Report{}, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("report %s not found", key.Token()))
	}
	if err != nil {
		return models.Report{}, appErrors.WrapAs(err, appErrors.ErrStore, fmt.Sprintf("fetch report %s", key.Token()))
	}

	report, err := decodeReport(content, key)
	if err != nil {
		s.logger.Error("stored report is corrupt", zap.String("key", key.Token()), zap.String("id", refs[0].ID), zap.Error(err))
		return models.Report{}, appErrors.WrapAs(err, appErrors.ErrCorruptReport, fmt.Sprintf("report %s is corrupt", key.Token()))
	}
	return report, nil
}

func decodeReport(content []byte, key models.ReportKey) (models.Report, error) {
	var doc models.ReportDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return models.Report{}, fmt.Errorf("decode document: %w", err)
	}
	if doc.Data == nil {
		return models.Report{}, fmt.Errorf("document has no data")
	}
	if doc.CenterCode != key.CenterCode || doc.BatchName != key.BatchName {
		return models.Report{}, fmt.Errorf("document key %s_%s does not match %s", doc.CenterCode, doc.BatchName, key.Token())
	}
	return doc.ToReport()
}

// ListKeys returns every stored report key sorted by center then batch. Results come from the
// metadata cache when fresh; otherwise the backend is enumerated once and the cache refreshed.
func (s *ReportStore) ListKeys(ctx context.Context) ([]models.ReportKey, error) {
	cacheKey := s.indexCacheKey()
	if s.cache != nil {
		var cached []models.ReportKey
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("report index cache read failed", zap.Error(err))
		}
		if hit && err == nil {
			if cached == nil {
				cached = []models.ReportKey{}
			}
			return cached, nil
		}
	}

	generation := s.indexGeneration()

	var refs []storage.BlobRef
	err := s.call(ctx, "list", func(ctx context.Context) error {
		var listErr error
		refs, listErr = s.backend.List(ctx, storage.BlobQuery{Container: s.container, Suffix: models.ReportFileExt})
		return listErr
	})
	if err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrStore, "list reports")
	}

	keys := make([]models.ReportKey, 0, len(refs))
	seen := make(map[models.ReportKey]struct{}, len(refs))
	for _, ref := range refs {
		key, ok := models.ParseReportFileName(ref.Name)
		if !ok {
			s.logger.Debug("skipping blob with unrecognised name", zap.String("name", ref.Name))
			continue
		}
		if err := key.Validate(); err != nil {
			s.logger.Debug("skipping blob with invalid report key", zap.String("name", ref.Name), zap.Error(err))
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CenterCode != keys[j].CenterCode {
			return keys[i].CenterCode < keys[j].CenterCode
		}
		return keys[i].BatchName < keys[j].BatchName
	})

	s.storeIndex(ctx, cacheKey, keys, generation)
	return keys, nil
}

func (s *ReportStore) indexGeneration() uint64 {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	return s.indexGen
}

// storeIndex caches keys unless a write invalidated the index after enumeration started.
func (s *ReportStore) storeIndex(ctx context.Context, cacheKey string, keys []models.ReportKey, generation uint64) {
	if s.cache == nil {
		return
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	if s.indexGen != generation {
		s.logger.Debug("report index changed during enumeration, not caching")
		return
	}
	if err := s.cache.Set(ctx, cacheKey, keys, s.cacheTTL); err != nil {
		s.logger.Warn("report index cache write failed", zap.Error(err))
	}
}

func (s *ReportStore) resolve(ctx context.Context, name string) ([]storage.BlobRef, error) {
	var refs []storage.BlobRef
	err := s.call(ctx, "resolve", func(ctx context.Context) error {
		var listErr error
		refs, listErr = s.backend.List(ctx, storage.BlobQuery{Container: s.container, Name: name})
		return listErr
	})
	if err != nil {
		return nil, err
	}
	matching := refs[:0:0]
	for _, ref := range refs {
		if ref.Name == name {
			matching = append(matching, ref)
		}
	}
	return matching, nil
}

func (s *ReportStore) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	err := s.policy.Do(ctx, op, fn, storage.IsTransient)
	if s.metrics != nil {
		s.metrics.ObserveStoreOperation(op, outcomeOf(err), time.Since(start))
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, storage.ErrBlobExists):
		return "exists"
	case errors.Is(err, storage.ErrBlobNotFound):
		return "not_found"
	case storage.IsTransient(err):
		return "transient_error"
	default:
		return "error"
	}
}

func (s *ReportStore) indexCacheKey() string {
	return reportKeysCachePrefix + s.container
}

func (s *ReportStore) invalidateIndex(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	s.indexGen++
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), s.indexCacheKey()); err != nil {
		s.logger.Warn("report index cache invalidation failed", zap.Error(err))
	}
}

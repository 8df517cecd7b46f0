// Package store holds the product collection and the settings record on top
// of a single key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sjsage522/producttracker/internal/product"
	"sjsage522/producttracker/logger"
	perrors "sjsage522/producttracker/pkg/errors"
	"sjsage522/producttracker/services/kvstore"
)

const (
	// ProductsKey is the key the product collection is stored under
	ProductsKey = "products"

	// DuplicateWindow is how far back the duplicate check looks
	DuplicateWindow = time.Hour

	// DefaultRecentLimit is the Recent limit used for non-positive values
	DefaultRecentLimit = 5

	// DefaultQuotaBytes is the reported storage quota
	DefaultQuotaBytes = 10485760

	day = 24 * time.Hour
)

// ErrQuotaExceeded is returned when a write would grow the collection past the quota
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Usage describes how much of the backend the tracker occupies
type Usage struct {
	BytesUsed     int64  `json:"bytesUsed"`
	FormattedSize string `json:"formattedSize"`
	ProductCount  int    `json:"productCount"`
	Quota         int64  `json:"quota"`
}

// CleanupResult reports a retention sweep
type CleanupResult struct {
	Removed int `json:"removed"`
}

// ImportResult reports a merge of imported records
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Option configures a ProductStore
type Option func(*ProductStore)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *ProductStore) { s.now = now }
}

// WithQuota sets the storage quota in bytes
func WithQuota(bytes int64) Option {
	return func(s *ProductStore) { s.quota = bytes }
}

// ProductStore owns the product collection. Every mutation runs its
// read-modify-write cycle under one writer lock.
type ProductStore struct {
	kv       kvstore.Store
	settings *SettingsStore
	mu       sync.Mutex
	now      func() time.Time
	quota    int64
	log      *logger.Logger
}

// NewProductStore creates a product store over kv
func NewProductStore(kv kvstore.Store, settings *SettingsStore, opts ...Option) *ProductStore {
	s := &ProductStore{
		kv:       kv,
		settings: settings,
		now:      time.Now,
		quota:    DefaultQuotaBytes,
		log:      logger.ForStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settings returns the settings store the product store consults
func (s *ProductStore) Settings() *SettingsStore {
	return s.settings
}

func (s *ProductStore) load(ctx context.Context) ([]product.Record, error) {
	data, err := s.kv.Get(ctx, ProductsKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return []product.Record{}, nil
	}
	if err != nil {
		return nil, perrors.NewPersistence("store", "failed to read products", err)
	}
	var records []product.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, perrors.NewParsing("store", "stored products are not valid JSON", err)
	}
	if records == nil {
		records = []product.Record{}
	}
	return records, nil
}

func (s *ProductStore) persist(ctx context.Context, records []product.Record, checkQuota bool) error {
	data, err := json.Marshal(records)
	if err != nil {
		return perrors.NewParsing("store", "failed to encode products", err)
	}
	if checkQuota && s.quota > 0 && int64(len(data)) > s.quota {
		return perrors.NewPersistence("store", fmt.Sprintf("collection would grow to %s", FormatBytes(int64(len(data)))), ErrQuotaExceeded)
	}
	if err := s.kv.Set(ctx, ProductsKey, data); err != nil {
		return perrors.NewPersistence("store", "failed to write products", err)
	}
	return nil
}

func (s *ProductStore) debugEnabled(ctx context.Context) bool {
	if s.settings == nil || !logger.IsDebugEnabled() {
		return false
	}
	settings, err := s.settings.Get(ctx)
	return err == nil && settings.DebugMode
}

// Save stores a draft unless a record saved within the last hour has the same
// title or the same non-empty image. Policy gates are applied by the caller.
func (s *ProductStore) Save(ctx context.Context, d product.Draft) (product.SaveResult, error) {
	if !d.Valid() {
		return product.SaveResult{}, perrors.NewValidation("store", "product title is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	debug := s.debugEnabled(ctx)
	records, err := s.load(ctx)
	if err != nil {
		return product.SaveResult{}, err
	}

	now := s.now()
	since := now.Add(-DuplicateWindow).UnixMilli()
	for _, r := range records {
		if r.SavedAt <= since {
			continue
		}
		titleMatch := r.Title != "" && d.Title != "" && r.Title == d.Title
		imageMatch := r.Image != "" && d.Image != "" && r.Image == d.Image
		if debug {
			s.log.Debug().
				Str("existingTitle", r.Title).
				Str("incomingTitle", d.Title).
				Bool("titleMatch", titleMatch).
				Str("existingImage", r.Image).
				Str("incomingImage", d.Image).
				Bool("imageMatch", imageMatch).
				Msg("Comparing with recent product")
		}
		if titleMatch || imageMatch {
			s.log.Debug().Str("matched", r.ID).Str("url", d.URL).Msg("Duplicate detected, skipping save")
			return product.Rejected(product.ReasonDuplicate), nil
		}
	}

	savedAt := now.UnixMilli()
	record := product.NewRecord(d, newID(d.URL, savedAt, records), savedAt)

	updated := make([]product.Record, 0, len(records)+1)
	updated = append(updated, record)
	updated = append(updated, records...)
	if err := s.persist(ctx, updated, true); err != nil {
		return product.SaveResult{}, err
	}

	s.log.Info().Str("id", record.ID).Str("site", record.Site).Str("title", record.Title).Msg("Product saved")
	return product.Accepted(record), nil
}

// newID hashes (url, timestamp) into a name-based UUID, salting on the rare
// collision with an existing id.
func newID(rawURL string, savedAt int64, existing []product.Record) string {
	taken := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		taken[r.ID] = struct{}{}
	}
	name := rawURL + strconv.FormatInt(savedAt, 10)
	for i := 0; ; i++ {
		candidate := name
		if i > 0 {
			candidate = name + "#" + strconv.Itoa(i)
		}
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(candidate)).String()
		if _, ok := taken[id]; !ok {
			return id
		}
	}
}

// Delete removes a record; unknown ids are ignored
func (s *ProductStore) Delete(ctx context.Context, id string) error {
	_, err := s.DeleteMany(ctx, []string{id})
	return err
}

// DeleteMany removes every listed record and reports len(ids)
func (s *ProductStore) DeleteMany(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := records[:0]
	for _, r := range records {
		if _, ok := drop[r.ID]; !ok {
			kept = append(kept, r)
		}
	}
	if err := s.persist(ctx, kept, false); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// ClearAll empties the collection
func (s *ProductStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist(ctx, []product.Record{}, false); err != nil {
		return err
	}
	s.log.Info().Msg("All products cleared")
	return nil
}

// List returns every record, most recently saved first
func (s *ProductStore) List(ctx context.Context) ([]product.Record, error) {
	return s.load(ctx)
}

// Count returns the number of stored records
func (s *ProductStore) Count(ctx context.Context) (int, error) {
	records, err := s.load(ctx)
	return len(records), err
}

// Recent returns the first limit records
func (s *ProductStore) Recent(ctx context.Context, limit int) ([]product.Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Search returns records whose title or description contains query, ignoring case
func (s *ProductStore) Search(ctx context.Context, query string) ([]product.Record, error) {
	return s.Query(ctx, product.Filter{Query: query})
}

// BySite returns records saved from site
func (s *ProductStore) BySite(ctx context.Context, site string) ([]product.Record, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	out := []product.Record{}
	for _, r := range records {
		if r.Site == site {
			out = append(out, r)
		}
	}
	return out, nil
}

// Query filters by text and site, then orders by filter.SortBy (newest first by default)
func (s *ProductStore) Query(ctx context.Context, filter product.Filter) ([]product.Record, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(filter.Query)
	out := []product.Record{}
	for _, r := range records {
		if filter.Site != "" && r.Site != filter.Site {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(r.Title), q) && !strings.Contains(strings.ToLower(r.Description), q) {
			continue
		}
		out = append(out, r)
	}
	if filter.SortBy != "" {
		sortRecords(out, filter.SortBy)
	}
	return out, nil
}

func sortRecords(records []product.Record, order product.SortOrder) {
	var less func(a, b product.Record) bool
	switch order {
	case product.SortDateAsc:
		less = func(a, b product.Record) bool { return a.SavedAt < b.SavedAt }
	case product.SortPriceDesc:
		less = func(a, b product.Record) bool { return product.ParsePrice(a.Price) > product.ParsePrice(b.Price) }
	case product.SortPriceAsc:
		less = func(a, b product.Record) bool { return product.ParsePrice(a.Price) < product.ParsePrice(b.Price) }
	case product.SortNameAsc:
		less = func(a, b product.Record) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	case product.SortNameDesc:
		less = func(a, b product.Record) bool { return strings.ToLower(a.Title) > strings.ToLower(b.Title) }
	default:
		less = func(a, b product.Record) bool { return a.SavedAt > b.SavedAt }
	}
	sort.SliceStable(records, func(i, j int) bool { return less(records[i], records[j]) })
}

// UniqueSites returns distinct non-empty sites in order of first occurrence
func (s *ProductStore) UniqueSites(ctx context.Context) ([]string, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	sites := []string{}
	for _, r := range records {
		if r.Site == "" {
			continue
		}
		if _, ok := seen[r.Site]; ok {
			continue
		}
		seen[r.Site] = struct{}{}
		sites = append(sites, r.Site)
	}
	return sites, nil
}

// Usage measures the serialized collection and settings in the backend
func (s *ProductStore) Usage(ctx context.Context) (Usage, error) {
	var used int64
	for _, key := range []string{ProductsKey, SettingsKey} {
		n, err := s.kv.Size(ctx, key)
		if err != nil {
			return Usage{}, perrors.NewPersistence("store", "failed to measure "+key, err)
		}
		used += n
	}
	records, err := s.load(ctx)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		BytesUsed:     used,
		FormattedSize: FormatBytes(used),
		ProductCount:  len(records),
		Quota:         s.quota,
	}, nil
}

// Cleanup removes records older than the retention period. A retention of 0 keeps everything.
func (s *ProductStore) Cleanup(ctx context.Context) (CleanupResult, error) {
	settings := DefaultSettings()
	if s.settings != nil {
		var err error
		if settings, err = s.settings.Get(ctx); err != nil {
			return CleanupResult{}, err
		}
	}
	if settings.RetentionDays == 0 {
		return CleanupResult{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	cutoff := s.now().Add(-time.Duration(settings.RetentionDays) * day).UnixMilli()
	kept := make([]product.Record, 0, len(records))
	for _, r := range records {
		if r.SavedAt > cutoff {
			kept = append(kept, r)
		}
	}
	removed := len(records) - len(kept)
	if removed == 0 {
		return CleanupResult{}, nil
	}
	if err := s.persist(ctx, kept, false); err != nil {
		return CleanupResult{}, err
	}
	s.log.Info().Int("removed", removed).Int("retentionDays", settings.RetentionDays).Msg("Retention sweep")
	return CleanupResult{Removed: removed}, nil
}

// Import merges records by id: existing ids are kept, new ones added, and the
// collection is re-sorted newest first.
func (s *ProductStore) Import(ctx context.Context, incoming []product.Record) (ImportResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	have := make(map[string]struct{}, len(records))
	for _, r := range records {
		have[r.ID] = struct{}{}
	}

	var result ImportResult
	for _, r := range incoming {
		if _, ok := have[r.ID]; ok {
			result.Skipped++
			continue
		}
		have[r.ID] = struct{}{}
		records = append(records, r)
		result.Imported++
	}
	if result.Imported == 0 {
		return result, nil
	}

	sortRecords(records, product.SortDateDesc)
	if err := s.persist(ctx, records, true); err != nil {
		return ImportResult{}, err
	}
	s.log.Info().Int("imported", result.Imported).Int("skipped", result.Skipped).Msg("Products imported")
	return result, nil
}

// FormatBytes renders a byte count with a 1024 base and at most two decimals
func FormatBytes(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	sizes := []string{"B", "KB", "MB", "GB"}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizes) {
		i = len(sizes) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(value*100)/100, 'f', -1, 64) + " " + sizes[i]
}

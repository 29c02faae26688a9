package services

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

// DefaultStatsCacheTTL bounds how stale the advisory stats may get.
const DefaultStatsCacheTTL = 30 * time.Second

// Stats is the mapping-coverage snapshot for one user.
type Stats struct {
	Totals      StatsTotals      `json:"totals"`
	Mappings    StatsMappings    `json:"mappings"`
	Percentages StatsPercentages `json:"percentages"`
}

// StatsTotals counts all elements owned by the user.
type StatsTotals struct {
	Dots    int `json:"dots"`
	Wheels  int `json:"wheels"`
	Chakras int `json:"chakras"`
}

// StatsMappings splits dots and wheels by whether they carry a parent link.
type StatsMappings struct {
	MappedDots     int `json:"mappedDots"`
	UnmappedDots   int `json:"unmappedDots"`
	MappedWheels   int `json:"mappedWheels"`
	UnmappedWheels int `json:"unmappedWheels"`
}

// StatsPercentages reports mapping coverage as whole percents, 0 when there
// is nothing to map.
type StatsPercentages struct {
	DotsMapped   int `json:"dotsMapped"`
	WheelsMapped int `json:"wheelsMapped"`
}

// StatsService computes mapping-coverage metrics by scanning the hierarchy
// store. Results are advisory and cached per user for a short interval; the
// TTL is read per call so a config watcher can adjust it at runtime.
type StatsService struct {
	store  ports.HierarchyStore
	logger *zap.Logger
	ttl    func() time.Duration

	mu    sync.RWMutex
	cache map[string]statsEntry
}

type statsEntry struct {
	stats     *Stats
	expiresAt time.Time
}

// NewStatsService creates a stats aggregator. A nil ttl falls back to the
// default; a ttl returning a non-positive duration disables caching.
func NewStatsService(store ports.HierarchyStore, logger *zap.Logger, ttl func() time.Duration) *StatsService {
	if ttl == nil {
		ttl = func() time.Duration { return DefaultStatsCacheTTL }
	}
	return &StatsService{
		store:  store,
		logger: logger,
		ttl:    ttl,
		cache:  make(map[string]statsEntry),
	}
}

// Get returns the user's stats, recomputing when the cached snapshot has
// expired.
func (s *StatsService) Get(ctx context.Context, userID string) (*Stats, error) {
	if userID == "" {
		return nil, pkgerrors.NewNotAuthorized("user context required")
	}

	s.mu.RLock()
	entry, ok := s.cache[userID]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expiresAt) {
		return entry.stats, nil
	}

	stats, err := s.compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	if ttl := s.ttl(); ttl > 0 {
		s.mu.Lock()
		s.cache[userID] = statsEntry{stats: stats, expiresAt: time.Now().Add(ttl)}
		s.mu.Unlock()
	}
	return stats, nil
}

// Invalidate drops the cached snapshot for a user.
func (s *StatsService) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// InvalidateAll drops every cached snapshot. Called on a config reload so
// entries cached under the previous TTL do not outlive it.
func (s *StatsService) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]statsEntry)
	s.mu.Unlock()
}

func (s *StatsService) compute(ctx context.Context, userID string) (*Stats, error) {
	dots, err := s.store.ListDots(ctx, userID, ports.DotFilter{})
	if err != nil {
		return nil, err
	}
	wheels, err := s.store.ListWheels(ctx, userID, ports.WheelFilter{})
	if err != nil {
		return nil, err
	}
	chakras, err := s.store.ListChakras(ctx, userID, ports.ChakraFilter{})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Totals: StatsTotals{
			Dots:    len(dots),
			Wheels:  len(wheels),
			Chakras: len(chakras),
		},
	}
	for _, d := range dots {
		if d.Mapped() {
			stats.Mappings.MappedDots++
		}
	}
	for _, w := range wheels {
		if w.Mapped() {
			stats.Mappings.MappedWheels++
		}
	}
	stats.Mappings.UnmappedDots = stats.Totals.Dots - stats.Mappings.MappedDots
	stats.Mappings.UnmappedWheels = stats.Totals.Wheels - stats.Mappings.MappedWheels
	stats.Percentages.DotsMapped = percent(stats.Mappings.MappedDots, stats.Totals.Dots)
	stats.Percentages.WheelsMapped = percent(stats.Mappings.MappedWheels, stats.Totals.Wheels)
	return stats, nil
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

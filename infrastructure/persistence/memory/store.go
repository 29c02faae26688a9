// Package memory provides an in-memory HierarchyStore used by tests and
// local single-process runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/teamthinqers/thinkersweb-backend-sub006/application/ports"
	"github.com/teamthinqers/thinkersweb-backend-sub006/domain/grid"
	pkgerrors "github.com/teamthinqers/thinkersweb-backend-sub006/pkg/errors"
)

// Store is a mutex-guarded in-memory implementation of ports.HierarchyStore.
type Store struct {
	mu      sync.RWMutex
	dots    map[string]*grid.Dot
	wheels  map[string]*grid.Wheel
	chakras map[string]*grid.Chakra
}

// Compile-time interface check
var _ ports.HierarchyStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		dots:    make(map[string]*grid.Dot),
		wheels:  make(map[string]*grid.Wheel),
		chakras: make(map[string]*grid.Chakra),
	}
}

// GetDot returns the user's dot or NOT_FOUND.
func (s *Store) GetDot(ctx context.Context, userID, dotID string) (*grid.Dot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.dots[dotID]
	if !ok || d.UserID != userID {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("dot not found: %s", dotID))
	}
	return copyDot(d), nil
}

// GetWheel returns the user's wheel or NOT_FOUND.
func (s *Store) GetWheel(ctx context.Context, userID, wheelID string) (*grid.Wheel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wheels[wheelID]
	if !ok || w.UserID != userID {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("wheel not found: %s", wheelID))
	}
	return copyWheel(w), nil
}

// GetChakra returns the user's chakra or NOT_FOUND.
func (s *Store) GetChakra(ctx context.Context, userID, chakraID string) (*grid.Chakra, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chakras[chakraID]
	if !ok || c.UserID != userID {
		return nil, pkgerrors.NewNotFound(fmt.Sprintf("chakra not found: %s", chakraID))
	}
	return copyChakra(c), nil
}

// SaveDot upserts a dot.
func (s *Store) SaveDot(ctx context.Context, dot *grid.Dot) error {
	if dot == nil || dot.ID == "" || dot.UserID == "" {
		return pkgerrors.NewValidation("dot requires an id and an owner")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dots[dot.ID] = copyDot(dot)
	return nil
}

// SaveWheel upserts a wheel.
func (s *Store) SaveWheel(ctx context.Context, wheel *grid.Wheel) error {
	if wheel == nil || wheel.ID == "" || wheel.UserID == "" {
		return pkgerrors.NewValidation("wheel requires an id and an owner")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wheels[wheel.ID] = copyWheel(wheel)
	return nil
}

// SaveChakra upserts a chakra.
func (s *Store) SaveChakra(ctx context.Context, chakra *grid.Chakra) error {
	if chakra == nil || chakra.ID == "" || chakra.UserID == "" {
		return pkgerrors.NewValidation("chakra requires an id and an owner")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chakras[chakra.ID] = copyChakra(chakra)
	return nil
}

// ListDots returns the user's dots matching the filter, newest first.
func (s *Store) ListDots(ctx context.Context, userID string, filter ports.DotFilter) ([]*grid.Dot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDotsLocked(userID, filter), nil
}

func (s *Store) listDotsLocked(userID string, filter ports.DotFilter) []*grid.Dot {
	matched := make([]*grid.Dot, 0)
	for _, d := range s.dots {
		if d.UserID != userID {
			continue
		}
		if filter.Unlinked {
			if d.Mapped() {
				continue
			}
		} else {
			if filter.WheelID != nil && (d.WheelID == nil || *d.WheelID != *filter.WheelID) {
				continue
			}
			if filter.ChakraID != nil && (d.ChakraID == nil || *d.ChakraID != *filter.ChakraID) {
				continue
			}
		}
		matched = append(matched, copyDot(d))
	}
	sortDots(matched)
	return pageDots(matched, filter.Limit, filter.Offset)
}

// ListWheels returns the user's wheels matching the filter, newest first.
func (s *Store) ListWheels(ctx context.Context, userID string, filter ports.WheelFilter) ([]*grid.Wheel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*grid.Wheel, 0)
	for _, w := range s.wheels {
		if w.UserID != userID {
			continue
		}
		if filter.Unlinked {
			if w.ChakraID != nil {
				continue
			}
		} else if filter.ChakraID != nil && (w.ChakraID == nil || *w.ChakraID != *filter.ChakraID) {
			continue
		}
		matched = append(matched, copyWheel(w))
	}
	sortWheels(matched)
	matched = pageWheels(matched, filter.Limit, filter.Offset)

	if filter.IncludeDots {
		for _, w := range matched {
			w.Dots = s.listDotsLocked(userID, ports.DotFilter{WheelID: &w.ID})
		}
	}
	return matched, nil
}

// ListChakras returns the user's chakras, optionally hydrated two levels
// deep.
func (s *Store) ListChakras(ctx context.Context, userID string, filter ports.ChakraFilter) ([]*grid.Chakra, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*grid.Chakra, 0)
	for _, c := range s.chakras {
		if c.UserID != userID {
			continue
		}
		matched = append(matched, copyChakra(c))
	}
	sortChakras(matched)
	matched = pageChakras(matched, filter.Limit, filter.Offset)

	for _, c := range matched {
		if filter.IncludeWheels {
			for _, w := range s.wheels {
				if w.UserID != userID || w.ChakraID == nil || *w.ChakraID != c.ID {
					continue
				}
				wc := copyWheel(w)
				if filter.IncludeDots {
					wc.Dots = s.listDotsLocked(userID, ports.DotFilter{WheelID: &wc.ID})
				}
				c.Wheels = append(c.Wheels, wc)
			}
			sortWheels(c.Wheels)
		}
		if filter.IncludeDots {
			c.Dots = s.listDotsLocked(userID, ports.DotFilter{ChakraID: &c.ID})
		}
	}
	return matched, nil
}

// SavePositions applies every placement or none. The single lock section
// gives the batch its all-or-nothing guarantee.
func (s *Store) SavePositions(ctx context.Context, userID string, updates []ports.PositionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching anything.
	for _, u := range updates {
		if err := s.checkOwnedLocked(userID, u); err != nil {
			return err
		}
	}

	now := time.Now()
	for _, u := range updates {
		switch u.ElementType {
		case grid.ElementDot:
			d := s.dots[u.ElementID]
			d.SetPosition(u.Position.X, u.Position.Y)
			d.UpdatedAt = now
		case grid.ElementWheel:
			w := s.wheels[u.ElementID]
			w.SetPosition(u.Position.X, u.Position.Y)
			w.UpdatedAt = now
		case grid.ElementChakra:
			c := s.chakras[u.ElementID]
			c.SetPosition(u.Position.X, u.Position.Y)
			c.UpdatedAt = now
		}
	}
	return nil
}

func (s *Store) checkOwnedLocked(userID string, u ports.PositionUpdate) error {
	switch u.ElementType {
	case grid.ElementDot:
		if d, ok := s.dots[u.ElementID]; ok && d.UserID == userID {
			return nil
		}
		return pkgerrors.NewNotFound(fmt.Sprintf("dot not found: %s", u.ElementID))
	case grid.ElementWheel:
		if w, ok := s.wheels[u.ElementID]; ok && w.UserID == userID {
			return nil
		}
		return pkgerrors.NewNotFound(fmt.Sprintf("wheel not found: %s", u.ElementID))
	case grid.ElementChakra:
		if c, ok := s.chakras[u.ElementID]; ok && c.UserID == userID {
			return nil
		}
		return pkgerrors.NewNotFound(fmt.Sprintf("chakra not found: %s", u.ElementID))
	default:
		return pkgerrors.NewValidation(fmt.Sprintf("unknown element type: %s", u.ElementType))
	}
}

// Copies keep callers from mutating stored state before an explicit Save.

func copyDot(d *grid.Dot) *grid.Dot {
	c := *d
	return &c
}

func copyWheel(w *grid.Wheel) *grid.Wheel {
	c := *w
	c.Dots = nil
	return &c
}

func copyChakra(ch *grid.Chakra) *grid.Chakra {
	c := *ch
	c.Wheels = nil
	c.Dots = nil
	return &c
}

func sortDots(dots []*grid.Dot) {
	sort.Slice(dots, func(i, j int) bool {
		if !dots[i].CreatedAt.Equal(dots[j].CreatedAt) {
			return dots[i].CreatedAt.After(dots[j].CreatedAt)
		}
		return dots[i].ID < dots[j].ID
	})
}

func sortWheels(wheels []*grid.Wheel) {
	sort.Slice(wheels, func(i, j int) bool {
		if !wheels[i].CreatedAt.Equal(wheels[j].CreatedAt) {
			return wheels[i].CreatedAt.After(wheels[j].CreatedAt)
		}
		return wheels[i].ID < wheels[j].ID
	})
}

func sortChakras(chakras []*grid.Chakra) {
	sort.Slice(chakras, func(i, j int) bool {
		if !chakras[i].CreatedAt.Equal(chakras[j].CreatedAt) {
			return chakras[i].CreatedAt.After(chakras[j].CreatedAt)
		}
		return chakras[i].ID < chakras[j].ID
	})
}

func pageDots(items []*grid.Dot, limit, offset int) []*grid.Dot {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []*grid.Dot{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func pageWheels(items []*grid.Wheel, limit, offset int) []*grid.Wheel {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []*grid.Wheel{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func pageChakras(items []*grid.Chakra, limit, offset int) []*grid.Chakra {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []*grid.Chakra{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

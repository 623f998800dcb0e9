package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/content-lineage/pkg/lineage"
)

// Repository implements lineage.Repository using in-memory storage
type Repository struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]*lineage.Item
	versions map[uuid.UUID][]*lineage.Version // item_id -> versions, oldest first
	locks    *lineage.KeyedLocker
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		items:    make(map[uuid.UUID]*lineage.Item),
		versions: make(map[uuid.UUID][]*lineage.Version),
		locks:    lineage.NewKeyedLocker(),
	}
}

// Item operations

func (r *Repository) CreateItem(ctx context.Context, item *lineage.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Create a copy to avoid external modifications
	itemCopy := *item
	r.items[item.ID] = &itemCopy
	return nil
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (*lineage.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, exists := r.items[id]
	if !exists {
		return nil, lineage.ErrItemNotFound
	}
	// Return a copy to prevent external modifications
	itemCopy := *item
	return &itemCopy, nil
}

func (r *Repository) ListItemsByProject(ctx context.Context, projectID uuid.UUID, kind lineage.Kind) ([]*lineage.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*lineage.Item, 0)
	for _, item := range r.items {
		if item.ProjectID == projectID && item.Kind == kind {
			itemCopy := *item
			result = append(result, &itemCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (r *Repository) UpdateItem(ctx context.Context, item *lineage.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ID]; !exists {
		return lineage.ErrItemNotFound
	}
	itemCopy := *item
	r.items[item.ID] = &itemCopy
	return nil
}

// DeleteItem removes the item and, like the SQL cascade, its versions
func (r *Repository) DeleteItem(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[id]; !exists {
		return lineage.ErrItemNotFound
	}
	delete(r.items, id)
	delete(r.versions, id)
	return nil
}

// Version operations

func (r *Repository) AppendVersion(ctx context.Context, params lineage.AppendVersionParams) (*lineage.Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[params.ItemID]; !exists {
		return nil, lineage.ErrItemNotFound
	}

	existing := r.versions[params.ItemID]
	next := 1
	if n := len(existing); n > 0 {
		next = existing[n-1].VersionNumber + 1
	}

	version := &lineage.Version{
		ID:            uuid.New(),
		ItemID:        params.ItemID,
		VersionNumber: next,
		Name:          params.Name,
		MimeType:      params.MimeType,
		SizeBytes:     params.SizeBytes,
		ContentRef:    params.ContentRef,
		AuthorID:      params.AuthorID,
		ChangeNote:    params.ChangeNote,
		CreatedAt:     time.Now().UTC(),
	}
	r.versions[params.ItemID] = append(existing, version)

	versionCopy := *version
	return &versionCopy, nil
}

// ListVersions returns the item's versions newest first
func (r *Repository) ListVersions(ctx context.Context, itemID uuid.UUID) ([]*lineage.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	existing := r.versions[itemID]
	result := make([]*lineage.Version, 0, len(existing))
	for i := len(existing) - 1; i >= 0; i-- {
		versionCopy := *existing[i]
		result = append(result, &versionCopy)
	}
	return result, nil
}

func (r *Repository) GetVersion(ctx context.Context, itemID uuid.UUID, versionNumber int) (*lineage.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, v := range r.versions[itemID] {
		if v.VersionNumber == versionNumber {
			versionCopy := *v
			return &versionCopy, nil
		}
	}
	return nil, lineage.ErrVersionNotFound
}

func (r *Repository) DeleteVersions(ctx context.Context, itemID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.versions, itemID)
	return nil
}

// Transactions

type txKey struct{}

// ExecItemTx holds the item's lock while fn runs and puts the item and its
// versions back as they were when fn fails or ctx is done before it returns.
func (r *Repository) ExecItemTx(ctx context.Context, itemID uuid.UUID, fn lineage.TxFn) error {
	if held, _ := ctx.Value(txKey{}).(uuid.UUID); held == itemID {
		return fn(ctx)
	}

	unlock := r.locks.Lock(itemID)
	defer unlock()

	saved := r.save(itemID)
	err := fn(context.WithValue(ctx, txKey{}, itemID))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		r.rollback(itemID, saved)
		return err
	}
	return nil
}

type savedState struct {
	item     *lineage.Item
	versions []*lineage.Version
}

func (r *Repository) save(itemID uuid.UUID) savedState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s savedState
	if item, ok := r.items[itemID]; ok {
		itemCopy := *item
		s.item = &itemCopy
	}
	s.versions = append([]*lineage.Version(nil), r.versions[itemID]...)
	return s
}

func (r *Repository) rollback(itemID uuid.UUID, s savedState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.item == nil {
		delete(r.items, itemID)
	} else {
		r.items[itemID] = s.item
	}
	if len(s.versions) == 0 {
		delete(r.versions, itemID)
	} else {
		r.versions[itemID] = s.versions
	}
}

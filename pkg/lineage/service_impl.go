package lineage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxRetries is the number of attempts made when a write collides
// with a concurrent write on the same item.
const DefaultMaxRetries = 3

// Change notes recorded on versions.
const (
	DefaultChangeNote = "Updated"
	restoreNoteFormat = "Restored from version %d"
)

// service implements the Service interface
type service struct {
	repository Repository
	backend    ContentBackend
	projects   ProjectLookup
	users      UserLookup
	eventSink  EventSink
	log        zerolog.Logger
	metrics    *Metrics
	policy     SnapshotPolicy
	maxRetries int
	locker     *KeyedLocker
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBackend sets the content backend, which also fixes the service's Kind
func WithBackend(backend ContentBackend) Option {
	return func(s *service) {
		s.backend = backend
	}
}

// WithProjects sets the project lookup. Without one, project ownership is not checked.
func WithProjects(projects ProjectLookup) Option {
	return func(s *service) {
		s.projects = projects
	}
}

// WithUsers sets the user lookup. Without one, versions carry no author.
func WithUsers(users UserLookup) Option {
	return func(s *service) {
		s.users = users
	}
}

// WithEventSink sets the event sink for the service
func WithEventSink(sink EventSink) Option {
	return func(s *service) {
		s.eventSink = sink
	}
}

// WithLogger sets the logger for the service
func WithLogger(log zerolog.Logger) Option {
	return func(s *service) {
		s.log = log
	}
}

// WithMetrics sets the metrics collectors for the service
func WithMetrics(m *Metrics) Option {
	return func(s *service) {
		s.metrics = m
	}
}

// WithSnapshotPolicy sets when Update preserves the current state
func WithSnapshotPolicy(policy SnapshotPolicy) Option {
	return func(s *service) {
		s.policy = policy
	}
}

// WithMaxRetries sets how many attempts a conflicting write gets
func WithMaxRetries(n int) Option {
	return func(s *service) {
		s.maxRetries = n
	}
}

// WithLocker shares a keyed locker between services
func WithLocker(locker *KeyedLocker) Option {
	return func(s *service) {
		s.locker = locker
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		eventSink:  NewNoopEventSink(),
		log:        zerolog.Nop(),
		policy:     SnapshotUnlessEmpty,
		maxRetries: DefaultMaxRetries,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.backend == nil {
		return nil, fmt.Errorf("content backend is required")
	}
	switch s.policy {
	case SnapshotUnlessEmpty, SnapshotAlways:
	default:
		return nil, fmt.Errorf("unknown snapshot policy %q", s.policy)
	}
	if s.maxRetries < 1 {
		s.maxRetries = 1
	}
	if s.locker == nil {
		s.locker = NewKeyedLocker()
	}
	s.log = s.log.With().Str("kind", string(s.backend.Kind())).Str("backend", s.backend.Name()).Logger()

	return s, nil
}

func (s *service) Kind() Kind {
	return s.backend.Kind()
}

// Item operations

func (s *service) Create(ctx context.Context, req CreateRequest) (item *Item, err error) {
	defer func(start time.Time) { s.metrics.observe(s.Kind(), "create", start, err) }(time.Now())

	if err := req.validate(s.Kind()); err != nil {
		return nil, err
	}
	if req.Name == "" {
		req.Name = DefaultDocumentTitle
	}
	if s.projects != nil {
		if _, err := s.projects.FindProject(ctx, req.ProjectID); err != nil {
			return nil, err
		}
	}
	authorID, err := s.resolveAuthor(ctx, req.Author)
	if err != nil {
		return nil, err
	}

	var ref string
	var size int64
	if req.Content != nil {
		ref, size, err = s.backend.Store(ctx, StoreRequest{
			ProjectID: req.ProjectID,
			Name:      req.Name,
			MimeType:  req.MimeType,
			Reader:    req.Content,
		})
		if err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	item = &Item{
		ID:         uuid.New(),
		Kind:       s.Kind(),
		ProjectID:  req.ProjectID,
		Name:       req.Name,
		MimeType:   req.MimeType,
		SizeBytes:  size,
		ContentRef: ref,
		UpdatedBy:  authorID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repository.CreateItem(ctx, item); err != nil {
		s.discard(ctx, ref)
		return nil, &ItemError{ItemID: item.ID, Op: "create", Err: err}
	}

	s.log.Debug().Str("item_id", item.ID.String()).Int64("size_bytes", size).Msg("item created")
	if err := s.eventSink.ItemCreated(ctx, item); err != nil {
		s.log.Warn().Err(err).Str("item_id", item.ID.String()).Msg("event sink failed")
	}

	return item, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, &ItemError{ItemID: id, Op: "get", Err: err}
	}
	return item, nil
}

func (s *service) List(ctx context.Context, projectID uuid.UUID) ([]*Item, error) {
	if s.projects != nil {
		if _, err := s.projects.FindProject(ctx, projectID); err != nil {
			return nil, err
		}
	}
	items, err := s.repository.ListItemsByProject(ctx, projectID, s.Kind())
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Delete removes the item's content, then its versions and the item itself.
// Content that cannot be removed is logged and left behind.
func (s *service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer func(start time.Time) { s.metrics.observe(s.Kind(), "delete", start, err) }(time.Now())

	unlock := s.locker.Lock(id)
	defer unlock()

	item, err := s.getItem(ctx, id)
	if err != nil {
		return &ItemError{ItemID: id, Op: "delete", Err: err}
	}
	versions, err := s.repository.ListVersions(ctx, id)
	if err != nil {
		return &ItemError{ItemID: id, Op: "delete", Err: err}
	}

	removed := make(map[string]bool)
	for _, v := range versions {
		s.removeOnce(ctx, id, v.ContentRef, removed)
	}
	s.removeOnce(ctx, id, item.ContentRef, removed)

	// Another process may have appended since the listing above.
	var late []string
	err = s.execItem(ctx, "delete", id, func(ctx context.Context) error {
		late = late[:0]
		cur, err := s.getItem(ctx, id)
		if err != nil {
			return err
		}
		versions, err := s.repository.ListVersions(ctx, id)
		if err != nil {
			return err
		}
		for _, v := range versions {
			if !removed[v.ContentRef] {
				late = append(late, v.ContentRef)
			}
		}
		if !removed[cur.ContentRef] {
			late = append(late, cur.ContentRef)
		}
		if err := s.repository.DeleteVersions(ctx, id); err != nil {
			return err
		}
		return s.repository.DeleteItem(ctx, id)
	})
	if err != nil {
		return &ItemError{ItemID: id, Op: "delete", Err: err}
	}

	for _, ref := range late {
		s.removeOnce(ctx, id, ref, removed)
	}

	s.log.Debug().Str("item_id", id.String()).Int("versions", len(versions)).Msg("item deleted")
	if err := s.eventSink.ItemDeleted(ctx, id); err != nil {
		s.log.Warn().Err(err).Str("item_id", id.String()).Msg("event sink failed")
	}
	return nil
}

// Lineage operations

func (s *service) Update(ctx context.Context, req UpdateRequest) (updated *Item, err error) {
	defer func(start time.Time) { s.metrics.observe(s.Kind(), "update", start, err) }(time.Now())

	if err := req.validate(s.Kind()); err != nil {
		return nil, err
	}
	authorID, err := s.resolveAuthor(ctx, req.Author)
	if err != nil {
		return nil, err
	}
	note := req.ChangeNote
	if note == "" {
		note = DefaultChangeNote
	}

	item, err := s.getItem(ctx, req.ItemID)
	if err != nil {
		return nil, &ItemError{ItemID: req.ItemID, Op: "update", Err: err}
	}
	// Only picks the stored key's extension; the committed name is decided under the lock.
	name := req.Name
	if name == "" {
		name = item.Name
	}

	ref, size, err := s.backend.Store(ctx, StoreRequest{
		ProjectID: item.ProjectID,
		Name:      name,
		MimeType:  req.MimeType,
		Reader:    req.Content,
	})
	if err != nil {
		return nil, err
	}

	var snapshot *Version
	var superseded string
	err = s.withItemLock(ctx, "update", item.ID, func(ctx context.Context) error {
		snapshot, superseded = nil, ""

		cur, err := s.getItem(ctx, item.ID)
		if err != nil {
			return err
		}
		if s.shouldSnapshot(cur) {
			snapshot, err = s.repository.AppendVersion(ctx, snapshotOf(cur, authorID, note))
			if err != nil {
				return err
			}
		} else {
			superseded = cur.ContentRef
		}

		next := *cur
		if req.Name != "" {
			next.Name = req.Name
		}
		if req.MimeType != "" {
			next.MimeType = req.MimeType
		}
		next.SizeBytes = size
		next.ContentRef = ref
		next.UpdatedBy = authorID
		next.UpdatedAt = time.Now().UTC()
		if err := s.repository.UpdateItem(ctx, &next); err != nil {
			return err
		}
		updated = &next
		return nil
	})
	if err != nil {
		s.discard(ctx, ref)
		return nil, &ItemError{ItemID: item.ID, Op: "update", Err: err}
	}

	if superseded != "" && superseded != ref {
		// Not preserved by any version.
		s.discard(ctx, superseded)
	}

	logEvent := s.log.Debug().Str("item_id", item.ID.String())
	if snapshot != nil {
		s.metrics.versionAppended(s.Kind())
		logEvent = logEvent.Int("snapshot_version", snapshot.VersionNumber)
	}
	logEvent.Msg("item updated")

	if err := s.eventSink.ItemUpdated(ctx, updated, snapshot); err != nil {
		s.log.Warn().Err(err).Str("item_id", item.ID.String()).Msg("event sink failed")
	}
	return updated, nil
}

// Restore sets the item's content back to a historical version after
// preserving the current content as a new version. The item keeps its name.
func (s *service) Restore(ctx context.Context, req RestoreRequest) (restored *Item, err error) {
	defer func(start time.Time) { s.metrics.observe(s.Kind(), "restore", start, err) }(time.Now())

	if err := req.validate(); err != nil {
		return nil, err
	}
	authorID, err := s.resolveAuthor(ctx, req.Author)
	if err != nil {
		return nil, err
	}

	item, err := s.getItem(ctx, req.ItemID)
	if err != nil {
		return nil, &ItemError{ItemID: req.ItemID, Op: "restore", Err: err}
	}
	if req.VersionNumber < 1 {
		return nil, &ItemError{ItemID: item.ID, Op: "restore", Err: ErrVersionNotFound}
	}
	target, err := s.repository.GetVersion(ctx, item.ID, req.VersionNumber)
	if err != nil {
		return nil, &ItemError{ItemID: item.ID, Op: "restore", Err: err}
	}

	ref, size, err := s.copyContent(ctx, item.ProjectID, target)
	if err != nil {
		return nil, err
	}

	var snapshot *Version
	err = s.withItemLock(ctx, "restore", item.ID, func(ctx context.Context) error {
		cur, err := s.getItem(ctx, item.ID)
		if err != nil {
			return err
		}
		snapshot, err = s.repository.AppendVersion(ctx, snapshotOf(cur, authorID, fmt.Sprintf(restoreNoteFormat, target.VersionNumber)))
		if err != nil {
			return err
		}

		next := *cur
		next.MimeType = target.MimeType
		next.SizeBytes = size
		next.ContentRef = ref
		next.UpdatedBy = authorID
		next.UpdatedAt = time.Now().UTC()
		if err := s.repository.UpdateItem(ctx, &next); err != nil {
			return err
		}
		restored = &next
		return nil
	})
	if err != nil {
		s.discard(ctx, ref)
		return nil, &ItemError{ItemID: item.ID, Op: "restore", Err: err}
	}

	s.metrics.versionAppended(s.Kind())
	s.log.Debug().
		Str("item_id", item.ID.String()).
		Int("restored_from", target.VersionNumber).
		Int("snapshot_version", snapshot.VersionNumber).
		Msg("item restored")

	if err := s.eventSink.ItemRestored(ctx, restored, target.VersionNumber, snapshot); err != nil {
		s.log.Warn().Err(err).Str("item_id", item.ID.String()).Msg("event sink failed")
	}
	return restored, nil
}

func (s *service) History(ctx context.Context, id uuid.UUID) ([]*HistoryEntry, error) {
	if _, err := s.getItem(ctx, id); err != nil {
		return nil, &ItemError{ItemID: id, Op: "history", Err: err}
	}
	versions, err := s.repository.ListVersions(ctx, id)
	if err != nil {
		return nil, &ItemError{ItemID: id, Op: "history", Err: err}
	}

	labels := make(map[uuid.UUID]string)
	entries := make([]*HistoryEntry, 0, len(versions))
	for _, v := range versions {
		label, err := s.authorLabel(ctx, v.AuthorID, labels)
		if err != nil {
			return nil, &ItemError{ItemID: id, Op: "history", Err: err}
		}
		entries = append(entries, &HistoryEntry{Version: v, Author: label})
	}
	return entries, nil
}

// Content access

func (s *service) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Item, error) {
	item, err := s.getItem(ctx, id)
	if err != nil {
		return nil, nil, &ItemError{ItemID: id, Op: "open", Err: err}
	}
	rc, err := s.backend.Fetch(ctx, item.ContentRef)
	if err != nil {
		return nil, nil, err
	}
	return rc, item, nil
}

func (s *service) OpenVersion(ctx context.Context, id uuid.UUID, versionNumber int) (io.ReadCloser, *Version, error) {
	if _, err := s.getItem(ctx, id); err != nil {
		return nil, nil, &ItemError{ItemID: id, Op: "open_version", Err: err}
	}
	v, err := s.repository.GetVersion(ctx, id, versionNumber)
	if err != nil {
		return nil, nil, &ItemError{ItemID: id, Op: "open_version", Err: err}
	}
	rc, err := s.backend.Fetch(ctx, v.ContentRef)
	if err != nil {
		return nil, nil, err
	}
	return rc, v, nil
}

// Helper methods

// getItem loads an item and hides items of another kind.
func (s *service) getItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.repository.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Kind != s.Kind() {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (s *service) shouldSnapshot(cur *Item) bool {
	if s.policy == SnapshotAlways {
		return true
	}
	return !cur.IsEmpty()
}

// withItemLock serialises fn with every other mutation of the item in this
// process and runs it in the repository's per-item transaction.
func (s *service) withItemLock(ctx context.Context, op string, id uuid.UUID, fn TxFn) error {
	unlock := s.locker.Lock(id)
	defer unlock()
	return s.execItem(ctx, op, id, fn)
}

// execItem runs fn in a per-item transaction, re-running it from scratch
// when it collides with a concurrent write.
func (s *service) execItem(ctx context.Context, op string, id uuid.UUID, fn TxFn) error {
	for attempt := 1; ; attempt++ {
		err := s.repository.ExecItemTx(ctx, id, fn)
		if err == nil || !errors.Is(err, ErrConflictingVersionWrite) || attempt >= s.maxRetries {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.metrics.conflictRetry(s.Kind(), op)
		s.log.Debug().Str("item_id", id.String()).Str("op", op).Int("attempt", attempt).Msg("retrying conflicting write")
	}
}

// copyContent duplicates a version's content under a fresh ref.
func (s *service) copyContent(ctx context.Context, projectID uuid.UUID, v *Version) (string, int64, error) {
	rc, err := s.backend.Fetch(ctx, v.ContentRef)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()

	return s.backend.Store(ctx, StoreRequest{
		ProjectID: projectID,
		Name:      v.Name,
		MimeType:  v.MimeType,
		Reader:    rc,
	})
}

// discard removes content that no record points to.
func (s *service) discard(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.backend.Remove(context.WithoutCancel(ctx), ref); err != nil {
		s.metrics.orphaned(s.Kind())
		s.log.Warn().Err(err).Str("ref", ref).Msg("failed to remove unreferenced content")
	}
}

// removeOnce removes ref unless it was already attempted; failures are logged.
func (s *service) removeOnce(ctx context.Context, itemID uuid.UUID, ref string, seen map[string]bool) {
	if ref == "" || seen[ref] {
		return
	}
	seen[ref] = true
	if err := s.backend.Remove(ctx, ref); err != nil {
		s.metrics.orphaned(s.Kind())
		s.log.Warn().Err(err).Str("item_id", itemID.String()).Str("ref", ref).Msg("failed to remove item content")
	}
}

// resolveAuthor turns an actor (user ID or email) into a weak reference.
// An actor that does not resolve is recorded as system authorship.
func (s *service) resolveAuthor(ctx context.Context, author string) (*uuid.UUID, error) {
	if author == "" || s.users == nil {
		return nil, nil
	}
	user, err := s.users.FindUser(ctx, author)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve author: %w", err)
	}
	if user == nil {
		s.log.Debug().Str("author", author).Msg("author not found, recording system authorship")
		return nil, nil
	}
	id := user.ID
	return &id, nil
}

func (s *service) authorLabel(ctx context.Context, authorID *uuid.UUID, cache map[uuid.UUID]string) (string, error) {
	if authorID == nil {
		return AuthorSystem, nil
	}
	if label, ok := cache[*authorID]; ok {
		return label, nil
	}

	label := AuthorUnknown
	if s.users != nil {
		user, err := s.users.FindUser(ctx, authorID.String())
		if err != nil {
			return "", fmt.Errorf("failed to resolve author: %w", err)
		}
		if user != nil {
			label = user.Email
		}
	}
	cache[*authorID] = label
	return label, nil
}

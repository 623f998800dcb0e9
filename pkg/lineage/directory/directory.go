// Package directory provides an in-memory lineage.ProjectLookup and
// lineage.UserLookup for deployments without a host database.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/content-lineage/pkg/lineage"
)

// Directory is a concurrency-safe registry of projects and users
type Directory struct {
	mu       sync.RWMutex
	projects map[uuid.UUID]lineage.Project
	users    map[uuid.UUID]lineage.User
}

// New creates an empty directory
func New() *Directory {
	return &Directory{
		projects: make(map[uuid.UUID]lineage.Project),
		users:    make(map[uuid.UUID]lineage.User),
	}
}

func (d *Directory) AddProject(p lineage.Project) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.projects[p.ID] = p
}

func (d *Directory) AddUser(u lineage.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// RemoveUser forgets a user; versions they authored keep the dangling reference
func (d *Directory) RemoveUser(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func (d *Directory) FindProject(ctx context.Context, id uuid.UUID) (*lineage.Project, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	p, ok := d.projects[id]
	if !ok {
		return nil, lineage.ErrProjectNotFound
	}
	return &p, nil
}

// FindUser matches a user ID or, case-insensitively, an email
func (d *Directory) FindUser(ctx context.Context, idOrEmail string) (*lineage.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if id, err := uuid.Parse(idOrEmail); err == nil {
		if u, ok := d.users[id]; ok {
			return &u, nil
		}
		return nil, nil
	}
	for _, u := range d.users {
		if strings.EqualFold(u.Email, idOrEmail) {
			return &u, nil
		}
	}
	return nil, nil
}

// ParseProjects reads "id=name" pairs separated by commas, as used for seeding
func ParseProjects(list string) ([]lineage.Project, error) {
	var projects []lineage.Project
	for _, entry := range splitList(list) {
		id, name, _ := strings.Cut(entry, "=")
		pid, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("invalid project id in %q: %w", entry, err)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = pid.String()
		}
		projects = append(projects, lineage.Project{ID: pid, Name: name})
	}
	return projects, nil
}

// ParseUsers reads "id=email" pairs separated by commas, as used for seeding
func ParseUsers(list string) ([]lineage.User, error) {
	var users []lineage.User
	for _, entry := range splitList(list) {
		id, email, ok := strings.Cut(entry, "=")
		email = strings.TrimSpace(email)
		if !ok || email == "" {
			return nil, fmt.Errorf("invalid user %q: expected id=email", entry)
		}
		uid, err := uuid.Parse(strings.TrimSpace(id))
		if err != nil {
			return nil, fmt.Errorf("invalid user id in %q: %w", entry, err)
		}
		users = append(users, lineage.User{ID: uid, Email: email})
	}
	return users, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

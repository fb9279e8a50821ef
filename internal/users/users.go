// Package users maps the many spellings of a person (git author name,
// email, task Assignee text) onto one registry entry.
package users

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opentask/taskin/internal/task"
)

// User is one registry entry.
type User struct {
	ID      string   `yaml:"id" json:"id"`
	Name    string   `yaml:"name" json:"name"`
	Email   string   `yaml:"email,omitempty" json:"email,omitempty"`
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`

	// Temporary is set on users synthesized for unknown names.
	Temporary bool `yaml:"-" json:"temporary,omitempty"`
}

// Names returns every string that identifies u in commits and documents.
func (u User) Names() []string {
	names := []string{u.Name}
	if u.Email != "" {
		names = append(names, u.Email)
	}
	return append(names, u.Aliases...)
}

// Matches reports whether s names u (case-insensitive).
func (u User) Matches(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	slug := task.Slugify(s)
	if strings.EqualFold(s, u.ID) || slug == u.ID || slug == task.Slugify(u.Name) {
		return true
	}
	for _, n := range u.Names() {
		if strings.EqualFold(s, n) {
			return true
		}
	}
	return false
}

type file struct {
	Users []User `yaml:"users"`
}

// Registry is an in-memory, read-only set of users.
type Registry struct {
	users []User
}

// New creates a registry from users. Entries without an id get the slug
// of their name.
func New(users []User) *Registry {
	r := &Registry{}
	for _, u := range users {
		if u.ID == "" {
			u.ID = task.Slugify(u.Name)
		}
		r.users = append(r.users, u)
	}
	return r
}

// Load reads a YAML registry. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing users file %s: %w", path, err)
	}
	for i, u := range f.Users {
		if strings.TrimSpace(u.Name) == "" {
			return nil, fmt.Errorf("users file %s: entry %d has no name", path, i+1)
		}
	}
	return New(f.Users), nil
}

// All returns every registered user.
func (r *Registry) All() []User {
	return append([]User(nil), r.users...)
}

// Find returns the registered user that s names, if any. Ids win over
// names, names over emails and aliases.
func (r *Registry) Find(s string) (User, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return User{}, false
	}
	for _, u := range r.users {
		if strings.EqualFold(u.ID, s) {
			return u, true
		}
	}
	slug := task.Slugify(s)
	for _, u := range r.users {
		if u.ID == slug || strings.EqualFold(u.Name, s) {
			return u, true
		}
	}
	for _, u := range r.users {
		if u.Matches(s) {
			return u, true
		}
	}
	return User{}, false
}

// Resolve returns the user that s names, or a temporary user whose id is
// the slug of s. The temporary user is not added to the registry.
func (r *Registry) Resolve(s string) User {
	if u, ok := r.Find(s); ok {
		return u
	}
	name := strings.TrimSpace(s)
	return User{ID: task.Slugify(name), Name: name, Temporary: true}
}

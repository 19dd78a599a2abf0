package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/EduardoaMelegari/banco-projetos/internal/utils"
)

// Bootstrap credentials for a fresh install. The first admin login
// should change this password.
const (
	DefaultAdminUser     = "admin"
	DefaultAdminPassword = "admin"

	minPasswordLen = 4
)

// usersFile is the on-disk document shape: accounts keyed by username
// under a "users" wrapper, as the legacy files have it.
type usersFile struct {
	Users map[string]*User `json:"users"`
}

// Store persists user accounts in a users.json file. All mutations
// rewrite the file atomically.
type Store struct {
	path string

	mu    sync.RWMutex
	users map[string]*User
}

// OpenStore loads the user file at path, creating it with a default
// admin account when missing or empty.
func OpenStore(path string) (*Store, error) {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve users file: %w", err)
	}

	s := &Store{path: path, users: make(map[string]*User)}

	if utils.FileExists(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read users file: %w", err)
		}
		var doc usersFile
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("parse users file %s: %w", path, err)
		}
		for name, user := range doc.Users {
			user.Username = name
			if !user.Role.Valid() {
				return nil, fmt.Errorf("user %s has invalid role %q", name, user.Role)
			}
			s.users[name] = user
		}
	}

	if len(s.users) == 0 {
		slog.Warn("no users found, creating default admin account; change the password after first login", "path", path)
		s.users[DefaultAdminUser] = &User{
			Username:     DefaultAdminUser,
			PasswordHash: HashPassword(DefaultAdminPassword),
			DisplayName:  "Administrador",
			Role:         RoleAdmin,
		}
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// HashPassword returns the hex sha256 digest stored in users.json.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Authenticate checks the credentials and returns the matching user.
func (s *Store) Authenticate(username, password string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[username]
	if !ok {
		// hash anyway so a missing user costs the same as a wrong password
		_ = HashPassword(password)
		return nil, ErrInvalidCredentials
	}
	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(HashPassword(password))) != 1 {
		return nil, ErrInvalidCredentials
	}
	copied := *user
	return &copied, nil
}

// AddUser creates an account and persists the store.
func (s *Store) AddUser(username, password, displayName string, role Role) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if len(password) < minPasswordLen {
		return ErrPasswordTooShort
	}
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	if displayName == "" {
		displayName = username
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return fmt.Errorf("add user %s: %w", username, ErrUserExists)
	}
	s.users[username] = &User{
		Username:     username,
		PasswordHash: HashPassword(password),
		DisplayName:  displayName,
		Role:         role,
	}
	return s.save()
}

// ChangePassword replaces a user's password after verifying the current
// one.
func (s *Store) ChangePassword(username, oldPassword, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrPasswordTooShort
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("change password for %s: %w", username, ErrUserNotFound)
	}
	if subtle.ConstantTimeCompare([]byte(user.PasswordHash), []byte(HashPassword(oldPassword))) != 1 {
		return ErrInvalidCredentials
	}
	user.PasswordHash = HashPassword(newPassword)
	return s.save()
}

// RemoveUser deletes an account. The last admin cannot be removed.
func (s *Store) RemoveUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return fmt.Errorf("remove user %s: %w", username, ErrUserNotFound)
	}
	if user.IsAdmin() && s.adminCount() == 1 {
		return fmt.Errorf("cannot remove the last admin account")
	}
	delete(s.users, username)
	return s.save()
}

// List returns all users sorted by username. Password hashes are not
// scrubbed here; callers render User fields selectively.
func (s *Store) List() []*User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]*User, 0, len(s.users))
	for _, user := range s.users {
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users
}

func (s *Store) adminCount() int {
	count := 0
	for _, user := range s.users {
		if user.IsAdmin() {
			count++
		}
	}
	return count
}

// save writes users.json via a temp file and rename. Caller holds the
// write lock.
func (s *Store) save() error {
	if err := utils.EnsureParent(s.path); err != nil {
		return fmt.Errorf("ensure users dir: %w", err)
	}

	data, err := json.MarshalIndent(usersFile{Users: s.users}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".users-*")
	if err != nil {
		return fmt.Errorf("create temp users file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write users file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close users file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod users file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}

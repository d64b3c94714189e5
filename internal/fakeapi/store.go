package fakeapi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrEmailTaken        = errors.New("email already exists")
	ErrReportNotFound    = errors.New("report not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store holds users and reports in memory.
type Store struct {
	mu       sync.RWMutex
	users    map[int64]*User
	reports  map[int64]*Report
	nextUser int64
	nextRep  int64
	now      func() time.Time
	cost     int
}

type StoreOption func(*Store)

// WithHashCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) StoreOption {
	return func(s *Store) { s.cost = cost }
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		users:   make(map[int64]*User),
		reports: make(map[int64]*Report),
		now:     time.Now,
		cost:    bcrypt.DefaultCost,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) UserByEmail(email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *Store) UserByID(id int64) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) CreateUser(email, password string, role Role) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return nil, ErrEmailTaken
		}
	}
	s.nextUser++
	now := localTime(s.now())
	u := &User{
		ID:           s.nextUser,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *Store) ListUsers() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeleteUser removes the user and every report they own.
func (s *Store) DeleteUser(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, id)
	for rid, r := range s.reports {
		if r.OwnerID == id {
			delete(s.reports, rid)
		}
	}
	return nil
}

func (s *Store) CreateReport(ownerID int64, name, typ, reportDate, fileName string, content []byte) *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRep++
	now := localTime(s.now())
	r := &Report{
		ID:         s.nextRep,
		OwnerID:    ownerID,
		Name:       name,
		Type:       typ,
		FilePath:   filepath.Join("uploads", uuid.NewString()+strings.ToLower(filepath.Ext(fileName))),
		Status:     StatusUploaded,
		ReportDate: reportDate,
		CreatedAt:  now,
		UpdatedAt:  now,
		content:    content,
	}
	s.reports[r.ID] = r
	cp := *r
	return &cp
}

// ListReports returns the owner's reports, newest first.
func (s *Store) ListReports(ownerID int64) []Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Report, 0)
	for _, r := range s.reports {
		if r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Store) report(id, ownerID int64) (*Report, error) {
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrReportNotFound
	}
	if r.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return r, nil
}

func (s *Store) GetReport(id, ownerID int64) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, err := s.report(id, ownerID)
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

// TransitionError is returned when the workflow does not allow From -> To.
type TransitionError struct {
	From, To ReportStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Cannot transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// UpdateStatus applies status if the workflow allows it. summary is only
// written when non-nil.
func (s *Store) UpdateStatus(id, ownerID int64, status ReportStatus, summary *string) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.report(id, ownerID)
	if err != nil {
		return nil, err
	}
	if !validTransition(r.Status, status) {
		return nil, &TransitionError{From: r.Status, To: status}
	}
	r.Status = status
	if summary != nil {
		v := *summary
		r.Summary = &v
	}
	r.UpdatedAt = localTime(s.now())
	cp := *r
	return &cp, nil
}

func (s *Store) DeleteReport(id, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.report(id, ownerID); err != nil {
		return err
	}
	delete(s.reports, id)
	return nil
}

type usersFile struct {
	Users []struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     Role   `yaml:"role"`
	} `yaml:"users"`
}

// SeedFromFile creates the users listed in a YAML file, skipping any that
// already exist.
func (s *Store) SeedFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var uf usersFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return err
	}
	for _, u := range uf.Users {
		if u.Email == "" || u.Password == "" {
			continue
		}
		if u.Role == "" {
			u.Role = RoleUser
		}
		if _, err := s.CreateUser(u.Email, u.Password, u.Role); err != nil && !errors.Is(err, ErrEmailTaken) {
			return err
		}
	}
	return nil
}

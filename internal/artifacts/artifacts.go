package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
)

// Store keeps per-job prediction artifacts (pose structures, raw engine
// output) on the local filesystem under a single root directory. Each job
// owns one subdirectory named by its UUID.
type Store struct {
	root string
}

// NewStore creates the artifact root if needed and returns a Store over it.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("artifact root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the artifact root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the directory for a job's artifacts, creating it if needed.
func (s *Store) Dir(jobID uuid.UUID) (string, error) {
	dir := filepath.Join(s.root, jobID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}
	return dir, nil
}

// WriteFile stores one named artifact for a job.
func (s *Store) WriteFile(jobID uuid.UUID, name string, data []byte) error {
	if err := validateName(name); err != nil {
		return err
	}
	dir, err := s.Dir(jobID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing artifact %s: %w", name, err)
	}
	return nil
}

// ReadFile returns the contents of one named artifact.
func (s *Store) ReadFile(jobID uuid.UUID, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.root, jobID.String(), name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading artifact %s: %w", name, err)
	}
	return data, nil
}

// List returns the artifact file names for a job, sorted. A job with no
// artifact directory lists as empty rather than failing.
func (s *Store) List(jobID uuid.UUID) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, jobID.String()))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Remove deletes all artifacts for a job. Removing a job that has no
// artifacts is not an error.
func (s *Store) Remove(jobID uuid.UUID) error {
	if err := os.RemoveAll(filepath.Join(s.root, jobID.String())); err != nil {
		return fmt.Errorf("removing artifacts: %w", err)
	}
	return nil
}

// validateName rejects names that could escape the job directory.
func validateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return ErrInvalidName
	}
	if strings.ContainsAny(name, "/\\") {
		return ErrInvalidName
	}
	if filepath.Clean(name) != name {
		return ErrInvalidName
	}
	return nil
}

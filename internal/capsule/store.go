package capsule

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	metaFile  = "meta.json"
	patchFile = "patch.diff"
	tokenFile = "approve.json"
)

var (
	// ErrNotFound reports a missing capsule artifact.
	ErrNotFound = errors.New("capsule not found")
	// ErrCorrupt reports a capsule artifact that exists but cannot be parsed.
	ErrCorrupt = errors.New("corrupt capsule data")
)

// Store persists capsules under root/<session>/<capsule>/. It maintains no
// index; the two-level path is the only namespacing.
type Store struct {
	root string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{root: strings.TrimSpace(dir)}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory holding one capsule's artifacts.
func (s *Store) Dir(sessionID, capsuleID string) string {
	return filepath.Join(s.root, sessionID, capsuleID)
}

// TokenPath returns where an externally-deposited approval token for the
// capsule would live.
func (s *Store) TokenPath(sessionID, capsuleID string) string {
	return filepath.Join(s.Dir(sessionID, capsuleID), tokenFile)
}

// Save writes the capsule's metadata and raw diff, creating the directory
// if needed. Returns the capsule directory.
func (s *Store) Save(c *Capsule) (string, error) {
	dir := s.Dir(c.SessionID, c.Meta.CapsuleID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create capsule dir %s: %w", dir, err)
	}

	if err := writeJSONAtomic(filepath.Join(dir, metaFile), c.Meta); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, patchFile), []byte(c.Diff), 0o600); err != nil {
		return "", fmt.Errorf("write %s: %w", patchFile, err)
	}
	return dir, nil
}

// Load reads a capsule back from the store. A missing artifact yields
// ErrNotFound; unparseable metadata yields ErrCorrupt.
func (s *Store) Load(sessionID, capsuleID string) (*Capsule, error) {
	dir := s.Dir(sessionID, capsuleID)

	metaData, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("capsule %s/%s: %w", sessionID, capsuleID, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", metaFile, err)
	}

	var meta Meta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("decode %s: %v: %w", metaFile, err, ErrCorrupt)
	}

	diffData, err := os.ReadFile(filepath.Join(dir, patchFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("capsule %s/%s: %w", sessionID, capsuleID, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", patchFile, err)
	}

	return &Capsule{Meta: meta, Diff: string(diffData), SessionID: sessionID}, nil
}

// Token is an externally-authored approval record read from the capsule
// directory. This subsystem never writes one during gating.
type Token struct {
	CapsuleID    string `json:"capsule_id"`
	Approved     bool   `json:"approved"`
	ApprovedBy   string `json:"approved_by,omitempty"`
	DenialReason string `json:"denial_reason,omitempty"`
}

// LoadToken reads an approval token if one has been deposited. The second
// return is false when no token exists; a present but unparseable token is
// ErrCorrupt.
func (s *Store) LoadToken(sessionID, capsuleID string) (*Token, bool, error) {
	data, err := os.ReadFile(s.TokenPath(sessionID, capsuleID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", tokenFile, err)
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, false, fmt.Errorf("decode %s: %v: %w", tokenFile, err, ErrCorrupt)
	}
	return &tok, true, nil
}

// WriteToken deposits an approval token into the capsule directory on
// behalf of an external reviewer (the remote review channel uses this; the
// gate itself only ever reads tokens).
func (s *Store) WriteToken(sessionID, capsuleID string, tok Token) error {
	dir := s.Dir(sessionID, capsuleID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create capsule dir %s: %w", dir, err)
	}
	return writeJSONAtomic(filepath.Join(dir, tokenFile), tok)
}

// writeJSONAtomic writes v as indented JSON via a temp file and rename, so
// readers never observe a partial artifact.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file to %s: %w", path, err)
	}
	return nil
}

package apiclient

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// TokenStore keeps the bearer token and the refresh token between requests
type TokenStore interface {
	Token() string
	SetToken(token string) error
	RemoveToken() error
	RefreshToken() string
	SetRefreshToken(token string) error
	RemoveRefreshToken() error
}

// MemoryTokenStore is a TokenStore that lives as long as the process
type MemoryTokenStore struct {
	mu      sync.RWMutex
	token   string
	refresh string
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *MemoryTokenStore) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *MemoryTokenStore) RemoveToken() error {
	return s.SetToken("")
}

func (s *MemoryTokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *MemoryTokenStore) SetRefreshToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = token
	return nil
}

func (s *MemoryTokenStore) RemoveRefreshToken() error {
	return s.SetRefreshToken("")
}

type credentials struct {
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// FileTokenStore persists both tokens to a JSON file readable only by the
// owner. The file is removed once both tokens are cleared.
type FileTokenStore struct {
	mu    sync.RWMutex
	path  string
	creds credentials
}

var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore loads path if it exists
func NewFileTokenStore(path string) (*FileTokenStore, error) {
	s := &FileTokenStore{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.creds); err != nil {
			return nil, fmt.Errorf("reading credentials %s: %w", path, err)
		}
	}
	return s, nil
}

// Path returns the credentials file location
func (s *FileTokenStore) Path() string {
	return s.path
}

func (s *FileTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.Token
}

func (s *FileTokenStore) SetToken(token string) error {
	return s.update(func(c *credentials) { c.Token = token })
}

func (s *FileTokenStore) RemoveToken() error {
	return s.SetToken("")
}

func (s *FileTokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.creds.RefreshToken
}

func (s *FileTokenStore) SetRefreshToken(token string) error {
	return s.update(func(c *credentials) { c.RefreshToken = token })
}

func (s *FileTokenStore) RemoveRefreshToken() error {
	return s.SetRefreshToken("")
}

func (s *FileTokenStore) update(fn func(*credentials)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.creds
	fn(&next)
	if next == (credentials{}) {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		s.creds = next
		return nil
	}

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, 0o600); err != nil {
		return err
	}
	s.creds = next
	return nil
}

// writeFileAtomic replaces path with data via a temp file in the same directory
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// TokenClaims are the unverified claims of a bearer token
type TokenClaims struct {
	Subject   string
	Username  string
	Role      string
	ExpiresAt int64 // unix seconds, 0 when absent
}

// Expiry returns the expiry as a time, zero when absent
func (c *TokenClaims) Expiry() time.Time {
	if c.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(c.ExpiresAt, 0)
}

// ParseToken decodes the payload segment of a three-part token. The
// signature is not verified; the result is only an expiry hint.
func ParseToken(token string) (*TokenClaims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, false
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, false
	}
	if !gjson.ValidBytes(payload) {
		return nil, false
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return nil, false
	}

	claims := &TokenClaims{
		Subject:  doc.Get("sub").String(),
		Username: doc.Get("username").String(),
		Role:     doc.Get("role").String(),
	}
	if exp := doc.Get("exp"); exp.Type == gjson.Number {
		claims.ExpiresAt = exp.Int()
	}
	return claims, true
}

var now = time.Now

// IsTokenExpired reports whether token is unparseable, carries no expiry,
// or is at or past its expiry
func IsTokenExpired(token string) bool {
	claims, ok := ParseToken(token)
	if !ok || claims.ExpiresAt == 0 {
		return true
	}
	return now().UnixMilli() >= claims.ExpiresAt*1000
}

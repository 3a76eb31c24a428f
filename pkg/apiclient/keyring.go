package apiclient

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// keyringCheckTimeout bounds the availability check; some desktop keyrings
// block on an unlock prompt
var keyringCheckTimeout = 5 * time.Second

// KeyringTokenStore keeps both tokens in the operating system keyring under
// service, with entries named "<account>:access_token" and
// "<account>:refresh_token". Values are cached after load.
type KeyringTokenStore struct {
	service string
	account string

	mu      sync.RWMutex
	token   string
	refresh string
}

var _ TokenStore = (*KeyringTokenStore)(nil)

// NewKeyringTokenStore loads the stored tokens of account. Missing entries are
// empty tokens.
func NewKeyringTokenStore(service, account string) (*KeyringTokenStore, error) {
	s := &KeyringTokenStore{service: service, account: account}
	var err error
	if s.token, err = s.get(accessTokenKey); err != nil {
		return nil, err
	}
	if s.refresh, err = s.get(refreshTokenKey); err != nil {
		return nil, err
	}
	return s, nil
}

// KeyringAvailable reports whether the system keyring accepts writes
func KeyringAvailable(service string) bool {
	done := make(chan error, 1)
	go func() {
		err := keyring.Set(service, "availability-check", "ok")
		if err == nil {
			_ = keyring.Delete(service, "availability-check")
		}
		done <- err
	}()

	select {
	case err := <-done:
		return err == nil
	case <-time.After(keyringCheckTimeout):
		return false
	}
}

// OpenTokenStore returns a keyring-backed store when the system keyring is
// usable and a file store at fallbackPath otherwise
func OpenTokenStore(service, account, fallbackPath string) (TokenStore, error) {
	if KeyringAvailable(service) {
		return NewKeyringTokenStore(service, account)
	}
	return NewFileTokenStore(fallbackPath)
}

func (s *KeyringTokenStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *KeyringTokenStore) SetToken(token string) error {
	return s.set(accessTokenKey, token, &s.token)
}

func (s *KeyringTokenStore) RemoveToken() error {
	return s.set(accessTokenKey, "", &s.token)
}

func (s *KeyringTokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

func (s *KeyringTokenStore) SetRefreshToken(token string) error {
	return s.set(refreshTokenKey, token, &s.refresh)
}

func (s *KeyringTokenStore) RemoveRefreshToken() error {
	return s.set(refreshTokenKey, "", &s.refresh)
}

func (s *KeyringTokenStore) key(name string) string {
	return s.account + ":" + name
}

func (s *KeyringTokenStore) get(name string) (string, error) {
	v, err := keyring.Get(s.service, s.key(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s from keyring: %w", name, err)
	}
	return v, nil
}

// set writes value, deleting the entry when it is empty
func (s *KeyringTokenStore) set(name, value string, field *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if value == "" {
		if err = keyring.Delete(s.service, s.key(name)); errors.Is(err, keyring.ErrNotFound) {
			err = nil
		}
	} else {
		err = keyring.Set(s.service, s.key(name), value)
	}
	if err != nil {
		return fmt.Errorf("writing %s to keyring: %w", name, err)
	}
	*field = value
	return nil
}

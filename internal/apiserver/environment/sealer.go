package environment

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
)

// Sealer encrypts stored connection passwords with age
type Sealer struct {
	recipient age.Recipient
	identity  age.Identity
	ephemeral bool
}

// NewSealer builds a sealer from secret. An AGE-SECRET-KEY-1... value is used as an
// X25519 identity; any other non-empty value is a scrypt passphrase with the given
// work factor (0 keeps the age default). An empty secret yields a random identity
// that does not survive a restart.
func NewSealer(secret string, workFactor int) (*Sealer, error) {
	switch {
	case secret == "":
		id, err := age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating age identity: %w", err)
		}
		return &Sealer{recipient: id.Recipient(), identity: id, ephemeral: true}, nil

	case strings.HasPrefix(secret, "AGE-SECRET-KEY-1"):
		id, err := age.ParseX25519Identity(secret)
		if err != nil {
			return nil, fmt.Errorf("parsing age identity: %w", err)
		}
		return &Sealer{recipient: id.Recipient(), identity: id}, nil

	default:
		r, err := age.NewScryptRecipient(secret)
		if err != nil {
			return nil, err
		}
		id, err := age.NewScryptIdentity(secret)
		if err != nil {
			return nil, err
		}
		if workFactor > 0 {
			r.SetWorkFactor(workFactor)
			id.SetMaxWorkFactor(workFactor)
		}
		return &Sealer{recipient: r, identity: id}, nil
	}
}

// Ephemeral reports whether sealed values are lost on restart
func (s *Sealer) Ephemeral() bool {
	return s.ephemeral
}

// Seal returns base64 age ciphertext of plaintext
func (s *Sealer) Seal(plaintext string) (string, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.recipient)
	if err != nil {
		return "", fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalizing age encryption: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Open reverses Seal. The empty string opens to the empty string.
func (s *Sealer) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("decoding base64 ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), s.identity)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return string(out), nil
}

package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// EnvKeyName is the environment variable holding the base64-encoded 32-byte
// AES key used to seal credential bundles.
const EnvKeyName = "CONNECTOR_ENC_KEY"

// Credentials is the decrypted bundle for one connection. ConnString, when
// set, takes precedence for sources that accept a precomposed URI (mongodb).
// Decrypted bundles are never persisted; they live only for the duration of a
// test or sync call.
type Credentials struct {
	Host       string            `json:"host,omitempty"`
	Port       int               `json:"port,omitempty"`
	Username   string            `json:"username,omitempty"`
	Password   string            `json:"password,omitempty"`
	Database   string            `json:"database,omitempty"`
	ConnString string            `json:"connection_string,omitempty"`
	Extras     map[string]string `json:"extras,omitempty"`
}

// Vault seals and opens credential bundles with AES-256-GCM.
type Vault struct {
	key []byte
}

// New loads the encryption key from the environment.
func New() (*Vault, error) {
	b64 := os.Getenv(EnvKeyName)
	if b64 == "" {
		return nil, fmt.Errorf("encryption key not set: %s", EnvKeyName)
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 key: %w", err)
	}
	return NewWithKey(key)
}

// NewWithKey builds a vault around an explicit 32-byte key.
func NewWithKey(key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	return &Vault{key: key}, nil
}

// Encrypt seals a credentials bundle into an opaque blob. The nonce is
// prepended to the ciphertext.
func (v *Vault) Encrypt(creds Credentials) ([]byte, error) {
	plain, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

// Decrypt opens an opaque blob back into a credentials bundle.
func (v *Vault) Decrypt(data []byte) (Credentials, error) {
	gcm, err := v.gcm()
	if err != nil {
		return Credentials{}, err
	}
	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return Credentials{}, fmt.Errorf("ciphertext too short")
	}
	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return Credentials{}, fmt.Errorf("invalid credentials payload: %w", err)
	}
	return creds, nil
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

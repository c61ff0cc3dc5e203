package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CryptoService interface for sealing stored secrets
type CryptoService interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// ErrSettingNotFound is returned when no value is stored under a key.
var ErrSettingNotFound = errors.New("setting not found")

// ProviderAPIKeySetting is the settings key for the saved provider credential.
const ProviderAPIKeySetting = "provider_api_key"

// SettingsService persists server-side settings encrypted at rest.
type SettingsService struct {
	db     Database
	crypto CryptoService
}

// NewSettingsService constructs a settings service.
func NewSettingsService(db Database, crypto CryptoService) *SettingsService {
	return &SettingsService{db: db, crypto: crypto}
}

// Save encrypts and upserts a setting value.
func (s *SettingsService) Save(ctx context.Context, key, value string) error {
	sealed, err := s.crypto.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("failed to encrypt setting %s: %w", key, err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO settings (key, value_encrypted, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value_encrypted = $2, updated_at = NOW()
	`, key, sealed)
	if err != nil {
		return fmt.Errorf("failed to store setting %s: %w", key, err)
	}
	return nil
}

// Load decrypts a stored setting value.
func (s *SettingsService) Load(ctx context.Context, key string) (string, error) {
	var sealed []byte
	err := s.db.QueryRow(ctx, "SELECT value_encrypted FROM settings WHERE key = $1", key).Scan(&sealed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", fmt.Errorf("failed to load setting %s: %w", key, err)
	}
	plain, err := s.crypto.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt setting %s: %w", key, err)
	}
	return string(plain), nil
}

// Delete removes a stored setting. Deleting an absent key is not an error.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, "DELETE FROM settings WHERE key = $1", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

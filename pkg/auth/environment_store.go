package auth

import (
	"os"
	"time"

	"apimages/pkg/config"
)

// EnvironmentAccount is the name reported for credentials from the
// environment
const EnvironmentAccount = "env"

// EnvironmentStore reads a read-only account from APIMAGES_TOKEN and
// APIMAGES_BASE_URL
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment account for name "" or "env"
func (e *EnvironmentStore) Retrieve(name string) (*Account, error) {
	if name != "" && name != EnvironmentAccount {
		return nil, ErrCredentialsNotFound
	}
	token := os.Getenv(config.EnvPrefix + "TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Account{
		Name:         EnvironmentAccount,
		Token:        token,
		BaseURL:      os.Getenv(config.EnvPrefix + "BASE_URL"),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	account, err := e.Retrieve("")
	if err != nil {
		return []*Account{}, nil
	}
	return []*Account{account}, nil
}

func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

package auth

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestManagerStoreAndRetrieve(t *testing.T) {
	manager, store := NewMockManager()

	account := &Account{Name: "office", Token: "tok_0123456789", BaseURL: "https://api.example.com"}
	require.NoError(t, manager.Store(account))
	assert.False(t, account.LastModified.IsZero())
	assert.Equal(t, 1, store.Count())

	got, err := manager.Retrieve("office")
	require.NoError(t, err)
	assert.Equal(t, "tok_0123456789", got.Token)
	assert.Equal(t, "https://api.example.com", got.BaseURL)

	_, err = manager.Retrieve("missing")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, store := NewMockManager()

	assert.ErrorIs(t, manager.Store(nil), ErrInvalidCredentials)
	assert.ErrorIs(t, manager.Store(&Account{Name: "  ", Token: "x"}), ErrInvalidCredentials)
	assert.ErrorIs(t, manager.Store(&Account{Name: "office"}), ErrInvalidCredentials)
	assert.Zero(t, store.Count())
}

func TestManagerStoreFallsThrough(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("keychain locked")
	fallback := NewMockStore()
	manager := NewManagerWithStores(failing, fallback)

	require.NoError(t, manager.Store(&Account{Name: "office", Token: "tok"}))
	assert.Zero(t, failing.Count())
	assert.Equal(t, 1, fallback.Count())

	fallback.StoreError = errors.New("disk full")
	err := manager.Store(&Account{Name: "other", Token: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestManagerListMergesNewest(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	manager := NewManagerWithStores(first, second)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, first.Store(&Account{Name: "b", Token: "old", LastModified: old}))
	require.NoError(t, second.Store(&Account{Name: "b", Token: "new", LastModified: time.Now()}))
	require.NoError(t, second.Store(&Account{Name: "a", Token: "tok", LastModified: old}))

	accounts, err := manager.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a", accounts[0].Name)
	assert.Equal(t, "b", accounts[1].Name)
	assert.Equal(t, "new", accounts[1].Token)
}

func TestManagerRetrieveDefault(t *testing.T) {
	t.Setenv("APIMAGES_TOKEN", "")

	store := NewMockStore()
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	_, err := manager.RetrieveDefault()
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(&Account{Name: "old", Token: "t1", LastModified: time.Now().Add(-time.Hour)}))
	require.NoError(t, store.Store(&Account{Name: "recent", Token: "t2", LastModified: time.Now()}))

	got, err := manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, "recent", got.Name)

	t.Setenv("APIMAGES_TOKEN", "env_token")
	got, err = manager.RetrieveDefault()
	require.NoError(t, err)
	assert.Equal(t, EnvironmentAccount, got.Name)
	assert.Equal(t, "env_token", got.Token)
}

func TestManagerDelete(t *testing.T) {
	first := NewMockStore()
	second := NewMockStore()
	manager := NewManagerWithStores(first, second, NewEnvironmentStore())

	require.NoError(t, second.Store(&Account{Name: "office", Token: "tok"}))
	require.NoError(t, manager.Delete("office"))
	assert.False(t, second.Exists("office"))

	assert.ErrorIs(t, manager.Delete("office"), ErrCredentialsNotFound)

	require.NoError(t, first.Store(&Account{Name: "office", Token: "tok"}))
	first.DeleteError = errors.New("boom")
	err := manager.Delete("office")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestEnvironmentStore(t *testing.T) {
	store := NewEnvironmentStore()

	t.Setenv("APIMAGES_TOKEN", "")
	_, err := store.Retrieve("")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	t.Setenv("APIMAGES_TOKEN", "env_token")
	t.Setenv("APIMAGES_BASE_URL", "https://env.example.com")

	got, err := store.Retrieve(EnvironmentAccount)
	require.NoError(t, err)
	assert.Equal(t, "env_token", got.Token)
	assert.Equal(t, "https://env.example.com", got.BaseURL)
	assert.True(t, store.Exists(""))
	assert.False(t, store.Exists("office"))

	assert.ErrorIs(t, store.Store(&Account{Name: "x", Token: "y"}), ErrStoreUnavailable)
	assert.ErrorIs(t, store.Delete(EnvironmentAccount), ErrStoreUnavailable)
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.enc")
	store, err := NewEncryptedFileStore(path, "correct horse")
	require.NoError(t, err)

	_, err = store.Retrieve("office")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	require.NoError(t, store.Store(&Account{Name: "office", Token: "secret_token_value"}))
	require.NoError(t, store.Store(&Account{Name: "lab", Token: "other"}))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "secret_token_value")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reopened, err := NewEncryptedFileStore(path, "correct horse")
	require.NoError(t, err)
	got, err := reopened.Retrieve("office")
	require.NoError(t, err)
	assert.Equal(t, "secret_token_value", got.Token)

	accounts, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	wrong, err := NewEncryptedFileStore(path, "wrong passphrase")
	require.NoError(t, err)
	_, err = wrong.Retrieve("office")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrong passphrase?")

	require.NoError(t, reopened.Delete("office"))
	assert.False(t, reopened.Exists("office"))
	assert.ErrorIs(t, reopened.Delete("office"), ErrCredentialsNotFound)

	require.NoError(t, reopened.Delete("lab"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEncryptedFileStoreGeneratedPassphrase(t *testing.T) {
	t.Setenv(PassphraseEnv, "")
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	store, err := NewEncryptedFileStore(path, "")
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Name: "office", Token: "tok"}))

	passphrase, err := os.ReadFile(filepath.Join(dir, ".passphrase"))
	require.NoError(t, err)
	assert.NotEmpty(t, passphrase)

	reopened, err := NewEncryptedFileStore(path, "")
	require.NoError(t, err)
	assert.True(t, reopened.Exists("office"))
}

func TestEncryptedFileStorePassphraseFromEnv(t *testing.T) {
	t.Setenv(PassphraseEnv, "from-env")
	path := filepath.Join(t.TempDir(), "credentials.enc")

	store, err := NewEncryptedFileStore(path, "")
	require.NoError(t, err)
	require.NoError(t, store.Store(&Account{Name: "office", Token: "tok"}))

	explicit, err := NewEncryptedFileStore(path, "from-env")
	require.NoError(t, err)
	assert.True(t, explicit.Exists("office"))

	_, err = os.Stat(filepath.Join(filepath.Dir(path), ".passphrase"))
	assert.True(t, os.IsNotExist(err))
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	require.NoError(t, err)

	accounts, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, store.Store(&Account{Name: "office", Token: "tok1"}))
	require.NoError(t, store.Store(&Account{Name: "lab", Token: "tok2"}))
	require.NoError(t, store.Store(&Account{Name: "office", Token: "tok3"}))

	got, err := store.Retrieve("office")
	require.NoError(t, err)
	assert.Equal(t, "tok3", got.Token)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "lab", accounts[0].Name)
	assert.Equal(t, "office", accounts[1].Name)

	require.NoError(t, store.Delete("office"))
	assert.False(t, store.Exists("office"))
	assert.ErrorIs(t, store.Delete("office"), ErrCredentialsNotFound)

	_, err = store.Retrieve("office")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)

	accounts, err = store.List()
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "lab", accounts[0].Name)

	assert.ErrorIs(t, store.Store(&Account{Token: "x"}), ErrInvalidCredentials)
}

func TestSanitizeAccount(t *testing.T) {
	assert.Nil(t, SanitizeAccount(nil))

	account := &Account{Name: "office", Token: "abcdefghijklmnop"}
	masked := SanitizeAccount(account)
	assert.Equal(t, "abcd...mnop", masked.Token)
	assert.Equal(t, "abcdefghijklmnop", account.Token)
	assert.Equal(t, "office", masked.Name)
}

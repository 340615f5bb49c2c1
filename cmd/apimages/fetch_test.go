package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apimages/pkg/auth"
	"apimages/pkg/checkpoint"
	"apimages/pkg/config"
)

type staticAccounts struct {
	byName     map[string]*auth.Account
	defaultAcc *auth.Account
}

func (s *staticAccounts) Retrieve(name string) (*auth.Account, error) {
	if account, ok := s.byName[name]; ok {
		return account, nil
	}
	return nil, auth.ErrCredentialsNotFound
}

func (s *staticAccounts) RetrieveDefault() (*auth.Account, error) {
	if s.defaultAcc == nil {
		return nil, auth.ErrCredentialsNotFound
	}
	return s.defaultAcc, nil
}

func sourceOf(s accountSource) func() (accountSource, error) {
	return func() (accountSource, error) { return s, nil }
}

func TestApplyAccountNamed(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.Token = "configured"
	cfg.API.BaseURL = "https://configured.example.com"

	accounts := &staticAccounts{byName: map[string]*auth.Account{
		"office": {Name: "office", Token: "office_token", BaseURL: "https://office.example.com"},
	}}

	account, err := applyAccount(cfg, "office", sourceOf(accounts))
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "office_token", cfg.API.Token)
	assert.Equal(t, "https://office.example.com", cfg.API.BaseURL)

	_, err = applyAccount(cfg, "missing", sourceOf(accounts))
	assert.ErrorIs(t, err, auth.ErrCredentialsNotFound)
}

func TestApplyAccountKeepsConfiguredToken(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.Token = "configured"

	called := false
	source := func() (accountSource, error) {
		called = true
		return &staticAccounts{}, nil
	}

	account, err := applyAccount(cfg, "", source)
	require.NoError(t, err)
	assert.Nil(t, account)
	assert.False(t, called)
	assert.Equal(t, "configured", cfg.API.Token)
}

func TestApplyAccountDefault(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "https://configured.example.com"

	accounts := &staticAccounts{defaultAcc: &auth.Account{
		Name: "lab", Token: "lab_token", BaseURL: "https://lab.example.com",
	}}

	account, err := applyAccount(cfg, "", sourceOf(accounts))
	require.NoError(t, err)
	assert.Equal(t, "lab", account.Name)
	assert.Equal(t, "lab_token", cfg.API.Token)
	assert.Equal(t, "https://configured.example.com", cfg.API.BaseURL)
}

func TestApplyAccountNoneStored(t *testing.T) {
	cfg := config.DefaultConfig()

	account, err := applyAccount(cfg, "", sourceOf(&staticAccounts{}))
	require.NoError(t, err)
	assert.Nil(t, account)
	assert.Empty(t, cfg.API.Token)

	broken := func() (accountSource, error) { return nil, errors.New("no keyring") }
	account, err = applyAccount(cfg, "", broken)
	require.NoError(t, err)
	assert.Nil(t, account)

	_, err = applyAccount(cfg, "office", broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no keyring")
}

func TestFetchFlagsOnlyChanged(t *testing.T) {
	require.NoError(t, fetchCmd.ParseFlags([]string{"--limit", "4", "--token", "abc", "--dry-run"}))

	flags := fetchFlags(fetchCmd)
	assert.Equal(t, 4, flags["limit"])
	assert.Equal(t, "abc", flags["token"])
	assert.NotContains(t, flags, "output")
	assert.NotContains(t, flags, "concurrent")
	assert.NotContains(t, flags, "notify")
	assert.True(t, dryRun)

	cfg := config.DefaultConfig()
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 4, cfg.Fetch.ItemLimit)
	assert.Equal(t, "abc", cfg.API.Token)
	assert.Equal(t, ".output", cfg.Output.BaseDirectory)
}

func TestPrintAccounts(t *testing.T) {
	var buf bytes.Buffer
	printAccounts(&buf, []*auth.Account{
		{Name: "office", Token: "abcdefghijklmnop", BaseURL: "https://office.example.com", LastModified: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{Name: "lab", Token: "short"},
	})

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "abcd...mnop")
	assert.Contains(t, out, "2024-05-01 10:30")
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "abcdefghijklmnop")
}

func TestWriteStatusJSON(t *testing.T) {
	var buf bytes.Buffer
	info := &checkpoint.Info{Path: "site_status.json", Sites: []string{"Site A", "Site B"}}
	require.NoError(t, writeStatusJSON(&buf, info))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "site_status.json", decoded["path"])
	assert.Equal(t, []interface{}{"Site A", "Site B"}, decoded["sites"])
}

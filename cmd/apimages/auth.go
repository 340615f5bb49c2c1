package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"apimages/pkg/auth"
	"apimages/pkg/ui"
)

var (
	loginToken   string
	loginBaseURL string
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API tokens",
	Long: `Manage API tokens stored under account names.

Tokens are stored in:
  - the system keychain (when available)
  - an encrypted file with PBKDF2 key derivation

APIMAGES_TOKEN and APIMAGES_BASE_URL are always honoured and listed
as the account "env".`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [name]",
	Short: "Store an API token under an account name",
	Example: `  # Interactive login, the token is read without echo
  apimages auth login office

  # Non-interactive
  apimages auth login office --token "$TOKEN" --base-url https://api.example.com/api/v1`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout <name>",
	Short: "Remove a stored account",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogout,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts with masked tokens",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(listCmd)

	loginCmd.Flags().StringVar(&loginToken, "token", "", "API token (prompted for when omitted)")
	loginCmd.Flags().StringVar(&loginBaseURL, "base-url", "", "API base URL for this account")
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)
	out := cmd.OutOrStdout()

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	} else {
		name, err = prompt(out, reader, "Account name: ")
		if err != nil {
			return fmt.Errorf("failed to read account name: %w", err)
		}
	}
	if name == "" {
		return fmt.Errorf("account name is required")
	}
	if name == auth.EnvironmentAccount {
		return fmt.Errorf("account name %q is reserved for environment credentials", name)
	}

	token := strings.TrimSpace(loginToken)
	if token == "" {
		fmt.Fprint(out, "API token (input hidden): ")
		token, err = readSecret(reader)
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
	}

	base := strings.TrimSpace(loginBaseURL)
	if base == "" && !cmd.Flags().Changed("token") {
		base, err = prompt(out, reader, "API base URL (Enter to use the configured one): ")
		if err != nil {
			return fmt.Errorf("failed to read base URL: %w", err)
		}
	}

	account := &auth.Account{Name: name, Token: token, BaseURL: base}
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Account saved: " + name)
	ui.PrintInfo("Token", auth.SanitizeAccount(account).Token)
	ui.PrintInfo("Use it with", "apimages fetch --account "+name)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	name := strings.TrimSpace(args[0])
	if err := manager.Delete(name); err != nil {
		return fmt.Errorf("failed to remove account %q: %w", name, err)
	}
	ui.PrintSuccess("Account removed: " + name)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		ui.PrintWarning("No stored accounts. Run 'apimages auth login' to add one.")
		return nil
	}

	printAccounts(cmd.OutOrStdout(), accounts)
	return nil
}

func printAccounts(w io.Writer, accounts []*auth.Account) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTOKEN\tBASE URL\tMODIFIED")
	for _, account := range accounts {
		masked := auth.SanitizeAccount(account)
		base := masked.BaseURL
		if base == "" {
			base = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", masked.Name, masked.Token, base,
			masked.LastModified.Format("2006-01-02 15:04"))
	}
	tw.Flush()
}

func prompt(w io.Writer, reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret reads without echo from a terminal and falls back to a plain
// line read when stdin is piped
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

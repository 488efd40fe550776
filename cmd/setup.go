package cmd

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/boxkite-mcp/boxkite/internal/auth"
	"github.com/boxkite-mcp/boxkite/internal/config"
	"github.com/boxkite-mcp/boxkite/internal/secrets"
)

func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Authorize the Dropbox account",
		Long: `Authorize boxkite to access a Dropbox account using the OAuth
authorization code flow with PKCE.

The command prints an authorization URL to open in a browser. After
approving access, Dropbox shows an authorization code (or redirects to the
configured redirect URI with a 'code' query parameter). Paste the code or
the full redirect URL back here; the resulting credential is encrypted
with BOXKITE_ENCRYPTION_KEY and written to the token file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetup(cmd)
		},
	}
}

func runSetup(cmd *cobra.Command) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := secrets.NewStore(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to create secret store: %w", err)
	}

	manager, err := auth.NewManager(auth.Config{
		AppKey:      cfg.AppKey,
		AppSecret:   cfg.AppSecret,
		RedirectURI: cfg.RedirectURI,
		TokenFile:   cfg.TokenFile,
	}, store)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}

	verifier := auth.GenerateVerifier()
	state := xid.New().String()

	fmt.Println("Open this URL in a browser and approve access:")
	fmt.Println()
	fmt.Printf("  %s\n", manager.AuthCodeURL(state, verifier))
	fmt.Println()
	fmt.Print("Paste the authorization code (or the full redirect URL): ")

	code, err := readAuthCode(cmd.InOrStdin(), state)
	if err != nil {
		return err
	}

	cred, err := manager.ExchangeCode(cmd.Context(), code, verifier)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Authorization successful.")
	if len(cred.Scope) > 0 {
		fmt.Printf("  Scopes: %s\n", strings.Join(cred.Scope, " "))
	}
	if cred.ExpiresAt > 0 {
		fmt.Printf("  Access token expires: %s\n", cred.ExpiresAtTime().Format("2006-01-02 15:04:05 MST"))
	}
	fmt.Printf("  Credential written to %s\n", cfg.TokenFile)
	return nil
}

// readAuthCode reads one line of input and extracts the authorization
// code from it. A pasted redirect URL must carry the expected state.
func readAuthCode(in io.Reader, state string) (string, error) {
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read authorization code: %w", err)
		}
		return "", fmt.Errorf("no authorization code provided")
	}

	input := strings.TrimSpace(scanner.Text())
	if input == "" {
		return "", fmt.Errorf("no authorization code provided")
	}

	if !strings.Contains(input, "code=") {
		return input, nil
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect URL: %w", err)
	}
	query := parsed.Query()

	if got := query.Get("state"); got != "" && got != state {
		return "", fmt.Errorf("state mismatch in redirect URL, restart the setup flow")
	}

	code := query.Get("code")
	if code == "" {
		return "", fmt.Errorf("redirect URL carries no authorization code")
	}
	return code, nil
}

func newGenerateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-key",
		Short: "Generate an encryption key for the token store",
		Long: `Generate a random 32-byte key, base64 encoded, suitable for the
BOXKITE_ENCRYPTION_KEY environment variable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			fmt.Fprintln(os.Stdout, key)
			return nil
		},
	}
}

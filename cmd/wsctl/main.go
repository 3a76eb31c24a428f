package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/common/cnst"
	"github.com/amoylab/wshub/internal/common/config"
	"github.com/amoylab/wshub/pkg/apiclient"
	"github.com/amoylab/wshub/pkg/helper"
	"github.com/amoylab/wshub/pkg/logger"
	"github.com/amoylab/wshub/pkg/version"
)

const (
	credentialsFile = "credentials.json"
	sessionFile     = "session.json"
)

// cli is the state shared by every command once configuration is loaded
type cli struct {
	cfg     *config.ClientConfig
	logger  *zap.Logger
	client  *apiclient.Client
	tokens  apiclient.TokenStore
	session *apiclient.Session

	in       io.Reader
	out      io.Writer
	jsonMode bool
}

type globalFlags struct {
	conf     string
	baseURL  string
	jsonMode bool
}

func loadClientConfig(path string) (*config.ClientConfig, error) {
	cfg, cfgPath, err := config.LoadConfig[config.ClientConfig](path)
	if errors.Is(err, os.ErrNotExist) && path == cnst.ClientYaml {
		return config.DefaultClientConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", cfgPath, err)
	}
	return cfg, nil
}

func newCLI(cfg *config.ClientConfig, in io.Reader, out io.Writer) (*cli, error) {
	lg, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	dir := cfg.CredentialsDir
	if dir == "" {
		dir = helper.UserConfigDir()
	}
	tokens, err := openTokenStore(cfg, dir)
	if err != nil {
		return nil, err
	}

	sig := apiclient.NewSessionSignal()
	client := apiclient.New(apiclient.ConfigFromClientConfig(cfg),
		apiclient.WithTokenStore(tokens),
		apiclient.WithSessionSignal(sig),
		apiclient.WithLogger(lg),
	)
	session := apiclient.NewSession(client, tokens, apiclient.FileStatePersister{Path: filepath.Join(dir, sessionFile)}, sig)

	return &cli{
		cfg:     cfg,
		logger:  lg,
		client:  client,
		tokens:  tokens,
		session: session,
		in:      in,
		out:     out,
	}, nil
}

// openTokenStore keeps tokens in the system keyring, one entry set per base
// URL, and only falls back to the 0600 credentials file when asked to or when
// no keyring is reachable
func openTokenStore(cfg *config.ClientConfig, dir string) (apiclient.TokenStore, error) {
	path := filepath.Join(dir, credentialsFile)
	switch cfg.CredentialStore {
	case "file":
		return apiclient.NewFileTokenStore(path)
	case "keyring":
		return apiclient.NewKeyringTokenStore(cnst.AppName, cfg.BaseURL)
	case "", "auto":
		return apiclient.OpenTokenStore(cnst.AppName, cfg.BaseURL, path)
	default:
		return nil, fmt.Errorf("unknown credential_store %q (want auto, keyring or file)", cfg.CredentialStore)
	}
}

func (c *cli) close() {
	c.session.Close()
	_ = c.logger.Sync()
}

// newRootCmd builds the command tree. The cli is created lazily so that
// version and help work without configuration.
func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	var (
		flags globalFlags
		state *cli
	)
	env := func() *cli { return state }

	root := &cobra.Command{
		Use:           cnst.CommandName,
		Short:         "Command line client for " + cnst.AppName,
		Long:          cnst.CommandName + " talks to the " + cnst.AppName + " REST API: sign in, browse workspaces, manage members and read activity logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}
			cfg, err := loadClientConfig(flags.conf)
			if err != nil {
				return err
			}
			if flags.baseURL != "" {
				cfg.BaseURL = flags.baseURL
			}
			state, err = newCLI(cfg, in, out)
			if err != nil {
				return err
			}
			state.jsonMode = flags.jsonMode
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if state != nil {
				state.close()
			}
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.conf, "conf", "c", cnst.ClientYaml, "path to configuration file")
	pf.StringVar(&flags.baseURL, "base-url", "", "API base URL, overrides the configuration")
	pf.BoolVar(&flags.jsonMode, "json", false, "print JSON instead of tables")

	root.AddCommand(
		newVersionCmd(out),
		newLoginCmd(env),
		newLogoutCmd(env),
		newWhoamiCmd(env),
		newWorkspacesCmd(env),
		newMembersCmd(env),
		newReplaceOwnerCmd(env),
		newActivitiesCmd(env),
		newHealthCmd(env),
	)
	return root
}

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of " + cnst.CommandName,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "%s version %s\n", cnst.CommandName, version.Get())
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(os.Stdin, os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"awsnav/aws"
	"awsnav/config"
	"awsnav/logging"
	"awsnav/navigator"
	"awsnav/picker"
	"awsnav/profile"
	"awsnav/recent"
	"awsnav/selector"
	"awsnav/styles"
	"awsnav/utils"
)

var version = "dev"

const exitCancelled = 130

type cliFlags struct {
	client        string
	account       string
	role          string
	unified       bool
	stepByStep    bool
	list          bool
	recent        bool
	force         bool
	console       bool
	setDefault    bool
	whoami        bool
	maxRecent     int
	awsConfigPath string
	loginMethod   string
	importSession string
	dryRun        bool
	debug         bool
	version       bool
}

func newFlagSet(f *cliFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("awsnav", pflag.ContinueOnError)
	fs.SortFlags = false

	fs.StringVarP(&f.client, "client", "c", "", "pre-select the client")
	fs.StringVarP(&f.account, "account", "a", "", "pre-select the account")
	fs.StringVarP(&f.role, "role", "r", "", "pre-select the role")
	fs.BoolVarP(&f.unified, "unified", "u", false, "pick from one flat list of profiles")
	fs.BoolVarP(&f.stepByStep, "step-by-step", "s", false, "pick client, account and role one after another")
	fs.BoolVarP(&f.list, "list", "l", false, "print matching profile names and exit")
	fs.BoolVar(&f.recent, "recent", false, "rank recently used profiles first")
	fs.BoolVarP(&f.force, "force", "f", false, "log in even if the cached session is still valid")
	fs.BoolVar(&f.console, "console", false, "open the AWS console for the selected profile")
	fs.BoolVarP(&f.setDefault, "set-default", "d", false, "print an export AWS_PROFILE line for eval")
	fs.BoolVar(&f.whoami, "whoami", false, "show the caller identity after login")
	fs.IntVar(&f.maxRecent, "max-recent", 0, "number of recently used profiles to remember")
	fs.StringVar(&f.awsConfigPath, "aws-config-path", "", "AWS config file to read")
	fs.StringVar(&f.loginMethod, "login-method", "", "login with the aws CLI (cli) or the built-in device flow (device)")
	fs.StringVar(&f.importSession, "import", "", "add profiles for every account and role of an sso-session")
	fs.BoolVar(&f.dryRun, "dry-run", false, "with --import, show what would be added without writing")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logging")
	fs.BoolVarP(&f.version, "version", "v", false, "print the version and exit")

	return fs
}

// runConfig is the merge of flags over settings
type runConfig struct {
	options       navigator.Options
	maxRecent     int
	awsConfigPath string
	loginMethod   string
	debug         bool
}

func merge(f *cliFlags, fs *pflag.FlagSet, s *config.Settings) (runConfig, error) {
	pick := func(name string, flagValue, setting bool) bool {
		if fs.Changed(name) {
			return flagValue
		}
		return setting
	}
	or := func(flagValue, setting string) string {
		if flagValue != "" {
			return flagValue
		}
		return setting
	}

	rc := runConfig{
		options: navigator.Options{
			Client:      or(f.client, s.DefaultClient),
			Account:     or(f.account, s.DefaultAccount),
			Role:        or(f.role, s.DefaultRole),
			Mode:        selector.Stepwise,
			RecentFirst: pick("recent", f.recent, s.Recent),
			List:        pick("list", f.list, s.List),
			Force:       f.force,
			OpenConsole: pick("console", f.console, s.OpenConsole),
			SetDefault:  pick("set-default", f.setDefault, s.SetDefault),
			WhoAmI:      f.whoami,
		},
		maxRecent:     s.MaxRecentProfiles,
		awsConfigPath: or(f.awsConfigPath, s.AWSConfigPath),
		loginMethod:   or(f.loginMethod, s.LoginMethod),
		debug:         f.debug || s.Debug,
	}

	if pick("unified", f.unified, s.UnifiedMode) && !f.stepByStep {
		rc.options.Mode = selector.Unified
	}

	if fs.Changed("max-recent") {
		if f.maxRecent < 0 {
			return runConfig{}, fmt.Errorf("--max-recent must not be negative, got %d", f.maxRecent)
		}
		rc.maxRecent = f.maxRecent
	}

	if rc.loginMethod == "" {
		rc.loginMethod = config.LoginMethodCLI
	}
	if rc.loginMethod != config.LoginMethodCLI && rc.loginMethod != config.LoginMethodDevice {
		return runConfig{}, fmt.Errorf("invalid --login-method %q: expected %q or %q", rc.loginMethod, config.LoginMethodCLI, config.LoginMethodDevice)
	}

	return rc, nil
}

// loginBackend logs in single profiles and whole sso-sessions
type loginBackend interface {
	navigator.Login
	aws.SessionLoginer
}

func newLoginBackend(method, configPath string, cache *aws.TokenCache, status io.Writer) loginBackend {
	if method == config.LoginMethodDevice {
		return &aws.DeviceLogin{
			Cache:     cache,
			NewClient: aws.NewClient,
			OpenURL:   utils.OpenBrowser,
			Out:       status,
		}
	}

	// The CLI's own output goes to stderr so stdout stays usable for eval
	return &aws.CLILogin{
		ConfigPath: configPath,
		Stdout:     status,
		Stderr:     status,
	}
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var f cliFlags
	fs := newFlagSet(&f)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if f.version {
		fmt.Fprintln(stdout, "awsnav", version)
		return nil
	}

	logging.Initialize(stderr, f.debug)

	settings := &config.Settings{}
	settingsPath, err := config.SettingsPath()
	if err != nil {
		return err
	}
	if loaded, err := config.LoadSettings(settingsPath); err != nil {
		logging.Logger.Warn("Ignoring settings", "file", settingsPath, "error", err)
	} else {
		settings = loaded
	}

	rc, err := merge(&f, fs, settings)
	if err != nil {
		return err
	}
	logging.Initialize(stderr, rc.debug)

	configPath, err := config.AWSConfigPath(rc.awsConfigPath)
	if err != nil {
		return err
	}

	manager := config.NewManager(configPath)
	sections, err := manager.ReadSections()
	if err != nil {
		return err
	}

	catalog, skipped := profile.Load(sections)
	for _, s := range skipped {
		logging.Logger.Warn("Skipping profile", "name", s.Name, "reason", s.Err)
	}
	logging.Logger.Debug("Loaded profiles", "config", configPath, "count", catalog.Len())

	cacheDir, err := aws.DefaultTokenCacheDir()
	if err != nil {
		return err
	}
	cache := aws.NewTokenCache(cacheDir)
	login := newLoginBackend(rc.loginMethod, configPath, cache, stderr)

	if f.importSession != "" {
		im := &navigator.Importer{
			Catalog: catalog,
			Discoverer: &aws.SessionGrants{
				Cache:     cache,
				Login:     login,
				NewClient: aws.NewClient,
			},
			Writer: manager,
			Out:    stderr,
		}
		_, err := im.Import(ctx, f.importSession, f.dryRun)
		return err
	}

	recentPath, err := config.RecentPath()
	if err != nil {
		return err
	}

	runner := &navigator.Runner{
		Catalog:  catalog,
		Tracker:  recent.Load(recent.NewFileStore(recentPath), rc.maxRecent),
		Picker:   picker.New(),
		Cache:    cache,
		Login:    login,
		Console:  aws.Console{OpenURL: utils.OpenBrowser},
		Identity: aws.IdentityLookup{ConfigPath: configPath},
		Out:      stdout,
		Status:   stderr,
	}

	_, err = runner.Run(ctx, rc.options)
	return err
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, selector.ErrUserCancelled), errors.Is(err, context.Canceled):
		return exitCancelled
	default:
		return 1
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()

	code := exitCode(err)
	if code == 1 {
		fmt.Fprintln(os.Stderr, styles.ErrorStyle.Render("Error: "+err.Error()))
	}
	os.Exit(code)
}

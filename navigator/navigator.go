package navigator

import (
	"context"
	"fmt"
	"io"
	"time"

	"awsnav/aws"
	"awsnav/logging"
	"awsnav/profile"
	"awsnav/recent"
	"awsnav/selector"
	"awsnav/session"
	"awsnav/styles"
)

// Login authenticates a resolved profile
type Login interface {
	Login(ctx context.Context, p profile.Profile, force bool) error
}

// Console opens the web console for a profile
type Console interface {
	Open(ctx context.Context, p profile.Profile) error
}

// Identity reports who a profile's credentials belong to
type Identity interface {
	WhoAmI(ctx context.Context, p profile.Profile) (*aws.Identity, error)
}

// Options are the per-run choices merged from flags and settings
type Options struct {
	Client      string
	Account     string
	Role        string
	Mode        selector.Mode
	RecentFirst bool
	List        bool
	Force       bool
	OpenConsole bool
	SetDefault  bool
	WhoAmI      bool
}

func (o Options) request() selector.Request {
	return selector.Request{
		Client:      o.Client,
		Account:     o.Account,
		Role:        o.Role,
		Mode:        o.Mode,
		RecentFirst: o.RecentFirst,
	}
}

// Runner drives one selection: resolve, validate, login, record
type Runner struct {
	Catalog  *profile.Catalog
	Tracker  *recent.Tracker
	Picker   selector.Picker
	Cache    session.CredentialCache
	Login    Login
	Console  Console
	Identity Identity

	// Out receives machine readable output, Status everything meant for a human
	Out    io.Writer
	Status io.Writer

	Now func() time.Time
}

// Run resolves a profile and makes sure it has a live session. In list mode it
// prints the candidates and returns a zero Profile.
func (r *Runner) Run(ctx context.Context, opts Options) (profile.Profile, error) {
	engine := selector.New(r.Catalog, r.Tracker, r.Picker)

	if opts.List {
		for _, p := range engine.List(opts.request()) {
			fmt.Fprintln(r.Out, p.Name)
		}
		return profile.Profile{}, nil
	}

	p, err := engine.Resolve(ctx, opts.request())
	if err != nil {
		return profile.Profile{}, err
	}

	validator := session.Validator{Cache: r.Cache, Force: opts.Force, Now: r.Now}
	state := validator.Check(ctx, p)
	logging.Logger.Debug("Session state", "profile", p.Name, "state", state.String())

	if state.NeedsLogin() {
		r.status(styles.MutedStyle.Render(fmt.Sprintf("Logging in to %s (session %s)", p.Name, state)))
		if err := r.Login.Login(ctx, p, opts.Force); err != nil {
			return profile.Profile{}, err
		}
	} else {
		r.status(styles.MutedStyle.Render(fmt.Sprintf("Session for %s is still valid", p.Name)))
	}

	if r.Tracker != nil {
		r.Tracker.RecordUse(p.Name)
		if err := r.Tracker.Persist(); err != nil {
			logging.Logger.Warn("Failed to save recent profiles", "error", err)
		}
	}

	if opts.OpenConsole && r.Console != nil {
		if err := r.Console.Open(ctx, p); err != nil {
			logging.Logger.Warn("Failed to open console", "profile", p.Name, "error", err)
		}
	}

	if opts.WhoAmI && r.Identity != nil {
		identity, err := r.Identity.WhoAmI(ctx, p)
		if err != nil {
			return p, err
		}
		r.status(styles.SuccessBox.Render(fmt.Sprintf("Account: %s\nARN: %s\nUser: %s", identity.Account, identity.Arn, identity.UserID)))
	}

	if opts.SetDefault {
		fmt.Fprintf(r.Out, "export AWS_PROFILE=%s\n", p.Name)
	} else {
		r.status(styles.SuccessStyle.Render("✓ " + p.Name + " is ready"))
	}

	return p, nil
}

func (r *Runner) status(line string) {
	if r.Status != nil {
		fmt.Fprintln(r.Status, line)
	}
}

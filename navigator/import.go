package navigator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"awsnav/importer"
	"awsnav/logging"
	"awsnav/profile"
	"awsnav/styles"
)

var ErrUnknownSession = errors.New("unknown sso-session")

// GrantDiscoverer lists the account/role grants of an sso-session
type GrantDiscoverer interface {
	Grants(ctx context.Context, session profile.SSOSession) ([]importer.Grant, error)
}

// ProfileWriter persists new profile sections
type ProfileWriter interface {
	AppendProfiles(additions []importer.Addition) error
}

// Importer adds a profile for every grant of an sso-session that is not configured yet
type Importer struct {
	Catalog    *profile.Catalog
	Discoverer GrantDiscoverer
	Writer     ProfileWriter
	Namer      importer.Namer
	Out        io.Writer
}

// Import discovers, reconciles and, unless dryRun is set, writes the new profiles
func (im *Importer) Import(ctx context.Context, sessionName string, dryRun bool) (importer.Plan, error) {
	sess, ok := im.Catalog.Session(sessionName)
	if !ok {
		return importer.Plan{}, fmt.Errorf("%w: %s", ErrUnknownSession, sessionName)
	}

	grants, err := im.Discoverer.Grants(ctx, sess)
	if err != nil {
		return importer.Plan{}, err
	}
	logging.Logger.Debug("Discovered grants", "session", sess.Name, "count", len(grants))

	ref := importer.SessionRef{Name: sess.Name, StartURL: sess.StartURL, Region: sess.Region}
	plan := importer.Resolve(ref, grants, im.Catalog, im.Namer)

	im.report(plan, dryRun)

	if dryRun || len(plan.New) == 0 {
		return plan, nil
	}

	if err := im.Writer.AppendProfiles(plan.New); err != nil {
		return plan, err
	}

	return plan, nil
}

func (im *Importer) report(plan importer.Plan, dryRun bool) {
	if im.Out == nil {
		return
	}

	verb := "Added"
	if dryRun {
		verb = "Would add"
	}

	for _, a := range plan.New {
		fmt.Fprintln(im.Out, styles.SuccessStyle.Render(fmt.Sprintf("+ %s", a.Name))+
			styles.MutedStyle.Render(fmt.Sprintf(" (%s %s)", a.AccountID, a.RoleName)))
	}

	for _, c := range plan.Conflicts {
		msg := fmt.Sprintf("! %s already taken, skipping %s %s", c.Name, c.Grant.AccountID, c.Grant.RoleName)
		if c.Existing != nil {
			msg = fmt.Sprintf("! %s is bound to %s %s, skipping %s %s",
				c.Name, c.Existing.SSOAccountID, c.Existing.SSORoleName, c.Grant.AccountID, c.Grant.RoleName)
		}
		fmt.Fprintln(im.Out, styles.WarningStyle.Render(msg))
	}

	fmt.Fprintln(im.Out, styles.MutedStyle.Render(fmt.Sprintf("%s %d profiles, %d already present, %d conflicts",
		verb, len(plan.New), len(plan.Present), len(plan.Conflicts))))
}

package login

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/authservice"
	"github.com/mpapenbr/itslogin/pkg/cmd/util"
	"github.com/mpapenbr/itslogin/pkg/config"
	"github.com/mpapenbr/itslogin/pkg/login"
	"github.com/mpapenbr/itslogin/pkg/model"
	"github.com/mpapenbr/itslogin/pkg/navigation"
	"github.com/mpapenbr/itslogin/pkg/oidc"
	"github.com/mpapenbr/itslogin/pkg/views"
)

// RolePrompter asks the user for the role to log in as
type RolePrompter func(ctx context.Context) (model.Role, error)

//nolint:funlen // flag definitions
func NewLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "log in as teacher or student",
		Long: `Fetches the OAuth client configuration, lets you choose a role and
completes the authorization in your browser. After the auth service
verified the account the teacher or student view is shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.Role,
		"role",
		"r",
		"",
		"role to log in as (teacher, student). Prompts if empty")
	cmd.Flags().StringVar(&config.IssuerURL,
		"issuer-url",
		"",
		"if set, provider endpoints are discovered from this OpenID issuer")
	cmd.Flags().StringVar(&config.AuthorizeURL,
		"authorize-url",
		oidc.DefaultAuthorizationEndpoint,
		"authorization endpoint of the identity provider")
	cmd.Flags().StringVar(&config.TokenURL,
		"token-url",
		oidc.DefaultTokenEndpoint,
		"token endpoint of the identity provider")
	cmd.Flags().StringVar(&config.RedirectURL,
		"redirect-url",
		oidc.DefaultRedirectURL,
		"loopback URL receiving the authorization response")
	cmd.Flags().BoolVar(&config.NoBrowser,
		"no-browser",
		false,
		"do not open a browser, just print the authorization URL")
	cmd.Flags().StringVar(&config.ConfigFetchTimeout,
		"config-fetch-timeout",
		"10s",
		"timeout for fetching the client configuration")
	cmd.Flags().StringVar(&config.AuthorizeTimeout,
		"authorize-timeout",
		"5m",
		"max duration to complete the authorization in the browser")
	cmd.Flags().StringVar(&config.VerifyTimeout,
		"verify-timeout",
		"10s",
		"timeout for the account verification")
	return cmd
}

//nolint:funlen // by design
func runLogin(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	util.SetupLogger()
	shutdown := util.SetupTelemetry(ctx)
	defer shutdown()

	if err := util.WaitForRequiredServices(); err != nil {
		log.Error("required services not ready", log.ErrorField(err))
		return err
	}

	store, closeStore, err := util.NewSessionStore()
	if err != nil {
		return err
	}
	defer closeStore()

	endpoints, err := resolveEndpoints(ctx)
	if err != nil {
		return err
	}

	authorizerOpts := []oidc.Option{oidc.WithPromptWriter(os.Stderr)}
	if config.NoBrowser {
		authorizerOpts = append(authorizerOpts,
			oidc.WithBrowserOpener(func(string) error { return nil }))
	}
	viewOpts := []views.Option{views.WithOutput(os.Stdout), views.WithSessionStore(store)}
	router := navigation.NewRouter(
		navigation.WithView(navigation.DestinationTeacherView, views.NewTeacherView(viewOpts...)),
		navigation.WithView(navigation.DestinationStudentView, views.NewStudentView(viewOpts...)),
	)

	o := login.New(
		login.WithAuthService(authservice.New(config.AuthServiceURL)),
		login.WithAuthorizer(oidc.NewLoopbackAuthorizer(authorizerOpts...)),
		login.WithSessionStore(store),
		login.WithNavigator(router),
		login.WithAlerter(views.NewTerminalAlerter(os.Stderr)),
		login.WithEndpoints(endpoints),
		login.WithRedirectURL(config.RedirectURL),
		login.WithTimeouts(parseTimeouts()),
	)
	defer o.Close()

	return runScreen(ctx, o, config.Role, promptRole)
}

type (
	loginRunner interface {
		Login(ctx context.Context, role model.Role) (*login.Outcome, error)
	}
	loginScreen interface {
		loginRunner
		Prefetch(ctx context.Context) error
	}
)

// runScreen fetches the client configuration while the user picks a role.
// A login started before the fetch is done joins it.
//
//nolint:whitespace // editor/linter issue
func runScreen(
	ctx context.Context,
	o loginScreen,
	fixedRole string,
	prompt RolePrompter,
) error {
	go func() {
		// failures are shown to the user, login fetches again
		if err := o.Prefetch(ctx); err != nil {
			log.Debug("prefetch finished with error", log.ErrorField(err))
		}
	}()
	return loginLoop(ctx, o, fixedRole, prompt)
}

// loginLoop returns to role selection after every failure until a login
// succeeds or the user aborts. A role given on the command line is tried once.
//
//nolint:whitespace // editor/linter issue
func loginLoop(
	ctx context.Context,
	o loginRunner,
	fixedRole string,
	prompt RolePrompter,
) error {
	for {
		var role model.Role
		var err error
		if fixedRole != "" {
			if role, err = model.ParseRole(fixedRole); err != nil {
				return err
			}
		} else {
			role, err = prompt(ctx)
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			if err != nil {
				return err
			}
		}

		out, err := o.Login(ctx, role)
		if err == nil {
			log.Debug("login finished",
				log.String("attemptId", out.AttemptID),
				log.String("destination", string(out.Destination)))
			return nil
		}
		if fixedRole != "" || ctx.Err() != nil || errors.Is(err, login.ErrClosed) {
			return err
		}
	}
}

func promptRole(ctx context.Context) (model.Role, error) {
	var role string
	options := make([]huh.Option[string], 0, len(model.Roles))
	for _, r := range model.Roles {
		options = append(options, huh.NewOption(roleLabel(r), r.String()))
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("Log in as").
			Options(options...).
			Value(&role),
	))
	err := form.RunWithContext(ctx)
	if err != nil {
		return "", err
	}
	return model.ParseRole(role)
}

func roleLabel(r model.Role) string {
	switch r {
	case model.RoleTeacher:
		return "Teacher"
	case model.RoleStudent:
		return "Student"
	default:
		return r.String()
	}
}

func resolveEndpoints(ctx context.Context) (oidc.Endpoints, error) {
	if config.IssuerURL == "" {
		return oidc.Endpoints{
			AuthorizationEndpoint: config.AuthorizeURL,
			TokenEndpoint:         config.TokenURL,
		}, nil
	}
	ep, _, err := oidc.Discover(ctx, config.IssuerURL)
	if err != nil {
		return oidc.Endpoints{}, fmt.Errorf("discovering provider endpoints: %w", err)
	}
	return ep, nil
}

func parseTimeouts() login.Timeouts {
	parse := func(name, value string) time.Duration {
		if value == "" {
			return 0
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			log.Warn("invalid timeout, using default",
				log.String("flag", name),
				log.String("value", value))
			return 0
		}
		return d
	}
	return login.Timeouts{
		ConfigFetch:   parse("config-fetch-timeout", config.ConfigFetchTimeout),
		Authorization: parse("authorize-timeout", config.AuthorizeTimeout),
		Verification:  parse("verify-timeout", config.VerifyTimeout),
	}
}

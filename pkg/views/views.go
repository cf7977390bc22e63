package views

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/mpapenbr/itslogin/pkg/navigation"
	"github.com/mpapenbr/itslogin/pkg/session"
)

type (
	Option func(*RoleView)

	// RoleView is the landing view after a successful login
	RoleView struct {
		title string
		out   io.Writer
		store session.Store
	}
)

var ErrNoAuthID = errors.New("no authId available")

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("12")).
			Padding(0, 1)
	infoStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(1)
)

var _ navigation.View = (*RoleView)(nil)

func WithOutput(w io.Writer) Option {
	return func(v *RoleView) {
		v.out = w
	}
}

// WithSessionStore is consulted if the authId was not passed as parameter
func WithSessionStore(s session.Store) Option {
	return func(v *RoleView) {
		v.store = s
	}
}

func NewTeacherView(opts ...Option) *RoleView {
	return newRoleView("Teacher view", opts...)
}

func NewStudentView(opts ...Option) *RoleView {
	return newRoleView("Student view", opts...)
}

func newRoleView(title string, opts ...Option) *RoleView {
	ret := &RoleView{title: title, out: io.Discard}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

func (v *RoleView) Show(ctx context.Context, params navigation.Params) error {
	authID, err := v.ResolveAuthID(ctx, params)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(v.out, lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(v.title),
		infoStyle.Render("authId: "+authID)))
	return err
}

// ResolveAuthID prefers the navigation parameter, then the request context,
// then the shared session store.
//
//nolint:whitespace // editor/linter issue
func (v *RoleView) ResolveAuthID(
	ctx context.Context,
	params navigation.Params,
) (string, error) {
	if params.AuthID != "" {
		return params.AuthID, nil
	}
	if authID := session.AuthIDFromContext(ctx); authID != "" {
		return authID, nil
	}
	if v.store != nil {
		authID, err := v.store.Get(ctx)
		if err == nil {
			return authID, nil
		}
		if !errors.Is(err, session.ErrNoSession) {
			return "", err
		}
	}
	return "", ErrNoAuthID
}

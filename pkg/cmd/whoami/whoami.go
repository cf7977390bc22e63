package whoami

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/cmd/util"
	"github.com/mpapenbr/itslogin/pkg/model"
	"github.com/mpapenbr/itslogin/pkg/navigation"
	"github.com/mpapenbr/itslogin/pkg/session"
	"github.com/mpapenbr/itslogin/pkg/views"
)

var (
	follow bool
	asRole string
)

func NewWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "shows the authId of the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			util.SetupLogger()
			store, closeStore, err := util.NewSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()
			if asRole != "" {
				return showView(ctx, store, os.Stdout)
			}
			if follow {
				return followSession(ctx, store, os.Stdout)
			}
			return printSession(ctx, store, os.Stdout)
		},
	}
	cmd.Flags().BoolVarP(&follow,
		"follow",
		"f",
		false,
		"keep running and print every change of the session")
	cmd.Flags().StringVar(&asRole,
		"as",
		"",
		"render the view of this role (teacher, student) for the current session")
	return cmd
}

func printSession(ctx context.Context, store session.Store, w io.Writer) error {
	authID, err := store.Get(ctx)
	if errors.Is(err, session.ErrNoSession) {
		_, err = fmt.Fprintln(w, "not logged in")
		return err
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, authID)
	return err
}

func followSession(ctx context.Context, store session.Store, w io.Writer) error {
	ch, err := store.Watch(ctx)
	if err != nil {
		return err
	}
	for authID := range ch {
		if authID == "" {
			authID = "not logged in"
		}
		if _, err := fmt.Fprintln(w, authID); err != nil {
			return err
		}
	}
	log.Debug("session watch ended")
	return nil
}

// showView renders a role view without navigation params, so the authId
// is taken from the session store.
func showView(ctx context.Context, store session.Store, w io.Writer) error {
	role, err := model.ParseRole(asRole)
	if err != nil {
		return err
	}
	opts := []views.Option{views.WithOutput(w), views.WithSessionStore(store)}
	var view navigation.View
	if role == model.RoleTeacher {
		view = views.NewTeacherView(opts...)
	} else {
		view = views.NewStudentView(opts...)
	}
	return view.Show(ctx, navigation.Params{})
}

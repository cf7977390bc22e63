package logout

import (
	"github.com/spf13/cobra"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/cmd/util"
)

func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "removes the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			util.SetupLogger()
			store, closeStore, err := util.NewSessionStore()
			if err != nil {
				return err
			}
			defer closeStore()
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			log.Info("session removed")
			return nil
		},
	}
}

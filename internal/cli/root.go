package cli

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// NewRootCmd создаёт корневую команду flowctl.
//
// Вторым значением возвращается функция, закрывающая соединения сессии.
// Её нужно вызвать после Execute: PersistentPostRun не выполняется,
// если команда вернула ошибку.
func NewRootCmd(version string, logger *slog.Logger) (*cobra.Command, func()) {
	var opts Options
	var session *Session

	rootCmd := &cobra.Command{
		Use:           "flowctl",
		Short:         "flowctl — dependency scheduler for data replication flows",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			out := NewOutputTo(opts.JSON, cmd.OutOrStdout(), cmd.ErrOrStderr())
			session = NewSession(opts, out, logger)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.Server, "server", os.Getenv("FLOWCTL_SERVER"), "Replication platform URL")
	flags.StringVar(&opts.Token, "token", os.Getenv("FLOWCTL_TOKEN"), "Platform access token")
	flags.BoolVar(&opts.JSON, "json", false, "Output in JSON format")
	flags.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "Platform request timeout")

	sessionFn := func() *Session { return session }

	rootCmd.AddCommand(
		NewProjectCmd(sessionFn),
		NewFlowCmd(sessionFn),
		NewEventsCmd(sessionFn),
	)

	closeSession := func() {
		if session != nil {
			session.Close()
		}
	}

	return rootCmd, closeSession
}

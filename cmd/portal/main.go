// portal — консольный клиент портала студенческого клуба: вход,
// регистрация, навигация по маршрутам с проверкой сессии и выход.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		a          = &app{}
	)

	cmd := &cobra.Command{
		Use:           "portal",
		Short:         "Student club portal client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to client config file (YAML)")

	cmd.AddCommand(
		loginCmd(a),
		signupCmd(a),
		openCmd(a),
		whoamiCmd(a),
		logoutCmd(a),
		watchCmd(a),
	)

	return cmd
}

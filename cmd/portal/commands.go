package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pribylovaa/club-portal/internal/client/api"
	"github.com/pribylovaa/club-portal/internal/client/coordinator"
)

// passwordEnv — пароль можно передать через окружение, чтобы он не попал
// в историю оболочки.
const passwordEnv = "PORTAL_PASSWORD"

func passwordOrEnv(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("password is required (--password or %s)", passwordEnv)
}

// formError показывает сообщение сервера как есть.
func formError(err error) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Kind == api.KindRejected && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return err
}

func loginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrEnv(password)
			if err != nil {
				return err
			}

			res, err := a.coord.Login(a.ctx(cmd.Context()), email, pw)
			if err != nil {
				return formError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s\n", res.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or "+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func signupCmd(a *app) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := passwordOrEnv(password)
			if err != nil {
				return err
			}

			res, err := a.coord.Signup(a.ctx(cmd.Context()), username, email, pw)
			if err != nil {
				return formError(err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "signed up as %s\n", res.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (or "+passwordEnv+")")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func openCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <path>",
		Short: "Navigate to a portal route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, res, err := a.navigate(a.ctx(cmd.Context()), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if target := d.Target(); target != "" {
				fmt.Fprintf(out, "%s -> %s\n", d, target)
			} else {
				fmt.Fprintf(out, "%s %s\n", d, args[0])
			}

			if res.State == coordinator.Invalid && res.Kind != api.KindMissingCredential {
				a.log.Info("session_invalidated", slog.String("kind", string(res.Kind)))
			}
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			if verify {
				res, err := a.coord.Verify(a.ctx(cmd.Context()), false)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "state: %s\n", res.State)
				if res.Kind != "" {
					fmt.Fprintf(out, "reason: %s\n", res.Kind)
				}
			}

			// Без --verify роль — лишь подсказка из локального состояния.
			st := a.session.Get()
			fmt.Fprintf(out, "authenticated: %t\n", st.IsAuthenticated)
			if st.Role != "" {
				fmt.Fprintf(out, "role: %s\n", st.Role)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "confirm the session with the server first")

	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.coord.Logout(a.ctx(cmd.Context())); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func watchCmd(a *app) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow session changes made by other portal instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.ctx(cmd.Context())
			out := cmd.OutOrStdout()

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.log.Error("metrics_serve_failed", slog.String("err", err.Error()))
					}
				}()
				defer func() { _ = srv.Close() }()
			}

			res, err := a.coord.Verify(ctx, false)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "session: %s\n", res.State)

			err = a.coord.Watch(ctx, a.file, func(r coordinator.Result) {
				if r.Redirect != "" {
					fmt.Fprintf(out, "session: %s -> %s\n", r.State, r.Redirect)
					return
				}
				fmt.Fprintf(out, "session: %s\n", r.State)
			})
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

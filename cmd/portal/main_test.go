package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/club-portal/internal/client/api"
	"github.com/pribylovaa/club-portal/internal/client/coordinator"
	"github.com/pribylovaa/club-portal/internal/client/gate"
	"github.com/pribylovaa/club-portal/internal/models"
)

// run выполняет команду клиента с конфигом во временной директории.
// Сервер не нужен: проверяются только пути без сетевых вызовов.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	dir := t.TempDir()
	cfg := filepath.Join(dir, "portal.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(
		"env: prod\nbase_url: http://127.0.0.1:1\nstate_path: "+filepath.Join(dir, "state.json")+"\n",
	), 0o644))

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfg}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestOpen_PublicRouteRenders(t *testing.T) {
	out, err := run(t, "open", "/login")
	require.NoError(t, err)
	require.Equal(t, "render_route /login\n", out)
}

func TestOpen_ProtectedWithoutSessionRedirects(t *testing.T) {
	out, err := run(t, "open", "/announcements")
	require.NoError(t, err)
	require.Equal(t, "redirect_to_login -> /login\n", out)
}

func TestWhoami_NoSession(t *testing.T) {
	out, err := run(t, "whoami")
	require.NoError(t, err)
	require.Equal(t, "authenticated: false\n", out)
}

func TestLogin_RequiresPassword(t *testing.T) {
	t.Setenv(passwordEnv, "")

	_, err := run(t, "login", "--email", "ann@club.org")
	require.ErrorContains(t, err, "password is required")
}

func TestFormError_ShowsServerMessage(t *testing.T) {
	err := formError(&api.Error{Kind: api.KindRejected, Message: "Email is already registered"})
	require.EqualError(t, err, "Email is already registered")

	other := &api.Error{Kind: api.KindNetworkFailure, Message: "timeout"}
	require.Equal(t, error(other), formError(other))
}

func TestDecide_UsesConfirmedResult(t *testing.T) {
	routes := gate.Default()

	cases := map[string]struct {
		res  coordinator.Result
		path string
		want gate.Decision
	}{
		"confirmed admin":    {res: coordinator.Result{State: coordinator.Valid, Role: models.RoleAdmin}, path: "/admin", want: gate.RenderRoute},
		"confirmed user":     {res: coordinator.Result{State: coordinator.Valid, Role: models.RoleUser}, path: "/admin", want: gate.RedirectToHome},
		"valid without role": {res: coordinator.Result{State: coordinator.Valid}, path: "/admin", want: gate.RedirectToHome},
		"still verifying":    {res: coordinator.Result{State: coordinator.Verifying, Role: models.RoleAdmin}, path: "/admin", want: gate.RenderLoading},
		"invalid session":    {res: coordinator.Result{State: coordinator.Invalid}, path: "/profile", want: gate.RedirectToLogin},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, decide(routes, tc.res, tc.path))
		})
	}
}

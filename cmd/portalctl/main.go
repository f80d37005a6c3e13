// Command portalctl drives the portal auth flows from a terminal. The
// session survives between invocations in the configured session store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	auth "github.com/patientipr/portal-auth"
	"github.com/patientipr/portal-auth/config"
)

const usage = `usage: portalctl <command> [flags]

commands:
  login   -identifier <id> -secret <secret>
  logout
  whoami
  signup  -name <name> -email <email> [-identifier <id>] -secret <secret> -confirm <secret>
  forgot  -email <email>
  reset   -token <token> -secret <secret> -confirm <secret>
  open    <path>
`

type client struct {
	cfg      *config.Config
	logger   *auth.ZerologLogger
	remote   *auth.RemoteBackend
	sessions *auth.SessionContext
	guard    *auth.AccessGuard
	out      io.Writer
	closers  []func() error
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	c, err := newClient(ctx, cfg, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		os.Exit(1)
	}
	defer c.close()

	if err := c.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		c.close()
		os.Exit(1)
	}
}

func newClient(ctx context.Context, cfg *config.Config, out io.Writer) (*client, error) {
	logger := auth.NewRootLogger(cfg.LogLevel, cfg.LogPretty)

	c := &client{
		cfg:    cfg,
		logger: logger,
		out:    out,
		guard:  auth.NewAccessGuard(auth.WithGuardConfig(cfg)),
		remote: auth.NewRemoteBackend(
			cfg.Client.RemoteURL,
			auth.WithRemoteTimeout(cfg.GetRequestTimeout()),
			auth.WithRemoteLogger(logger.With("remote")),
		),
	}

	kv, err := c.keyValue(ctx)
	if err != nil {
		c.close()
		return nil, err
	}

	store := auth.NewSessionStore(kv,
		auth.WithSessionKey(cfg.GetSessionKey()),
		auth.WithStoreLogger(logger.With("store")),
	)

	c.sessions, err = auth.NewSessionContext(ctx, store, auth.WithContextLogger(logger.With("session")))
	if err != nil {
		c.close()
		return nil, err
	}

	return c, nil
}

func (c *client) keyValue(ctx context.Context) (auth.KeyValue, error) {
	switch c.cfg.Client.SessionStore {
	case config.StoreRedis:
		rdb, err := auth.ConnectRedis(ctx, c.cfg.Redis.Addr, c.cfg.Redis.Password, c.cfg.Redis.DB)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rdb.Close)
		return auth.NewRedisKeyValue(rdb, auth.WithRedisPrefix(c.cfg.Redis.Prefix)), nil
	case config.StoreMemory:
		return auth.NewMemoryKeyValue(), nil
	default:
		db, err := auth.OpenSQLite(c.cfg.Client.SessionDSN)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close)
		if _, err := auth.Migrate(ctx, db); err != nil {
			return nil, err
		}
		return auth.NewBunKeyValue(db), nil
	}
}

func (c *client) close() {
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			c.logger.Warn("close failed", "error", err)
		}
	}
	c.closers = nil
}

func (c *client) navigator() auth.Navigator {
	return auth.NavigatorFunc(func(path string) {
		fmt.Fprintf(c.out, "-> %s\n", path)
	})
}

func (c *client) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "logout":
		return c.logout(ctx)
	case "whoami":
		return c.whoami()
	case "signup":
		return c.signup(ctx, args)
	case "forgot":
		return c.forgot(ctx, args)
	case "reset":
		return c.reset(ctx, args)
	case "open":
		return c.open(args)
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (c *client) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	identifier := fs.String("identifier", "", "username or email")
	secret := fs.String("secret", "", "password")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow := auth.NewLoginFlow(c.remote, c.sessions,
		auth.WithNavigator(c.navigator()),
		auth.WithFlowLogger(c.logger.With("login")),
		auth.WithFlowGuard(c.guard),
	)
	return c.report(flow.Submit(ctx, auth.LoginForm{Identifier: *identifier, Secret: *secret}))
}

func (c *client) logout(ctx context.Context) error {
	current := c.sessions.Current()
	if current == nil {
		fmt.Fprintln(c.out, auth.MessageLoggedOut)
		return nil
	}

	if err := c.remote.Logout(ctx, current.Token); err != nil {
		c.logger.Warn("server logout failed", "error", err)
	}

	if err := c.sessions.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, auth.MessageLoggedOut)
	return nil
}

func (c *client) whoami() error {
	session := c.sessions.Current()
	if session == nil {
		fmt.Fprintln(c.out, "not logged in")
		return nil
	}
	fmt.Fprintf(c.out, "%s (%s) role=%s\n", session.Profile.Name, session.Profile.Username, session.Role)
	return nil
}

func (c *client) signup(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	identifier := fs.String("identifier", "", "username, defaults to the email local part")
	secret := fs.String("secret", "", "password")
	confirm := fs.String("confirm", "", "password confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow := auth.NewSignupFlow(c.remote,
		auth.WithNavigator(c.navigator()),
		auth.WithFlowLogger(c.logger.With("signup")),
		auth.WithFlowGuard(c.guard),
	)
	return c.report(flow.Submit(ctx, auth.SignupForm{
		Name:         *name,
		Email:        *email,
		Identifier:   *identifier,
		Secret:       *secret,
		Confirmation: *confirm,
	}))
}

func (c *client) forgot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow := auth.NewForgotPasswordFlow(c.remote,
		auth.WithNavigator(c.navigator()),
		auth.WithFlowLogger(c.logger.With("forgot")),
	)
	return c.report(flow.Submit(ctx, auth.ForgotPasswordForm{Email: *email}))
}

func (c *client) reset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	token := fs.String("token", "", "reset token from the link")
	secret := fs.String("secret", "", "new password")
	confirm := fs.String("confirm", "", "new password confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow := auth.NewResetPasswordFlow(c.remote,
		auth.WithNavigator(c.navigator()),
		auth.WithFlowLogger(c.logger.With("reset")),
	)
	return c.report(flow.Submit(ctx, auth.ResetPasswordForm{
		Token:        *token,
		Secret:       *secret,
		Confirmation: *confirm,
	}))
}

func (c *client) open(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("open takes one path")
	}

	d := c.guard.Check(c.sessions.Current(), args[0])
	if d.Allowed() {
		fmt.Fprintf(c.out, "%s: allowed\n", args[0])
		return nil
	}
	fmt.Fprintf(c.out, "%s: %s -> %s\n", args[0], d.Outcome, d.Redirect)
	return nil
}

func (c *client) report(res auth.Result, err error) error {
	if res.Message != "" {
		fmt.Fprintln(c.out, res.Message)
	}
	if err != nil {
		return fmt.Errorf("%s", res.Status)
	}
	return nil
}

// Command mealplanner is a CLI client for the meal planner service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/and161185/meal-planner/internal/client"
	"github.com/and161185/meal-planner/internal/config"
	"github.com/and161185/meal-planner/internal/planner"
	"github.com/and161185/meal-planner/internal/remote"
	"github.com/and161185/meal-planner/internal/session"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// app holds what one invocation wires together. env survives between
// invocations when a test runs several commands on the same app.
type app struct {
	cfgPath   string
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
	local     bool
	debug     bool

	cfg *config.Config
	log *zap.Logger
	env *env

	conn *grpc.ClientConn
	sess *session.Session
	sync *planner.Syncer
	plan *planner.Planner
}

// env is the backend pair a session runs against.
type env struct {
	provider session.Provider
	signUp   signUpper
	remote   remote.Client
}

type signUpper interface {
	SignUp(ctx context.Context, email, password, displayName string) error
}

// remoteSignUp adapts *client.Client to signUpper.
type remoteSignUp struct{ c *client.Client }

func (r remoteSignUp) SignUp(ctx context.Context, email, password, displayName string) error {
	_, err := r.c.SignUp(ctx, email, password, displayName)
	return err
}

func (a *app) setup(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if a.log == nil {
		a.log = zap.NewNop()
		if a.debug {
			l, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			a.log = l
		}
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Client.Addr = a.addr
	}
	if flags.Changed("cacert") {
		cfg.Client.CACert = a.caPath
	}
	if flags.Changed("insecure") {
		cfg.Client.Insecure = a.insecure
	}
	if flags.Changed("plaintext") {
		cfg.Client.Plaintext = a.plaintext
	}
	a.cfg = cfg

	if a.env == nil {
		if a.local {
			p := newLocalProvider(a.log)
			a.env = &env{provider: p, signUp: p, remote: remote.NewMemory(nil)}
		} else {
			conn, err := client.Dial(ctx, cfg.Client)
			if err != nil {
				return fmt.Errorf("dial %s: %w", cfg.Client.Addr, err)
			}
			a.conn = conn
			c := client.New(conn, client.Options{
				Store:          client.NewTokenStore(cfg.Client.TokenFile),
				RequestTimeout: cfg.Client.RequestTimeout.Duration,
				Secure:         !cfg.Client.Plaintext,
				Log:            a.log,
			})
			if _, err := c.Restore(ctx); err != nil {
				return fmt.Errorf("restore session: %w", err)
			}
			a.env = &env{provider: c, signUp: remoteSignUp{c}, remote: c}
		}
	}

	a.sess = session.New(a.env.provider, a.log)
	a.sess.Start()
	cmd.SetContext(session.WithSession(ctx, a.sess))
	return nil
}

// planner starts following the signed-in user's collections.
func (a *app) planner(cmd *cobra.Command) (*planner.Planner, error) {
	if a.plan != nil {
		return a.plan, nil
	}
	if !session.MustFromContext(cmd.Context()).IsAuthenticated() {
		return nil, errNotSignedIn
	}
	store := planner.NewStore(a.env.remote, a.log)
	a.sync = planner.NewSyncer(store, a.log)
	a.sync.Start(cmd.Context(), a.sess)
	a.plan = planner.New(store)
	return a.plan, nil
}

func (a *app) close() {
	if a.sync != nil {
		a.sync.Stop()
		a.sync, a.plan = nil, nil
	}
	if a.sess != nil {
		a.sess.Stop()
		a.sess = nil
	}
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn, a.env = nil, nil
	}
}

var errNotSignedIn = errors.New("not signed in (run login first)")

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "mealplanner",
		Short:         "Plan a week of meals from your recipes",
		Version:       fmt.Sprintf("%s (%s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.close()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default $"+config.EnvPath+")")
	pf.StringVar(&a.addr, "addr", "", "server address")
	pf.StringVar(&a.caPath, "cacert", "", "CA cert (PEM)")
	pf.BoolVar(&a.insecure, "insecure", false, "skip certificate verification (dev)")
	pf.BoolVar(&a.plaintext, "plaintext", false, "connect without TLS (dev server)")
	pf.BoolVar(&a.local, "local", false, "use an in-process store instead of the server")
	pf.BoolVar(&a.debug, "debug", false, "log to stderr")

	root.AddCommand(
		signUpCmd(a),
		loginCmd(a),
		logoutCmd(),
		whoamiCmd(),
		passwordCmd(),
		recipesCmd(a),
		weekCmd(a),
		mealsCmd(a),
	)
	return root
}

// describe renders err for the terminal, keeping rpc codes visible.
func describe(err error) string {
	if s, ok := status.FromError(err); ok && s.Code() != 0 {
		return fmt.Sprintf("rpc error: code=%s msg=%s", s.Code(), s.Message())
	}
	return err.Error()
}

// main dispatches subcommands and tears the connection down on exit.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

// Command authlink-cli is a terminal client for an authlink server. The
// refresh cookie is persisted under the config directory, so a session
// started with "login" survives restarts: every command begins with the
// silent refresh a browser would do on page load.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/panyam/authlink"
	"github.com/panyam/authlink/client"
	"github.com/panyam/authlink/client/stores/fs"
)

const appName = "authlink"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	server    string
	configDir string
	colorMode string
	debug     bool
	email     string
	password  string
	name      string
	timeout   time.Duration
}

func run() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Could not load .env file", "error", err)
	}

	var opts options
	flagSet := pflag.NewFlagSet("authlink-cli", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.server, "server", "s", "", "server URL (default $AUTHLINK_SERVER_URL or "+authlink.DefaultServerURL+")")
	flagSet.StringVar(&opts.configDir, "config-dir", "", "directory holding cookies.json (default ~/.config/"+appName+")")
	flagSet.StringVar(&opts.colorMode, "color", "auto", "color output: auto, always, never")
	flagSet.BoolVar(&opts.debug, "debug", false, "log pipeline events to stderr")
	flagSet.StringVarP(&opts.email, "email", "e", "", "account email (login, register)")
	flagSet.StringVarP(&opts.password, "password", "p", "", "account password (default $AUTHLINK_PASSWORD, else prompt)")
	flagSet.StringVar(&opts.name, "name", "", "display name (register)")
	flagSet.DurationVar(&opts.timeout, "timeout", 30*time.Second, "overall command timeout")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	args := flagSet.Args()
	if len(args) != 1 {
		printHelp(flagSet)
		return fmt.Errorf("expected exactly one command")
	}

	useColors, err := resolveColors(opts.colorMode)
	if err != nil {
		return err
	}
	out := newPrinter(useColors)

	c, jar, err := newClient(&opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	err = runCommand(ctx, args[0], c, jar, &opts, out)
	// any refresh during the command may have rotated the cookie
	if saveErr := jar.Save(); saveErr != nil && err == nil {
		err = fmt.Errorf("failed to save cookies: %w", saveErr)
	}
	return err
}

func runCommand(ctx context.Context, command string, c *client.AuthClient, jar *fs.FSCookieJar, opts *options, out *printer) error {
	switch command {
	case "login":
		return cmdLogin(ctx, c, opts, out)
	case "register":
		return cmdRegister(ctx, c, opts, out)
	case "whoami":
		return cmdWhoami(ctx, c, out)
	case "status":
		return cmdStatus(ctx, c, jar, out)
	case "token":
		return cmdToken(ctx, c)
	case "logout":
		return cmdLogout(ctx, c, out)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func newClient(opts *options) (*client.AuthClient, *fs.FSCookieJar, error) {
	cfg, err := authlink.ConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	if opts.server != "" {
		cfg.ServerURL = opts.server
	}

	level := slog.LevelError
	if opts.debug {
		level = slog.LevelDebug
	}
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cookiePath := ""
	if opts.configDir != "" {
		cookiePath = filepath.Join(opts.configDir, "cookies.json")
	}
	jar, err := fs.NewFSCookieJar(cookiePath, appName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cookie jar: %w", err)
	}

	c := client.NewAuthClient(cfg.ServerURL,
		client.WithConfig(cfg),
		client.WithCookieJar(jar),
		client.WithInterceptors(client.RequestIDInterceptor()),
	)
	return c, jar, nil
}

func cmdLogin(ctx context.Context, c *client.AuthClient, opts *options, out *printer) error {
	email, password, err := credentials(opts)
	if err != nil {
		return err
	}
	user, err := c.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	out.Success("Logged in to %s as %s", c.ServerURL(), user.Email)
	return nil
}

func cmdRegister(ctx context.Context, c *client.AuthClient, opts *options, out *printer) error {
	email, password, err := credentials(opts)
	if err != nil {
		return err
	}
	user, err := c.Register(ctx, opts.name, email, password)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	out.Success("Registered %s (id %d). Run login to start a session.", user.Email, user.ID)
	return nil
}

func cmdWhoami(ctx context.Context, c *client.AuthClient, out *printer) error {
	if !bootstrap(ctx, c, out) {
		return fmt.Errorf("not logged in to %s", c.ServerURL())
	}
	user, err := c.Me(ctx)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("server does not recognize this session")
	}
	fmt.Fprintf(out.out, "%s <%s>\n", user.Name, user.Email)
	return nil
}

func cmdStatus(ctx context.Context, c *client.AuthClient, jar *fs.FSCookieJar, out *printer) error {
	loggedIn := bootstrap(ctx, c, out)
	session := c.Session()

	fmt.Fprintf(out.out, "%s %s\n", out.Status(loggedIn), c.ServerURL())
	out.Field("logged in", loggedIn)
	if loggedIn {
		out.Field("user id", session.UserID())
		if exp := session.Validator().ExpiresAt(session.Store().Get()); !exp.IsZero() {
			out.Field("expires", exp.Local().Format(time.RFC3339))
		}
	}
	out.Field("cookies", jar.Path())
	if servers := jar.ListServers(); len(servers) > 0 {
		out.Field("servers", strings.Join(servers, ", "))
	}
	return nil
}

func cmdToken(ctx context.Context, c *client.AuthClient) error {
	if err := c.Bootstrap(ctx); err != nil {
		return fmt.Errorf("no access token: %w", err)
	}
	token, err := c.GetToken(ctx)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func cmdLogout(ctx context.Context, c *client.AuthClient, out *printer) error {
	if !bootstrap(ctx, c, out) {
		out.Warning("Not logged in to %s", c.ServerURL())
	}
	if err := c.Logout(ctx); err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	out.Success("Logged out of %s", c.ServerURL())
	return nil
}

// bootstrap runs the startup refresh and reports whether a session exists.
// A network failure is shown as a warning; a rejected cookie just means
// logged out.
func bootstrap(ctx context.Context, c *client.AuthClient, out *printer) bool {
	if err := c.Bootstrap(ctx); err != nil && !authlink.IsTerminal(err) {
		out.Warning("Could not reach %s: %v", c.ServerURL(), err)
	}
	return c.IsLoggedIn()
}

func credentials(opts *options) (email, password string, err error) {
	reader := bufio.NewReader(os.Stdin)
	email = opts.email
	if email == "" {
		if email, err = prompt(reader, "Email: "); err != nil {
			return "", "", err
		}
	}
	password = opts.password
	if password == "" {
		password = os.Getenv("AUTHLINK_PASSWORD")
	}
	if password == "" {
		if password, err = prompt(reader, "Password: "); err != nil {
			return "", "", err
		}
	}
	return email, password, nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Fprint(os.Stderr, label)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `authlink-cli: terminal client for an authlink server.

Usage:
  authlink-cli [flags] <command>

Commands:
  login      log in and store the refresh cookie
  register   create an account
  whoami     show the current user
  status     show session state
  token      print a valid access token
  logout     end the session and drop the refresh cookie

Flags:
%s`, flagSet.FlagUsages())
}

package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"reportdesk/internal/apierr"
	"reportdesk/internal/app"
	"reportdesk/internal/config"
	"reportdesk/internal/logging"
	"reportdesk/internal/reports"
	"reportdesk/internal/session"
	"reportdesk/internal/users"
)

const usage = `usage: reportdesk [-server URL] [-v] <command> [args]

commands:
  login [-email E] [-password P]        sign in
  register [-email E] [-password P]     create a USER account and sign in
  logout                                forget the stored session
  whoami                                show the signed-in account
  reports                               list your reports
  report <id>                           show one report
  upload -file PATH -type TYPE [-name N] [-date YYYY-MM-DD]
  advance <id> [-summary S]             move a report to its next status
  status <id> <STATUS> [-summary S]     set a report status
  delete-report <id>                    delete a report
  users                                 list accounts (admin)
  create-user -email E [-password P] [-role USER|ADMIN]
  delete-user <id>                      delete an account (admin)
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("reportdesk", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	server := fs.String("server", "", "Override the API base URL")
	verbose := fs.Bool("v", false, "Debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *server != "" {
		cfg.APIBaseURL = strings.TrimRight(*server, "/")
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer a.Close()

	c := &cli{app: a, in: bufio.NewReader(stdin), out: stdout}
	if err := c.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Fprintf(stderr, "%s\n\n%s", ue, usage)
			return 2
		}
		fmt.Fprintf(stderr, "error: %s\n", message(err))
		return 1
	}
	return 0
}

type usageError string

func (u usageError) Error() string { return string(u) }

// message prefers the user-facing text of an *apierr.Error.
func message(err error) string {
	var e *apierr.Error
	if errors.As(err, &e) {
		return e.Message
	}
	if errors.Is(err, app.ErrBusy) {
		return "a request is already in progress"
	}
	return err.Error()
}

type cli struct {
	app *app.App
	in  *bufio.Reader
	out io.Writer
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(ctx, args)
	case "register":
		return c.register(ctx, args)
	case "logout":
		if err := c.app.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "Logged out.")
		return nil
	case "whoami":
		s, err := c.app.Whoami(ctx)
		if err != nil {
			return err
		}
		return app.RenderSession(c.out, s)
	case "reports":
		d, err := c.app.Dashboard(ctx)
		if err != nil {
			return err
		}
		return d.Render(c.out)
	case "report":
		id, _, err := idArg(args)
		if err != nil {
			return err
		}
		d, err := c.app.ReportDetail(ctx, id)
		if err != nil {
			return err
		}
		return d.Render(c.out)
	case "upload":
		return c.upload(ctx, args)
	case "advance":
		return c.advance(ctx, args)
	case "status":
		return c.status(ctx, args)
	case "delete-report":
		id, _, err := idArg(args)
		if err != nil {
			return err
		}
		d, err := c.app.ReportDetail(ctx, id)
		if err != nil {
			return err
		}
		if err := d.Delete(ctx); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "Report %d deleted.\n", id)
		return nil
	case "users":
		m, err := c.app.UserManagement(ctx)
		if err != nil {
			return err
		}
		return m.Render(c.out)
	case "create-user":
		return c.createUser(ctx, args)
	case "delete-user":
		id, _, err := idArg(args)
		if err != nil {
			return err
		}
		m, err := c.app.UserManagement(ctx)
		if err != nil {
			return err
		}
		if err := m.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "User %d deleted.\n", id)
		return nil
	default:
		return usageError(fmt.Sprintf("unknown command %q", cmd))
	}
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "Email")
	password := fs.String("password", os.Getenv("REPORTDESK_PASSWORD"), "Password")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *email == "" {
		*email = c.prompt("Email: ")
	}
	if *password == "" {
		*password = c.prompt("Password: ")
	}
	s, err := c.app.Login(ctx, app.LoginForm{Email: *email, Password: *password})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Logged in as %s (%s).\n", s.Email, s.Role)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "Email")
	password := fs.String("password", os.Getenv("REPORTDESK_PASSWORD"), "Password")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *email == "" {
		*email = c.prompt("Email: ")
	}
	confirm := *password
	if *password == "" {
		*password = c.prompt("Password: ")
		confirm = c.prompt("Confirm password: ")
	}
	s, err := c.app.Register(ctx, app.RegisterForm{Email: *email, Password: *password, ConfirmPassword: confirm})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Account created. Logged in as %s.\n", s.Email)
	return nil
}

func (c *cli) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ContinueOnError)
	file := fs.String("file", "", "File to upload")
	name := fs.String("name", "", "Report name (default: file name)")
	typ := fs.String("type", "", "Report type: "+typeList())
	date := fs.String("date", "", "Report date YYYY-MM-DD (default: today)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	d, err := c.app.Dashboard(ctx)
	if err != nil {
		return err
	}
	r, err := d.Upload(ctx, app.UploadForm{Path: *file, Name: *name, Type: *typ, ReportDate: *date})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Uploaded report %d (%s).\n\n", r.ID, r.Name)
	return d.Render(c.out)
}

func (c *cli) advance(ctx context.Context, args []string) error {
	id, rest, err := idArg(args)
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("advance", flag.ContinueOnError)
	summary := fs.String("summary", "", "Summary, recorded when completing")
	if err := fs.Parse(rest); err != nil {
		return usageError(err.Error())
	}
	d, err := c.app.ReportDetail(ctx, id)
	if err != nil {
		return err
	}
	if err := d.Advance(ctx, *summary); err != nil {
		return err
	}
	return d.Render(c.out)
}

func (c *cli) status(ctx context.Context, args []string) error {
	id, rest, err := idArg(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return usageError("status needs a target status")
	}
	to, ok := reports.ParseStatus(rest[0])
	if !ok {
		return apierr.Validationf("Unknown status %q", rest[0])
	}
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	summary := fs.String("summary", "", "Summary, recorded when completing")
	if err := fs.Parse(rest[1:]); err != nil {
		return usageError(err.Error())
	}
	d, err := c.app.ReportDetail(ctx, id)
	if err != nil {
		return err
	}
	if err := d.SetStatus(ctx, to, *summary); err != nil {
		return err
	}
	return d.Render(c.out)
}

func (c *cli) createUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "Email")
	password := fs.String("password", "", "Password")
	role := fs.String("role", string(session.RoleUser), "USER or ADMIN")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *password == "" {
		*password = c.prompt("Password: ")
	}
	m, err := c.app.UserManagement(ctx)
	if err != nil {
		return err
	}
	u, err := m.Create(ctx, users.CreateInput{
		Email:    *email,
		Password: *password,
		Role:     session.Role(strings.ToUpper(*role)),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created %s (%s).\n\n", u.Email, u.Role)
	return m.Render(c.out)
}

func (c *cli) prompt(label string) string {
	fmt.Fprint(c.out, label)
	line, _ := c.in.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func idArg(args []string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, usageError("missing id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, usageError(fmt.Sprintf("invalid id %q", args[0]))
	}
	return id, args[1:], nil
}

func typeList() string {
	names := make([]string, len(reports.Types))
	for i, t := range reports.Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kong"
	"github.com/denismitr/bakery"
	"github.com/logrusorgru/aurora/v3"
	"github.com/pkg/errors"
)

const appName = "bakery"

var ErrNotParsed = errors.New("command line was not parsed")

type (
	// Env is handed to every command when it runs
	Env struct {
		Stdout     io.Writer
		ConfigFile string
		Debug      bool
		Timeout    time.Duration
	}

	// Commands is the command line interface of bakery
	Commands struct {
		Init     Init     `kong:"cmd,help='Create a configuration file stub.'"`
		Create   Create   `kong:"cmd,help='Create new migration files.'"`
		Migrate  Migrate  `kong:"cmd,help='Run pending migrations.'"`
		Rollback Rollback `kong:"cmd,help='Roll back the last batch of migrations.'"`
		Reset    Reset    `kong:"cmd,help='Roll back all installed migrations.'"`
		Refresh  Refresh  `kong:"cmd,help='Roll back and migrate again.'"`
		Status   Status   `kong:"cmd,help='Show installed, pending and stale migrations.'"`
		Clean    Clean    `kong:"cmd,help='Remove stale migrations from the log.'"`

		ConfigFile string        `kong:"short='c',default='${configFile}',help='Path to the bakery configuration file.'"`
		Debug      bool          `kong:"help='Print debug messages and executed SQL.'"`
		Timeout    time.Duration `kong:"default='120s',help='Maximum duration of a command.'"`

		kong *kong.Kong
		kctx *kong.Context
	}

	Init struct {
		Force bool `kong:"help='Overwrite an existing configuration file.'"`
	}

	Create struct {
		Name       string `kong:"arg,help='Name of the migration.'"`
		NoRollback bool   `kong:"help='Do not create a rollback file.'"`
	}

	Migrate struct {
		Step    bool `kong:"help='Log every migration with its own batch.'"`
		Pretend bool `kong:"help='Print the SQL instead of running it.'"`
	}

	Rollback struct {
		Steps     int    `kong:"default='1',help='Number of batches to roll back.'"`
		Migration string `kong:"help='Roll back only this migration.'"`
		Pretend   bool   `kong:"help='Print the SQL instead of running it.'"`
	}

	Reset struct {
		Hard    bool `kong:"help='Drop the migrations log without running rollbacks.'"`
		Pretend bool `kong:"help='Print the SQL instead of running it.'"`
	}

	Refresh struct {
		Steps int  `kong:"default='1',help='Number of batches to roll back before migrating.'"`
		Step  bool `kong:"help='Log every migration with its own batch.'"`
	}

	Status struct{}

	Clean struct{}
)

// NewCommands initializes the command line parser
func NewCommands(configFile string) (*Commands, error) {
	c := &Commands{}
	parser, err := kong.New(c,
		kong.Name(appName),
		kong.Description("Database migrations with dependencies between them."),
		kong.UsageOnError(),
		kong.DefaultEnvars("BAKERY"),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		kong.Vars{
			"configFile": configFile,
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "could not create the command line parser")
	}

	c.kong = parser

	return c, nil
}

// Parse must be called before Execute
func (c *Commands) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return errors.Wrap(err, "could not parse arguments")
	}

	c.kctx = kctx

	return nil
}

// Command returns the name of the parsed command
func (c *Commands) Command() string {
	if c.kctx == nil {
		return ""
	}

	return c.kctx.Command()
}

// Execute runs the parsed command
func (c *Commands) Execute(stdout io.Writer) error {
	if c.kctx == nil {
		return ErrNotParsed
	}

	return c.kctx.Run(&Env{
		Stdout:     stdout,
		ConfigFile: c.ConfigFile,
		Debug:      c.Debug,
		Timeout:    c.Timeout,
	})
}

func (cmd *Init) Run(env *Env) error {
	if FileExists(env.ConfigFile) && !cmd.Force {
		return errors.Errorf("configuration file %s already exists", env.ConfigFile)
	}

	if err := InitCfg(env.ConfigFile); err != nil {
		return err
	}

	env.success("created %s", env.ConfigFile)
	return nil
}

func (cmd *Create) Run(env *Env) error {
	return env.withApp(func(_ context.Context, app *App) error {
		key, err := app.CreateMigration(cmd.Name, !cmd.NoRollback)
		if err != nil {
			return err
		}

		env.success("created migration %s", key)
		return nil
	})
}

func (cmd *Migrate) Run(env *Env) error {
	return env.withApp(func(ctx context.Context, app *App) error {
		migrated, pretended, err := app.Migrate(ctx, ActionConfig{StepMode: cmd.Step, Pretend: cmd.Pretend})
		if err != nil {
			return err
		}

		if cmd.Pretend {
			env.printPretended(pretended)
			return nil
		}

		env.done("migrated", migrated)
		return nil
	})
}

func (cmd *Rollback) Run(env *Env) error {
	return env.withApp(func(ctx context.Context, app *App) error {
		rolledBack, pretended, err := app.Rollback(ctx, ActionConfig{
			Steps:     cmd.Steps,
			Migration: cmd.Migration,
			Pretend:   cmd.Pretend,
		})
		if err != nil {
			return err
		}

		if cmd.Pretend {
			env.printPretended(pretended)
			return nil
		}

		env.done("rolled back", rolledBack)
		return nil
	})
}

func (cmd *Reset) Run(env *Env) error {
	return env.withApp(func(ctx context.Context, app *App) error {
		rolledBack, pretended, err := app.Reset(ctx, cmd.Pretend, cmd.Hard)
		if err != nil {
			return err
		}

		switch {
		case cmd.Pretend:
			env.printPretended(pretended)
		case cmd.Hard:
			env.success("migrations log dropped")
		default:
			env.done("rolled back", rolledBack)
		}

		return nil
	})
}

func (cmd *Refresh) Run(env *Env) error {
	return env.withApp(func(ctx context.Context, app *App) error {
		rolledBack, migrated, err := app.Refresh(ctx, ActionConfig{Steps: cmd.Steps, StepMode: cmd.Step})
		if err != nil {
			return err
		}

		env.done("rolled back", rolledBack)
		env.done("migrated", migrated)
		return nil
	})
}

func (cmd *Status) Run(env *Env) error {
	return env.withApp(func(ctx context.Context, app *App) error {
		status, err := app.Status(ctx)
		if err != nil {
			return err
		}

		return renderTable(statusHeader, statusRows(status), env.Stdout)
	})
}

func (cmd *Clean) Run(env *Env) error {
	return env.withApp(func(ctx context.Context, app *App) error {
		removed, err := app.Clean(ctx)
		if err != nil {
			return err
		}

		env.done("removed", removed)
		return nil
	})
}

func (env *Env) withApp(fn func(ctx context.Context, app *App) error) (err error) {
	app, closer, err := NewFromYaml(env.ConfigFile, env.Debug)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := closer(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), env.Timeout)
	defer cancel()

	return fn(ctx, app)
}

func (env *Env) success(format string, args ...interface{}) {
	fmt.Fprintln(env.Stdout, aurora.Green(appName+":"), fmt.Sprintf(format, args...))
}

func (env *Env) done(verb string, identifiers []string) {
	if len(identifiers) == 0 {
		env.success("nothing %s", verb)
		return
	}

	for _, id := range identifiers {
		env.success("%s %s", verb, id)
	}
}

func (env *Env) printPretended(pretended []bakery.Pretended) {
	if len(pretended) == 0 {
		env.success("nothing to do")
		return
	}

	for _, p := range pretended {
		fmt.Fprintln(env.Stdout, aurora.Cyan("-- "+p.Identifier))
		for _, q := range p.Queries {
			fmt.Fprintln(env.Stdout, q)
		}
	}
}

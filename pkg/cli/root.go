package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(env *Env, args []string) error
	Subcommands map[string]*Command
}

// Env carries the output streams and defaults shared by every command
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	// Server is the default API base URL
	Server string
	// PostgresURL is the default database for migrate
	PostgresURL string
}

// DefaultEnv writes to the process streams and reads NURTURE_SERVER and
// NURTURE_POSTGRES_URL
func DefaultEnv() *Env {
	server := os.Getenv("NURTURE_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	return &Env{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Server:      server,
		PostgresURL: os.Getenv("NURTURE_POSTGRES_URL"),
	}
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "nurture",
		Description: "Nurture analytics CLI",
		Subcommands: make(map[string]*Command),
	}

	for _, cmd := range []*Command{
		newWindowsCommand(),
		newSnapshotCommand(),
		newRefreshCommand(),
		newExportCommand(),
		newSchemaCommand(),
		newMigrateCommand(),
	} {
		root.Subcommands[cmd.Name] = cmd
	}
	return root
}

// Execute runs the subcommand named by args[0]
func (c *Command) Execute(env *Env, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		c.usage(env.Stdout)
		return nil
	}

	if sub, ok := c.Subcommands[args[0]]; ok {
		return sub.Run(env, args[1:])
	}
	return fmt.Errorf("unknown command: %s", args[0])
}

func (c *Command) usage(w io.Writer) {
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\n", c.Name)
	fmt.Fprintf(w, "Commands:\n")

	names := make([]string, 0, len(c.Subcommands))
	for name := range c.Subcommands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, c.Subcommands[name].Description)
	}
}

func newFlagSet(env *Env, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	return fs
}

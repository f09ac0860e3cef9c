// Command emsctl manages the EMS database and talks to the EMS API.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

type command struct {
	name    string
	summary string
	run     func(args []string) error
}

var commands = []command{
	{"db", "Database tooling (migrate, seed, admin-password, admin-email, expire-invitations)", handleDB},
	{"auth", "Session commands (login, first-login, logout, who)", handleAuth},
	{"admin", "ADMIN/HR commands (invite, invitations, pending, approve, reject)", handleAdmin},
	{"employee", "Employee commands (profile, documents, submit)", handleEmployee},
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(args[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
	printUsage()
	return 1
}

func printUsage() {
	var b strings.Builder
	b.WriteString("EMS operator CLI\n\nUsage:\n  emsctl <command> <subcommand> [options]\n\nCommands:\n")
	tw := tabwriter.NewWriter(&b, 0, 0, 3, ' ', 0)
	for _, c := range commands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.summary)
	}
	fmt.Fprintf(tw, "  help\tShow this help message\n")
	_ = tw.Flush()

	b.WriteString(`
Environment:
  EMS_API      API endpoint (default: http://localhost:3001/api)
  DATABASE_*   Database settings for db commands (same as the server)

Examples:
  emsctl db migrate
  emsctl db seed -password 'S3cure-admin'
  emsctl auth login -email admin@intelliod.com -password 'S3cure-admin'
  emsctl admin invite -email new.hire@example.com -name "New Hire"
  emsctl admin approve <onboarding-id> -notes "welcome aboard"
`)
	fmt.Print(b.String())
}

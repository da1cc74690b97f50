// tvbroker announces game events and fans them out to connected viewers.
//
// Subcommands:
//
//	serve     run the broadcast daemon (detaches unless --foreground)
//	dirserv   run the recording directory listing daemon
//	announce  append an event to the queue file, launching the daemon if needed
//	watch     connect to a broadcast endpoint and print every record
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"tvbroker/internal/config"
)

const defaultConfigPath = "tvbroker.yaml"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("missing subcommand")
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "serve":
		return runServe(rest)
	case "dirserv":
		return runDirserv(rest)
	case "announce":
		return runAnnounce(rest)
	case "watch":
		return runWatch(rest)
	case "help", "-h", "--help":
		printUsage()
		return nil
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand %q", cmd)
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `tvbroker: game event notification broker.

Usage:
  tvbroker serve    [--config PATH] [--foreground]
  tvbroker dirserv  [--config PATH] [--foreground]
  tvbroker announce [--config PATH] [--tv SPEC] [--cancel] [--nuke] key=value...
  tvbroker watch    [ADDR]

Examples:
  # Announce a game start; the broadcast daemon is launched if not running
  tvbroker announce name=alice event=start --tv 'x2:<10'

  # Follow the stream
  tvbroker watch 127.0.0.1:21976
`)
}

// parseFlags parses args on fs, printing help on -h. It reports done=true
// when the command should return without running.
func parseFlags(fs *pflag.FlagSet, args []string) (done bool, err error) {
	fs.BoolP("help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return true, err
	}
	if help, _ := fs.GetBool("help"); help {
		fs.SetOutput(os.Stderr)
		fs.PrintDefaults()
		return true, nil
	}
	return false, nil
}

// loadConfig resolves path to an absolute one so a detached child started
// elsewhere reads the same file.
func loadConfig(path string) (string, *config.Config, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", nil, err
	}
	cfg, err := config.NewConfigManager(abs).Load()
	if err != nil {
		return "", nil, err
	}
	return abs, cfg, nil
}

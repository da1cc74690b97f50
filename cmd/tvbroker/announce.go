package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"tvbroker/internal/daemon"
	"tvbroker/internal/queuefile"
	"tvbroker/internal/record"
	"tvbroker/internal/tvopts"
)

func runAnnounce(args []string) error {
	var (
		cfgPath  string
		tvSpec   string
		cancel   bool
		nuke     bool
		noLaunch bool
	)
	fs := pflag.NewFlagSet("announce", pflag.ContinueOnError)
	fs.StringVar(&cfgPath, "config", defaultConfigPath, "path to config (yaml or json)")
	fs.StringVar(&tvSpec, "tv", "", "TV options, e.g. 'x2:<10' or 'cancel'")
	fs.BoolVar(&cancel, "cancel", false, "cancel the current broadcast")
	fs.BoolVar(&nuke, "nuke", false, "clear the viewer's screen")
	fs.BoolVar(&noLaunch, "no-launch", false, "do not start the broadcast daemon")
	if done, err := parseFlags(fs, args); done {
		return err
	}

	fields, err := parseFields(fs.Args())
	if err != nil {
		return err
	}
	opts, err := tvopts.ParseArgs(tvSpec, cancel, nuke)
	if err != nil {
		return err
	}
	opts.Merge(fields)
	if len(fields) == 0 {
		return fmt.Errorf("announce: nothing to announce")
	}

	abs, cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if !noLaunch {
		// A running daemon makes this a no-op: the child exits on the lock.
		if _, err := daemon.Detach("serve", "--config", abs); err != nil {
			return err
		}
	}

	ctx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	rec := record.New(time.Now(), record.EncodeFields(fields))
	return queuefile.New(cfg.Broadcast.QueueFile).Append(ctx, rec)
}

func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("announce: expected key=value, got %q", a)
		}
		fields[k] = v
	}
	return fields, nil
}

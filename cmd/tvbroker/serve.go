package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"tvbroker/internal/app"
	"tvbroker/internal/daemon"
	"tvbroker/internal/dirserv"
)

// bootstrap detaches (unless foreground or already detached), takes the
// singleton lock and redirects output. ok=false means another instance owns
// the lock, or this is the parent of a detached child; either way the caller
// exits successfully.
func bootstrap(sub, cfgPath, lockFile, logFile string, foreground bool) (lock *daemon.Lock, ok bool, err error) {
	if !foreground && !daemon.Detached() {
		if _, err := daemon.Detach(sub, "--config", cfgPath); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	lock, err = daemon.AcquireLock(lockFile)
	if errors.Is(err, daemon.ErrAlreadyRunning) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !foreground {
		if _, err := daemon.RedirectOutput(logFile); err != nil {
			_ = lock.Release()
			return nil, false, err
		}
	}
	return lock, true, nil
}

func runServe(args []string) error {
	var (
		cfgPath    string
		foreground bool
	)
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.StringVar(&cfgPath, "config", defaultConfigPath, "path to config (yaml or json)")
	fs.BoolVar(&foreground, "foreground", false, "stay attached to the terminal")
	if done, err := parseFlags(fs, args); done {
		return err
	}

	abs, cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	lock, ok, err := bootstrap("serve", abs, cfg.Broadcast.LockFile, cfg.Broadcast.LogFile, foreground)
	if err != nil || !ok {
		return err
	}
	defer func() { _ = lock.Release() }()

	a, err := app.New(abs)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		return err
	}

	reason := app.StopUnknown
	select {
	case sig := <-sigCh:
		reason = app.StopSIGTERM
		if sig == os.Interrupt {
			reason = app.StopSIGINT
		}
	case <-a.Done():
		reason = app.StopFatalError
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if reason == app.StopFatalError {
		return a.Err()
	}
	return nil
}

func runDirserv(args []string) error {
	var (
		cfgPath    string
		foreground bool
	)
	fs := pflag.NewFlagSet("dirserv", pflag.ContinueOnError)
	fs.StringVar(&cfgPath, "config", defaultConfigPath, "path to config (yaml or json)")
	fs.BoolVar(&foreground, "foreground", false, "stay attached to the terminal")
	if done, err := parseFlags(fs, args); done {
		return err
	}

	abs, cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	// No recordings, nothing to list.
	if dirserv.CheckRoot(cfg.Listing.Root) != nil {
		return nil
	}
	lock, ok, err := bootstrap("dirserv", abs, cfg.Listing.LockFile, cfg.Listing.LogFile, foreground)
	if err != nil || !ok {
		return err
	}
	defer func() { _ = lock.Release() }()

	l, err := app.NewListing(abs)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	err = l.Run(ctx)
	if errors.Is(err, dirserv.ErrNoRoot) {
		return nil
	}
	return err
}

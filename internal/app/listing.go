package app

import (
	"context"
	"time"

	"tvbroker/internal/config"
	"tvbroker/internal/daemon"
	"tvbroker/internal/dirserv"
	"tvbroker/pkg/logx"
)

// Listing is the directory-listing daemon. It shares the config file with
// the broadcast daemon but has no reload or ops surface.
type Listing struct {
	cfg  *config.Config
	log  logx.Logger
	logs *logx.Service
	svc  *dirserv.Service
}

func NewListing(cfgPath string) (*Listing, error) {
	cfg, err := config.NewConfigManager(cfgPath).Load()
	if err != nil {
		return nil, err
	}
	logSvc, log := logx.New(mapLoggingConfig(cfg))
	return &Listing{
		cfg:  cfg,
		log:  log.With(logx.String("comp", "listing")),
		logs: logSvc,
		svc:  dirserv.New(mapListingConfig(cfg), log),
	}, nil
}

func (l *Listing) Config() *config.Config { return l.cfg }

// Run serves until ctx ends. A missing recordings root returns
// dirserv.ErrNoRoot before binding.
func (l *Listing) Run(ctx context.Context) error {
	defer func() { _ = l.logs.Close() }()
	if err := dirserv.CheckRoot(l.cfg.Listing.Root); err != nil {
		return err
	}
	ln, err := l.svc.Listen()
	if err != nil {
		return err
	}
	daemon.NotifyReady(l.log)

	err = l.svc.Serve(ctx, ln)
	daemon.NotifyStopping(l.log)

	stopCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if serr := l.svc.Stop(stopCtx); serr != nil {
		l.log.Warn("listing stop incomplete", logx.Err(serr))
	}
	return err
}

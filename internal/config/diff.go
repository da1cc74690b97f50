package config

import (
	"sort"
	"strings"

	"tvbroker/pkg/logx"
)

// Sections that take effect without a restart.
var hotSections = map[string]bool{"logging": true, "ops": true}

// SummarizeConfigChange returns the changed top-level sections (sorted) and
// log fields describing the new values. The ops token is never logged; only
// whether it is set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 5)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Broadcast != newCfg.Broadcast {
		b := newCfg.Broadcast
		changed = append(changed, "broadcast")
		attrs = append(attrs,
			logx.String("broadcast.listen", b.Listen),
			logx.String("broadcast.interval", b.Interval),
			logx.String("broadcast.queue_file", b.QueueFile),
		)
	}

	if oldCfg.Listing != newCfg.Listing {
		l := newCfg.Listing
		changed = append(changed, "listing")
		attrs = append(attrs,
			logx.Bool("listing.enabled", l.Enabled),
			logx.String("listing.listen", l.Listen),
			logx.String("listing.root", l.Root),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		lg := newCfg.Logging
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", lg.Level),
			logx.Bool("logging.console", lg.Console),
			logx.Bool("logging.file_enabled", lg.File.Enabled),
		)
	}

	oldOps, newOps := oldCfg.Ops, newCfg.Ops
	oldOps.Token, newOps.Token = tokenMarker(oldOps.Token), tokenMarker(newOps.Token)
	if oldOps != newOps || oldCfg.Ops.Token != newCfg.Ops.Token {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newOps.Enabled),
			logx.String("ops.addr", newOps.Addr),
			logx.Bool("ops.metrics", newOps.Metrics),
			logx.Bool("ops.pprof", newOps.Pprof),
			logx.Bool("ops.token_set", newOps.Token != ""),
		)
	}

	if oldCfg.History != newCfg.History {
		h := newCfg.History
		changed = append(changed, "history")
		attrs = append(attrs,
			logx.String("history.driver", h.Driver),
			logx.Bool("history.path_set", strings.TrimSpace(h.Path) != ""),
			logx.String("history.retention", h.Retention),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired filters sections that only apply at startup.
func RestartRequired(sections []string) []string {
	var out []string
	for _, s := range sections {
		if !hotSections[s] {
			out = append(out, s)
		}
	}
	return out
}

func tokenMarker(tok string) string {
	if strings.TrimSpace(tok) == "" {
		return ""
	}
	return "set"
}

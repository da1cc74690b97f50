package daemon

import (
	sd "github.com/coreos/go-systemd/v22/daemon"

	"tvbroker/pkg/logx"
)

// NotifyReady tells systemd the listener is bound. Outside systemd it does
// nothing.
func NotifyReady(log logx.Logger) { notify(log, sd.SdNotifyReady) }

func NotifyStopping(log logx.Logger) { notify(log, sd.SdNotifyStopping) }

func notify(log logx.Logger, state string) {
	sent, err := sd.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify sent", logx.String("state", state))
	}
}

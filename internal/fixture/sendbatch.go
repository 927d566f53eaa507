package fixture

import "log/slog"

// Device is the minimal sink contract SendBatch writes through; it is
// satisfied by dmxsink.Device without this package importing it, keeping
// the fixture model transport-agnostic.
type Device interface {
	SetChannel(ch int, v byte)
	Render() error
}

// SendBatch merges every light's pending diff into its device's channel
// buffer, marks each light sent, and renders every device that received at
// least one write. Lights with an empty DiffState are skipped entirely, so
// an idempotent frame renders nothing.
func SendBatch(devices map[string]Device, lights []*Light, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	touched := make(map[string]bool)

	for _, l := range lights {
		if len(l.DiffState) == 0 {
			continue
		}
		dev, ok := devices[l.DeviceName]
		if !ok {
			l.log.Error("unknown device for light", "light", l.Name, "device", l.DeviceName)
			continue
		}
		for ch, v := range l.DMX() {
			dev.SetChannel(ch, v)
		}
		touched[l.DeviceName] = true
		l.MarkSent()
	}

	for name := range touched {
		if err := devices[name].Render(); err != nil {
			// Render failures are the device's own retry/downgrade concern;
			// the fixture layer only logs that a frame was lost.
			log.Error("dmx render failed", "device", name, "error", err)
		}
	}
}

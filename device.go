package amplimix

import (
	"sync"

	"github.com/amplimix/amplimix/amplierr"
)

// DeviceDescription is the engine's current assumption about the platform
// output device. The platform driver itself lives outside this module;
// only the description crosses the boundary.
type DeviceDescription struct {
	ID         uint32        `json:"id"`
	Name       string        `json:"name"`
	SampleRate int           `json:"sampleRate"`
	Channels   ChannelLayout `json:"channels"`
	Format     SampleFormat  `json:"format"`
}

// DeviceState tracks whether the engine is currently being pulled by a
// device callback or paused for reconfiguration.
type DeviceState int

const (
	DeviceStopped DeviceState = iota
	DeviceRunning
	DevicePaused
)

func (s DeviceState) String() string {
	switch s {
	case DeviceStopped:
		return "Stopped"
	case DeviceRunning:
		return "Running"
	case DevicePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// DeviceChangeCallback observes device reconfigurations.
type DeviceChangeCallback func(old, new DeviceDescription)

// deviceMonitor tracks the output device description and pause state, and
// notifies observers on change.
type deviceMonitor struct {
	mu        sync.RWMutex
	device    DeviceDescription
	state     DeviceState
	callbacks []DeviceChangeCallback
}

func newDeviceMonitor(desc DeviceDescription) *deviceMonitor {
	return &deviceMonitor{device: desc, state: DeviceRunning}
}

func (d *deviceMonitor) description() DeviceDescription {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.device
}

func (d *deviceMonitor) deviceState() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *deviceMonitor) setState(s DeviceState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

func (d *deviceMonitor) onChange(cb DeviceChangeCallback) {
	d.mu.Lock()
	d.callbacks = append(d.callbacks, cb)
	d.mu.Unlock()
}

// update swaps the device description. The mixer must be paused first.
func (d *deviceMonitor) update(desc DeviceDescription) error {
	const op = "Engine.UpdateDevice"
	d.mu.Lock()
	if d.state == DeviceRunning {
		d.mu.Unlock()
		return amplierr.New(op, amplierr.InvalidParameter, "device update requires a paused mixer")
	}
	old := d.device
	d.device = desc
	callbacks := append([]DeviceChangeCallback(nil), d.callbacks...)
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb(old, desc)
	}
	return nil
}

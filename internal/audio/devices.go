// Package audio discovers PulseAudio devices, checks microphone readiness, and plays
// interviewer clips on a local sink.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const applicationName = "intervue"

// Kind distinguishes input sources from output sinks.
type Kind string

const (
	KindSource Kind = "source"
	KindSink   Kind = "sink"
)

// Device describes one Pulse source or sink.
type Device struct {
	Kind        Kind
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved device plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

type portInfo struct {
	name      string
	available uint32
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(applicationName),
		pulse.ClientApplicationIconName("audio-headset"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListSources returns Pulse input sources with default and availability metadata.
func ListSources(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var infos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		ports := make([]portInfo, 0, len(info.Ports))
		for _, p := range info.Ports {
			ports = append(ports, portInfo{name: p.Name, available: p.Available})
		}
		devices = append(devices, Device{
			Kind:        KindSource,
			ID:          info.SourceName,
			Description: info.Device,
			State:       deviceStateString(info.State),
			Available:   portAvailable(info.ActivePortName, ports),
			Muted:       info.Mute,
			Default:     info.SourceName == defaultSource.ID(),
		})
	}
	return devices, nil
}

// ListSinks returns Pulse output sinks with default and availability metadata.
func ListSinks(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}

	var infos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		ports := make([]portInfo, 0, len(info.Ports))
		for _, p := range info.Ports {
			ports = append(ports, portInfo{name: p.Name, available: p.Available})
		}
		devices = append(devices, Device{
			Kind:        KindSink,
			ID:          info.SinkName,
			Description: info.Device,
			State:       deviceStateString(info.State),
			Available:   portAvailable(info.ActivePortName, ports),
			Muted:       info.Mute,
			Default:     info.SinkName == defaultSink.ID(),
		})
	}
	return devices, nil
}

// SelectSource resolves input/fallback preferences against live sources.
func SelectSource(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListSources(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList applies selection policy to a pre-fetched device list.
func selectDeviceFromList(devices []Device, input, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio devices found")
	}

	input = strings.TrimSpace(strings.ToLower(input))
	fallback = strings.TrimSpace(strings.ToLower(fallback))

	var defaultDevice, byInput, byFallback *Device
	for i := range devices {
		dev := &devices[i]
		if dev.Default {
			defaultDevice = dev
		}
		if byInput == nil && !isDefaultTerm(input) && deviceMatches(*dev, input) {
			byInput = dev
		}
		if byFallback == nil && !isDefaultTerm(fallback) && deviceMatches(*dev, fallback) {
			byFallback = dev
		}
	}

	primary := defaultDevice
	if !isDefaultTerm(input) {
		if byInput == nil {
			return Selection{}, fmt.Errorf("device %q did not match any device", input)
		}
		primary = byInput
	}
	if primary == nil {
		return Selection{}, errors.New("default audio device is unavailable")
	}
	if primary.Available && !primary.Muted {
		return Selection{Device: *primary}, nil
	}

	reason := "unavailable"
	if primary.Muted {
		reason = "muted"
	}

	alternate := defaultDevice
	if !isDefaultTerm(fallback) {
		if byFallback == nil {
			return Selection{}, fmt.Errorf("device %q is %s and fallback %q not found", primary.ID, reason, fallback)
		}
		alternate = byFallback
	}
	if alternate == nil {
		return Selection{}, fmt.Errorf("device %q is %s and no usable fallback", primary.ID, reason)
	}
	if !alternate.Available {
		return Selection{}, fmt.Errorf("fallback device %q is not available", alternate.ID)
	}
	if alternate.Muted {
		return Selection{}, fmt.Errorf("fallback device %q is muted", alternate.ID)
	}

	return Selection{
		Device:   *alternate,
		Warning:  fmt.Sprintf("device %q is %s; falling back to %q", primary.ID, reason, alternate.ID),
		Fallback: primary.ID != alternate.ID,
	}, nil
}

func isDefaultTerm(term string) bool {
	return term == "" || term == "default"
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}

// deviceStateString maps Pulse device state constants to readable values.
func deviceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// portAvailable maps the active port's availability to a boolean. Devices without
// ports are treated as available.
func portAvailable(active string, ports []portInfo) bool {
	if len(ports) == 0 {
		return true
	}
	for _, port := range ports {
		if port.name != active {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.available == 0 || port.available == 2
	}
	return true
}

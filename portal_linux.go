//go:build linux

package screenrec

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	portalBusName    = "org.freedesktop.portal.Desktop"
	portalObjectPath = "/org/freedesktop/portal/desktop"
	portalScreenCast = "org.freedesktop.portal.ScreenCast"
	propertiesGet    = "org.freedesktop.DBus.Properties.Get"
)

// ProbePortal reads the ScreenCast portal properties from the session bus.
func ProbePortal(ctx context.Context) (PortalInfo, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return PortalInfo{}, fmt.Errorf("portal: session bus: %w", err)
	}
	obj := conn.Object(portalBusName, dbus.ObjectPath(portalObjectPath))

	var info PortalInfo
	for _, p := range []struct {
		name string
		dst  *uint32
	}{
		{"version", &info.Version},
		{"AvailableSourceTypes", &info.SourceTypes},
		{"AvailableCursorModes", &info.CursorModes},
	} {
		if *p.dst, err = portalProperty(ctx, obj, p.name); err != nil {
			return PortalInfo{}, err
		}
	}
	return info, nil
}

func portalProperty(ctx context.Context, obj dbus.BusObject, name string) (uint32, error) {
	call := obj.CallWithContext(ctx, propertiesGet, 0, portalScreenCast, name)
	if call.Err != nil {
		return 0, fmt.Errorf("portal: get %s: %w", name, call.Err)
	}
	var v dbus.Variant
	if err := call.Store(&v); err != nil {
		return 0, fmt.Errorf("portal: get %s: %w", name, err)
	}
	u, ok := v.Value().(uint32)
	if !ok {
		return 0, fmt.Errorf("portal: property %s returned unexpected type %T", name, v.Value())
	}
	return u, nil
}

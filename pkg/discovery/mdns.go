package discovery

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
)

// Advertiser publishes a Device's mDNS service record so peers can discover
// it.
type Advertiser interface {
	Advertise(ctx context.Context, d Device) (func(), error)
}

// Browser watches for AirPlay devices of one dialect appearing or leaving
// the network.
type Browser interface {
	Browse(ctx context.Context, dialect Dialect, onAdd, onRemove func(Device)) error
}

// DNSSDAdvertiser is an Advertiser backed by github.com/brutella/dnssd.
type DNSSDAdvertiser struct {
	responder dnssd.Responder
}

// NewDNSSDAdvertiser creates a DNSSDAdvertiser with a fresh dnssd
// responder.
func NewDNSSDAdvertiser() (*DNSSDAdvertiser, error) {
	rp, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}
	return &DNSSDAdvertiser{responder: rp}, nil
}

// Advertise registers d's service and starts responding to queries on a
// background goroutine. The returned func removes the service.
func (a *DNSSDAdvertiser) Advertise(ctx context.Context, d Device) (func(), error) {
	cfg := dnssd.Config{
		Name: d.Name,
		Port: d.Port,
	}

	switch d.Dialect {
	case DialectLegacy:
		cfg.Type = ServiceTypeLegacy
		cfg.Text = d.RAOP.MarshalTXT()
	case DialectModern:
		cfg.Type = ServiceTypeModern
		cfg.Text = d.AirPlay2.MarshalTXT()
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	handle, err := a.responder.Add(svc)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	go func() {
		_ = a.responder.Respond(ctx)
	}()

	return func() { a.responder.Remove(handle) }, nil
}

// DNSSDBrowser is a Browser backed by github.com/brutella/dnssd.
type DNSSDBrowser struct{}

// NewDNSSDBrowser creates a DNSSDBrowser.
func NewDNSSDBrowser() *DNSSDBrowser { return &DNSSDBrowser{} }

// Browse watches for devices of the given dialect via mDNS, invoking
// onAdd/onRemove as entries appear and disappear.
func (b *DNSSDBrowser) Browse(ctx context.Context, dialect Dialect, onAdd, onRemove func(Device)) error {
	serviceType := ServiceTypeLegacy
	if dialect == DialectModern {
		serviceType = ServiceTypeModern
	}

	add := func(entry dnssd.BrowseEntry) {
		onAdd(entryToDevice(dialect, entry))
	}
	remove := func(entry dnssd.BrowseEntry) {
		onRemove(entryToDevice(dialect, entry))
	}

	return dnssd.LookupType(ctx, serviceType, add, remove)
}

func entryToDevice(dialect Dialect, entry dnssd.BrowseEntry) Device {
	d := Device{
		Name:    entry.Name,
		Dialect: dialect,
		Port:    entry.Port,
	}
	if len(entry.IPs) > 0 {
		d.Host = entry.IPs[0].String()
	}

	switch dialect {
	case DialectLegacy:
		d.RAOP = UnmarshalRAOPTXT(entry.Text)
	case DialectModern:
		if caps, err := UnmarshalAirPlay2TXT(entry.Text); err == nil {
			d.AirPlay2 = caps
		}
	}
	return d
}

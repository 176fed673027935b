// Package discovery implements the coordinator/worker mDNS handshake:
// the coordinator announces itself under the "_phase3._tcp.local."
// service type, and workers browse for it and connect to the first
// IPv4 address resolved within a timeout.
package discovery

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/oniz93/business-finder/errkind"
)

// ServiceType is the full mDNS service type the coordinator announces
// and workers browse for.
const ServiceType = "_phase3._tcp.local."

// serviceName and serviceDomain are ServiceType split the way the mdns
// library wants them: it composes "<service>.<domain>" itself, so
// passing the full ServiceType would double the domain on the wire.
const (
	serviceName   = "_phase3._tcp"
	serviceDomain = "local."
)

// instanceName builds the host-name-suffixed instance name, split out
// for testing without a real mDNS server.
func instanceName(hostname string) string {
	return fmt.Sprintf("phase3-coordinator-%s", hostname)
}

// Announce registers an mDNS service for the coordinator on port, named
// "phase3-coordinator-<hostname>". The returned server must be shut
// down by the caller.
func Announce(port int) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	instance := instanceName(host)

	service, err := mdns.NewMDNSService(instance, serviceName, serviceDomain, "", port, nil, []string{"phase3"})
	if err != nil {
		return nil, fmt.Errorf("%w: build mdns service: %v", errkind.ErrInternal, err)
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("%w: start mdns server: %v", errkind.ErrInternal, err)
	}
	return server, nil
}

// Discover browses for the coordinator's mDNS service and returns the
// first resolved IPv4 "host:port" address seen within timeout. Workers
// use this to find the coordinator without a configured address.
func Discover(timeout time.Duration) (string, error) {
	entries := make(chan *mdns.ServiceEntry, 8)
	params := mdns.DefaultParams(serviceName)
	params.Timeout = timeout
	params.Entries = entries

	done := make(chan error, 1)
	go func() { done <- mdns.Query(params) }()

	deadline := time.After(timeout)
	for {
		select {
		case entry := <-entries:
			if entry == nil || entry.AddrV4 == nil {
				continue
			}
			return net.JoinHostPort(entry.AddrV4.String(), fmt.Sprint(entry.Port)), nil
		case err := <-done:
			if err != nil {
				return "", fmt.Errorf("%w: mdns query: %v", errkind.ErrProtocol, err)
			}
		case <-deadline:
			return "", fmt.Errorf("%w: no coordinator found via mdns within %s", errkind.ErrMissingResource, timeout)
		}
	}
}

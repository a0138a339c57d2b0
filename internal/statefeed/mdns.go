// ABOUTME: mDNS advertisement of the state feed on the local network
// ABOUTME: Companion apps browse for _hushtone._tcp to find the engine
package statefeed

import (
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
	"github.com/sirupsen/logrus"
)

const serviceType = "_hushtone._tcp"

// advertise announces the feed via mDNS and returns a shutdown function.
func advertise(name, addr string) (func(), error) {
	port, err := feedPort(addr)
	if err != nil {
		return nil, err
	}

	ips, err := localIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}

	if name == "" {
		host, _ := os.Hostname()
		name = "hushtone-" + host
	}

	service, err := mdns.NewMDNSService(
		name,
		serviceType,
		"",
		"",
		port,
		ips,
		[]string{"path=/state"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"name": name,
		"port": port,
		"type": serviceType,
	}).Info("mDNS advertisement started")

	return func() { server.Shutdown() }, nil
}

func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}

// Package security derives a stable hardware fingerprint for client
// machines. The API identifies devices by an opaque hardware_id; this is
// the reference derivation the bundled client uses.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
)

// Fingerprint is the device identity sent as hardware_id, plus the raw
// components it was derived from.
type Fingerprint struct {
	HardwareID string `json:"hardware_id"`
	Hostname   string `json:"hostname"`
	MACAddress string `json:"mac_address"`
	OS         string `json:"os"`
	Arch       string `json:"arch"`
}

var (
	fpOnce   sync.Once
	cachedFP *Fingerprint
)

// DeviceFingerprint derives the fingerprint for this machine. The inputs
// (hostname, first physical MAC, OS, arch) are stable across restarts, so
// the id survives reinstalls as long as the hardware does. The result is
// computed once per process.
func DeviceFingerprint() *Fingerprint {
	fpOnce.Do(func() {
		cachedFP = computeFingerprint()
	})
	return cachedFP
}

func computeFingerprint() *Fingerprint {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	mac := primaryMAC()

	sum := sha256.Sum256([]byte(strings.Join([]string{
		hostname, mac, runtime.GOOS, runtime.GOARCH,
	}, "|")))

	return &Fingerprint{
		HardwareID: "HW-" + strings.ToUpper(hex.EncodeToString(sum[:8])),
		Hostname:   hostname,
		MACAddress: mac,
		OS:         runtime.GOOS,
		Arch:       runtime.GOARCH,
	}
}

// primaryMAC picks the lowest non-loopback hardware address so the choice
// does not depend on interface enumeration order.
func primaryMAC() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "no-mac"
	}

	var macs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
			continue
		}
		macs = append(macs, iface.HardwareAddr.String())
	}
	if len(macs) == 0 {
		return "no-mac"
	}
	sort.Strings(macs)
	return macs[0]
}

package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"testing"
)

func TestIsLocallyAdministeredMAC(t *testing.T) {
	tests := []struct {
		name string
		mac  string
		want bool
	}{
		{"AWS typical", "02:00:17:12:34:56", true},
		{"Docker default", "02:42:ac:11:00:02", true},
		{"VMware vNIC", "02:50:56:12:34:56", true},
		{"generic locally administered", "06:00:00:00:00:01", true},
		{"Intel NIC", "00:1b:21:12:34:56", false},
		{"Realtek NIC", "00:e0:4c:12:34:56", false},
		{"Dell NIC", "00:14:22:12:34:56", false},
		{"all zeros", "00:00:00:00:00:00", false},
		{"broadcast", "ff:ff:ff:ff:ff:ff", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mac, err := net.ParseMAC(tt.mac)
			if err != nil {
				t.Fatalf("parse MAC %s: %v", tt.mac, err)
			}
			if got := isLocallyAdministeredMAC(mac); got != tt.want {
				t.Errorf("isLocallyAdministeredMAC(%s) = %v, want %v", tt.mac, got, tt.want)
			}
		})
	}
}

func TestIsLocallyAdministeredMAC_Empty(t *testing.T) {
	if isLocallyAdministeredMAC(net.HardwareAddr{}) {
		t.Error("empty MAC should not count as locally administered")
	}
}

func TestIsVirtualInterface(t *testing.T) {
	tests := []struct {
		name      string
		ifaceName string
		want      bool
	}{
		{"Docker bridge", "docker0", true},
		{"Docker veth", "veth123abc", true},
		{"Docker custom bridge", "br-1234567890ab", true},
		{"VMware", "vmnet1", true},
		{"VirtualBox host adapter", "VirtualBox Host-Only Ethernet Adapter", true},
		{"Hyper-V adapter", "Hyper-V Virtual Ethernet Adapter", true},
		{"WireGuard", "wg0", true},
		{"OpenVPN tun", "tun0", true},
		{"OpenVPN tap", "tap0", true},
		{"WireGuard named", "wireguard-peer", true},
		{"Ethernet", "eth0", false},
		{"Ethernet predictable", "enp0s3", false},
		{"WiFi", "wlan0", false},
		{"onboard", "eno1", false},
		{"empty name", "", false},
		{"loopback", "lo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isVirtualInterface(tt.ifaceName); got != tt.want {
				t.Errorf("isVirtualInterface(%q) = %v, want %v", tt.ifaceName, got, tt.want)
			}
		})
	}
}

func TestFirstIPv4(t *testing.T) {
	ipnet := func(s string) net.Addr {
		ip, network, err := net.ParseCIDR(s)
		if err != nil {
			t.Fatalf("parse CIDR %s: %v", s, err)
		}
		network.IP = ip
		return network
	}

	tests := []struct {
		name  string
		addrs []net.Addr
		want  string
	}{
		{"plain IPv4", []net.Addr{ipnet("10.0.0.5/24")}, "10.0.0.5"},
		{"skips IPv6", []net.Addr{ipnet("fe80::1/64"), ipnet("192.168.1.20/24")}, "192.168.1.20"},
		{"skips loopback", []net.Addr{ipnet("127.0.0.1/8"), ipnet("10.1.2.3/24")}, "10.1.2.3"},
		{"IPv6 only", []net.Addr{ipnet("fe80::1/64")}, ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := firstIPv4(tt.addrs); got != tt.want {
				t.Errorf("firstIPv4: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMachineID_MatchesHashOfSortedMACs(t *testing.T) {
	macs := []string{"00:e0:4c:12:34:56", "00:1b:21:12:34:56"}
	sum := sha256.Sum256([]byte("00:1b:21:12:34:56|00:e0:4c:12:34:56"))
	want := hex.EncodeToString(sum[:])

	if got := machineID(macs); got != want {
		t.Errorf("machineID: got %s, want %s", got, want)
	}
}

func TestMachineID_OrderIndependent(t *testing.T) {
	a := machineID([]string{"00:1b:21:12:34:56", "00:e0:4c:12:34:56"})
	b := machineID([]string{"00:e0:4c:12:34:56", "00:1b:21:12:34:56"})
	if a != b {
		t.Errorf("machineID should not depend on interface order: %s vs %s", a, b)
	}
}

func TestMachineID_DistinctMachines(t *testing.T) {
	a := machineID([]string{"00:1b:21:12:34:56"})
	b := machineID([]string{"00:14:22:12:34:56"})
	if a == b {
		t.Error("different MACs should produce different machine IDs")
	}
}

func TestMachineID_DoesNotMutateInput(t *testing.T) {
	macs := []string{"00:e0:4c:12:34:56", "00:1b:21:12:34:56"}
	machineID(macs)
	if macs[0] != "00:e0:4c:12:34:56" {
		t.Error("machineID should not reorder the caller's slice")
	}
}

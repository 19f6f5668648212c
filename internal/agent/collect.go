package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/carlosrabelo/tatuscan/internal/apiclient"
)

// virtualInterfacePatterns lists lowercase substrings of virtual network
// adapter names across platforms.
var virtualInterfacePatterns = []string{
	"docker", "veth", "br-", "tun", "tap", "vmnet", "macvlan", "ipvlan",
	"wg", "wireguard", "dummy",
	"virtual", "vpn", "hyper-v", "vmware", "virtualbox", "teredo",
}

// isVirtualInterface reports whether the interface name matches a known
// virtual adapter pattern.
func isVirtualInterface(name string) bool {
	nameLower := strings.ToLower(name)
	for _, pattern := range virtualInterfacePatterns {
		if strings.Contains(nameLower, pattern) {
			return true
		}
	}
	return false
}

// isVirtualBySysfs checks the Linux sysfs device path for the interface.
// When sysfs is unavailable the name patterns decide.
func isVirtualBySysfs(name string) bool {
	link, err := os.Readlink(filepath.Join("/sys/class/net", name))
	if err == nil && strings.Contains(link, "/virtual/") {
		return true
	}
	return isVirtualInterface(name)
}

// isLocallyAdministeredMAC reports whether the MAC has the locally
// administered bit set, typical of VMs and containers.
func isLocallyAdministeredMAC(hw net.HardwareAddr) bool {
	if len(hw) == 0 {
		return false
	}
	return hw[0]&0x02 == 0x02
}

// firstIPv4 returns the first non-loopback IPv4 address in addrs, or "".
func firstIPv4(addrs []net.Addr) string {
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String()
		}
	}
	return ""
}

// machineID derives a stable identifier from the physical MAC addresses:
// sorted, joined with "|", and hashed so the ID survives reboots and
// interface reordering.
func machineID(macs []string) string {
	sorted := make([]string, len(macs))
	copy(sorted, macs)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "|")))
	return hex.EncodeToString(sum[:])
}

// Collect gathers the machine report: identity from physical network
// interfaces, OS facts, and current CPU and memory usage.
func Collect(log *zap.Logger) (apiclient.ReportPayload, error) {
	payload := apiclient.ReportPayload{OS: runtime.GOOS}

	hostname, err := os.Hostname()
	if err != nil {
		log.Warn("read hostname", zap.Error(err))
		hostname = "Unknown"
	}
	payload.Hostname = hostname
	payload.OSVersion = osVersion(log)

	interfaces, err := net.Interfaces()
	if err != nil {
		return payload, fmt.Errorf("list network interfaces: %w", err)
	}
	sort.Slice(interfaces, func(i, j int) bool {
		return interfaces[i].Index < interfaces[j].Index
	})

	var macs []string
	var ipAddress string
	for _, iface := range interfaces {
		switch {
		case iface.Name == "":
			continue
		case iface.HardwareAddr.String() == "":
			continue
		case iface.Flags&net.FlagLoopback != 0:
			continue
		case iface.Flags&net.FlagUp == 0:
			continue
		case isVirtualBySysfs(iface.Name):
			continue
		case isLocallyAdministeredMAC(iface.HardwareAddr):
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			log.Warn("read interface addresses", zap.String("interface", iface.Name), zap.Error(err))
			continue
		}
		ip := firstIPv4(addrs)
		if ip == "" {
			continue
		}
		if ipAddress == "" {
			ipAddress = ip
		}
		macs = append(macs, iface.HardwareAddr.String())
		log.Debug("physical interface included",
			zap.String("interface", iface.Name),
			zap.String("mac", iface.HardwareAddr.String()))
	}
	if len(macs) == 0 {
		return payload, fmt.Errorf("no physical network interface found")
	}
	payload.IP = ipAddress
	payload.MachineID = machineID(macs)

	payload.CPUPercent = cpuPercent(log)
	payload.MemoryTotalMB, payload.MemoryUsedMB = memoryMB(log)
	return payload, nil
}

func osVersion(log *zap.Logger) string {
	info, err := host.Info()
	if err != nil {
		log.Warn("collect host info", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(info.Platform + " " + info.PlatformVersion)
}

func cpuPercent(log *zap.Logger) float64 {
	percents, err := cpu.Percent(0, false)
	if err != nil {
		log.Error("collect cpu usage", zap.Error(err))
		return 0
	}
	if len(percents) == 0 {
		return 0
	}
	return percents[0]
}

func memoryMB(log *zap.Logger) (total, used uint64) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Error("collect memory info", zap.Error(err))
		return 0, 0
	}
	return vm.Total / (1024 * 1024), vm.Used / (1024 * 1024)
}

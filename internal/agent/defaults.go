package agent

import "runtime"

// PlatformDefaults holds per-OS default paths.
type PlatformDefaults struct {
	LogFile string
}

func platformDefaults() PlatformDefaults {
	switch runtime.GOOS {
	case "windows":
		return PlatformDefaults{LogFile: `C:\ProgramData\TatuScan\agent.log`}
	case "darwin":
		return PlatformDefaults{LogFile: "/Library/Logs/tatuscan/agent.log"}
	default:
		return PlatformDefaults{LogFile: "/var/log/tatuscan/agent.log"}
	}
}

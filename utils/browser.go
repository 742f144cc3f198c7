package utils

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var linuxOpeners = []string{"xdg-open", "sensible-browser", "x-www-browser", "gnome-open", "kde-open"}

func isWSL() bool {
	if runtime.GOOS != "linux" {
		return false
	}

	// Check /proc/version for WSL
	if data, err := os.ReadFile("/proc/version"); err == nil {
		return strings.Contains(strings.ToLower(string(data)), "wsl")
	}

	return false
}

// OpenBrowser opens url in the user's browser without waiting for it
func OpenBrowser(url string) error {
	name, args, err := browserCommand(runtime.GOOS, isWSL(), os.Getenv("BROWSER"), url, exec.LookPath)
	if err != nil {
		return err
	}

	return exec.Command(name, args...).Start()
}

// browserCommand picks the opener for a platform. $BROWSER wins when set.
func browserCommand(goos string, wsl bool, browserEnv, url string, lookPath func(string) (string, error)) (string, []string, error) {
	if browserEnv != "" {
		fields := strings.Fields(browserEnv)
		return fields[0], append(fields[1:], url), nil
	}

	switch goos {
	case "linux":
		if wsl {
			// Use Windows default browser via cmd.exe start
			return "cmd.exe", []string{"/c", "start", url}, nil
		}

		for _, cmd := range linuxOpeners {
			if _, err := lookPath(cmd); err == nil {
				return cmd, []string{url}, nil
			}
		}
		return "", nil, fmt.Errorf("no browser opener found, tried %s", strings.Join(linuxOpeners, ", "))
	case "darwin":
		return "open", []string{url}, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler", url}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform %s", goos)
	}
}

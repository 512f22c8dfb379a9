package auth

import (
	"fmt"
	"os/exec"
	"runtime"
)

// OpenBrowser attempts to open the default browser at the given URL.
// Callers treat failure as non-fatal: the flow can always be completed by
// visiting the URL manually.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

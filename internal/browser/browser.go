// File: internal/browser/browser.go
// Description: Browser process discovery and allocator option assembly. The
// export flow depends on an already signed-in profile, so the launch always
// targets a real user data directory rather than a throwaway one.
package browser

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/chromedp/chromedp"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/mgrotte/treexport/internal/config"
)

// Locate finds a Chrome or Chromium binary on the host, preferring the
// branded build. Returns an error when none of the well-known install paths
// exist.
func Locate() (string, error) {
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		candidates = []string{
			filepath.Join(os.Getenv("ProgramFiles"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("ProgramFiles(x86)"), "Google", "Chrome", "Application", "chrome.exe"),
			filepath.Join(os.Getenv("LocalAppData"), "Google", "Chrome", "Application", "chrome.exe"),
		}
	default:
		candidates = []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
			"/snap/bin/chromium",
		}
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no Chrome or Chromium binary found; set browser.exec_path")
}

// defaultUserDataDir resolves the OS default Chrome profile root. The signed
// in session lives there, which is the whole point of reusing it.
func defaultUserDataDir() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Google", "Chrome"), nil
	case "windows":
		return filepath.Join(os.Getenv("LocalAppData"), "Google", "Chrome", "User Data"), nil
	default:
		return filepath.Join(home, ".config", "google-chrome"), nil
	}
}

// buildAllocatorOptions assembles launch flags from scratch. The chromedp
// defaults force headless and a fresh profile, both of which break the signed
// in session this tool depends on, so nothing is inherited from them.
func buildAllocatorOptions(cfg *config.BrowserConfig) ([]chromedp.ExecAllocatorOption, error) {
	execPath := cfg.ExecPath
	if execPath == "" {
		located, err := Locate()
		if err != nil {
			return nil, err
		}
		execPath = located
	}

	dataDir := cfg.UserDataDir
	if dataDir == "" {
		resolved, err := defaultUserDataDir()
		if err != nil {
			return nil, err
		}
		dataDir = resolved
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.ExecPath(execPath),
		chromedp.UserDataDir(dataDir),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("profile-directory", cfg.ProfileName),
		chromedp.Flag("headless", cfg.Headless),
		// Route window.print straight to the default printer destination so
		// the confirm step needs no dialog interaction.
		chromedp.Flag("kiosk-printing", true),
		// The export entry opens its print view in a popup.
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	}

	// Custom arguments from configuration, "--name=value" or "--name" form.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		flagName := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(flagName, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(flagName, true))
		}
	}

	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	}

	return opts, nil
}

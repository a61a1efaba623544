package browser

import (
	"sort"

	"github.com/chromedp/chromedp"
	"github.com/khawaidev/fapi/internal/common"
)

// launchFlags returns the Chrome switches used for both the warm instance and
// fallback launches. They trade isolation for the smallest possible footprint.
func launchFlags(config common.BrowserConfig) map[string]interface{} {
	return map[string]interface{}{
		"headless":                      config.Headless,
		"no-sandbox":                    true,
		"single-process":                true,
		"no-zygote":                     true,
		"disable-gpu":                   true,
		"disable-dev-shm-usage":         true,
		"disable-background-networking": true,
		"disable-extensions":            true,
		"disable-sync":                  true,
		"disable-translate":             true,
		"disable-default-apps":          true,
		"mute-audio":                    true,
		"blink-settings":                "imagesEnabled=false",
		"disk-cache-size":               "0",
		"media-cache-size":              "0",
	}
}

// allocatorOptions converts the launch flags into chromedp allocator options
func allocatorOptions(config common.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	flags := launchFlags(config)
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opts = append(opts, chromedp.Flag(name, flags[name]))
	}

	if config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(config.UserAgent))
	}
	if config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(config.ExecPath))
	}

	return opts
}

package browser

import (
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"

	"github.com/khawaidev/fapi/internal/common"
)

func TestLaunchFlags_MinimalFootprint(t *testing.T) {
	flags := launchFlags(common.NewDefaultConfig().Browser)

	for _, name := range []string{
		"no-sandbox",
		"single-process",
		"no-zygote",
		"disable-background-networking",
		"disable-extensions",
		"disable-sync",
		"disable-translate",
	} {
		assert.Equal(t, true, flags[name], name)
	}
	assert.Equal(t, "imagesEnabled=false", flags["blink-settings"])
	assert.Equal(t, "0", flags["disk-cache-size"])
	assert.Equal(t, "0", flags["media-cache-size"])
	assert.Equal(t, true, flags["headless"])
}

func TestLaunchFlags_Headful(t *testing.T) {
	config := common.NewDefaultConfig().Browser
	config.Headless = false

	assert.Equal(t, false, launchFlags(config)["headless"])
}

func TestAllocatorOptions_OptionalSettings(t *testing.T) {
	config := common.NewDefaultConfig().Browser
	base := len(chromedp.DefaultExecAllocatorOptions) + len(launchFlags(config))

	config.UserAgent = ""
	assert.Len(t, allocatorOptions(config), base)

	config.UserAgent = "fapi-test"
	config.ExecPath = "/usr/bin/chromium"
	assert.Len(t, allocatorOptions(config), base+2)
}

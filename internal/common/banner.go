package common

import (
	"github.com/ternarybob/banner"
)

// PrintBanner displays the startup banner
func PrintBanner(version string) {
	banner.Print("Screener", version)
}

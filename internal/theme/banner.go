package theme

import (
	"fmt"
)

// Banner returns the CLI banner.
func Banner() string {
	const green = "\033[32m"
	const cyan = "\033[36m"
	const reset = "\033[0m"

	art := "" +
		green + "   ╭──────────────────────────────╮\n" + reset +
		green + "   │  " + cyan + "R E F D A S H" + green + "               │\n" + reset +
		green + "   ╰──────────────────────────────╯\n" + reset +
		"   referral directory browser for the admin API\n"
	return art
}

// PrintBanner prints the banner to stdout.
func PrintBanner() {
	fmt.Print(Banner())
}

package theme

import (
	"strings"
	"testing"
)

func TestBannerNamesTool(t *testing.T) {
	if !strings.Contains(Banner(), "R E F D A S H") {
		t.Fatal("banner should name the tool")
	}
}

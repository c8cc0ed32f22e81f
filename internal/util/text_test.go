package util

import "testing"

func TestContainsFold(t *testing.T) {
	if !ContainsFold("0xABCdef", "abc") {
		t.Fatalf("expected case-insensitive match")
	}
	if ContainsFold("0xABCdef", "123") {
		t.Fatalf("unexpected match")
	}
	if !ContainsFold("anything", "") {
		t.Fatalf("empty needle should match")
	}
}

func TestSplitFields(t *testing.T) {
	got := SplitFields("  ref   0xabc\t2 ")
	if len(got) != 3 || got[0] != "ref" || got[1] != "0xabc" || got[2] != "2" {
		t.Fatalf("unexpected fields: %#v", got)
	}
}

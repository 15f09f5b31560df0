package indexer

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x36696169C63e42cd08ce11f5deeBbCeBae652050 ", "", "0x0E09FaBB73Bd3Ade0a17ECC321fD13a19e81cE82"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0] != common.HexToAddress("0x36696169C63e42cd08ce11f5deeBbCeBae652050") {
		t.Fatalf("unexpected addresses: %v", got)
	}

	if _, err := ParseAddresses([]string{"0x1234"}); err == nil {
		t.Fatalf("expected error for short address")
	}
}

func TestParseAddressesDedupes(t *testing.T) {
	got, err := ParseAddresses([]string{
		"0x36696169C63e42cd08ce11f5deeBbCeBae652050",
		"0x36696169c63e42cd08ce11f5deebbcebae652050",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected duplicate to be dropped: %v", got)
	}
}

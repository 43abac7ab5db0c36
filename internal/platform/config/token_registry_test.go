package config

import (
	"strings"
	"testing"
)

func TestLookupByAddressCaseInsensitive(t *testing.T) {
	weth := "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

	info, ok := LookupByAddress(strings.ToLower(weth))
	if !ok {
		t.Fatal("lowercased WETH address not found")
	}
	if info.Symbol != "WETH" || info.Decimals != 18 {
		t.Errorf("got %+v, want WETH with 18 decimals", info)
	}

	if _, ok := LookupByAddress("0x0000000000000000000000000000000000000001"); ok {
		t.Error("unknown address should not resolve")
	}
}

func TestLookupBySymbol(t *testing.T) {
	info, ok := LookupBySymbol("usdc")
	if !ok {
		t.Fatal("usdc should resolve case-insensitively")
	}
	if info.Decimals != 6 || !info.IsStablecoin {
		t.Errorf("got %+v, want 6-decimal stablecoin", info)
	}

	if _, ok := LookupBySymbol("DOGE"); ok {
		t.Error("unregistered symbol should not resolve")
	}
}

func TestStablecoinsMarked(t *testing.T) {
	for _, symbol := range []string{"USDC", "USDT", "DAI"} {
		if info := TokenRegistry[symbol]; !info.IsStablecoin {
			t.Errorf("%s should be marked as a stablecoin", symbol)
		}
	}
	for _, symbol := range []string{"WETH", "WBTC", "LINK", "UNI", "AAVE"} {
		if info := TokenRegistry[symbol]; info.IsStablecoin {
			t.Errorf("%s should not be marked as a stablecoin", symbol)
		}
	}
}

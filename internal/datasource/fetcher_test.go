package datasource

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/DorianYoung7702/ChainMonitorV2/internal/platform/cache"
)

func TestWordPosForTick(t *testing.T) {
	cases := []struct {
		tick, spacing, want int32
	}{
		{0, 60, 0},
		{15360, 60, 1},   // compressed 256
		{15300, 60, 0},   // compressed 255
		{-60, 60, -1},    // compressed -1 floors into word -1
		{-15360, 60, -1}, // compressed -256
		{-15420, 60, -2}, // compressed -257
		{887220, 60, 57},
	}
	for _, tc := range cases {
		if got := wordPosForTick(tc.tick, tc.spacing); got != tc.want {
			t.Errorf("wordPosForTick(%d, %d) = %d, want %d", tc.tick, tc.spacing, got, tc.want)
		}
	}
}

func TestTickForWordBitRoundTrip(t *testing.T) {
	for _, spacing := range []int32{1, 10, 60, 200} {
		for _, tick := range []int32{0, spacing, -spacing, 256 * spacing, -256 * spacing, 1000 * spacing} {
			wp := wordPosForTick(tick, spacing)
			compressed := floorDiv(tick, spacing)
			bit := int(compressed - wp*256)
			if got := tickForWordBit(wp, bit, spacing); got != tick {
				t.Errorf("spacing %d: tick %d -> word %d bit %d -> %d", spacing, tick, wp, bit, got)
			}
		}
	}
}

func TestWordsForWindow(t *testing.T) {
	// One word covers 256 * spacing ticks.
	if got := wordsForWindow(1200, 60); got != 1 {
		t.Errorf("window 1200 spacing 60 = %d words, want 1", got)
	}
	if got := wordsForWindow(20000, 60); got != 2 {
		t.Errorf("window 20000 spacing 60 = %d words, want 2", got)
	}
	if got := wordsForWindow(0, 60); got != 1 {
		t.Errorf("zero window should still scan one word, got %d", got)
	}
	if got := wordsForWindow(1200, 1); got != 5 {
		t.Errorf("window 1200 spacing 1 = %d words, want 5", got)
	}
}

func TestSetBits(t *testing.T) {
	word := new(big.Int)
	word.SetBit(word, 0, 1)
	word.SetBit(word, 17, 1)
	word.SetBit(word, 255, 1)

	bits := setBits(word)
	want := []int{0, 17, 255}
	if len(bits) != len(want) {
		t.Fatalf("got %v, want %v", bits, want)
	}
	for i := range want {
		if bits[i] != want[i] {
			t.Fatalf("got %v, want %v", bits, want)
		}
	}

	if got := setBits(big.NewInt(0)); got != nil {
		t.Errorf("zero word should have no set bits, got %v", got)
	}
}

func TestTokenMetaEncoding(t *testing.T) {
	sym, dec, ok := decodeTokenMeta(encodeTokenMeta("WETH", 18))
	if !ok || sym != "WETH" || dec != 18 {
		t.Errorf("round trip = (%q, %d, %v), want (WETH, 18, true)", sym, dec, ok)
	}

	// Symbols containing the separator still decode on the last one.
	sym, dec, ok = decodeTokenMeta(encodeTokenMeta("A|B", 6))
	if !ok || sym != "A|B" || dec != 6 {
		t.Errorf("separator symbol = (%q, %d, %v), want (A|B, 6, true)", sym, dec, ok)
	}

	if _, _, ok := decodeTokenMeta(42); ok {
		t.Error("non-string cache value should not decode")
	}
	if _, _, ok := decodeTokenMeta("garbage"); ok {
		t.Error("missing separator should not decode")
	}
	if _, _, ok := decodeTokenMeta("WETH|many"); ok {
		t.Error("non-numeric decimals should not decode")
	}
}

func TestTokenMetaWarmerSeedsRegistry(t *testing.T) {
	mem := cache.NewMemoryCache(64)
	defer mem.Close()

	warmer := NewTokenMetaWarmer(mem, time.Hour)
	if warmer.Name() == "" {
		t.Error("warmer must have a name for warmup logs")
	}
	if err := warmer.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup failed: %v", err)
	}

	// WETH must be resolvable by lowercase address after warmup.
	key := "token:meta:" + strings.ToLower("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v, err := mem.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("warmed key missing: %v", err)
	}
	sym, dec, ok := decodeTokenMeta(v)
	if !ok || sym != "WETH" || dec != 18 {
		t.Errorf("warmed value = (%q, %d, %v), want (WETH, 18, true)", sym, dec, ok)
	}
}

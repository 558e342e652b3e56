package whatsapp

import "testing"

func TestRenderPairingQRProducesNonEmptyArt(t *testing.T) {
	art, err := renderPairingQR("https://wa.me/pair?code=abc123")
	if err != nil {
		t.Fatalf("renderPairingQR: %v", err)
	}
	if art == "" {
		t.Fatal("renderPairingQR returned empty string")
	}
}

func TestRenderPairingQRRejectsOversizedPayload(t *testing.T) {
	huge := make([]byte, 5000)
	for i := range huge {
		huge[i] = 'a'
	}
	if _, err := renderPairingQR(string(huge)); err == nil {
		t.Fatal("expected error for a payload too large to encode")
	}
}

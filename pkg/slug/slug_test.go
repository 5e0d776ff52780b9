package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"ascii", "Linen Shirt", "linen-shirt"},
		{"upper case", "ALL CAPS TEE", "all-caps-tee"},
		{"punctuation collapses", "Hello,   World!!", "hello-world"},
		{"edges trimmed", "  --Sale--  ", "sale"},
		{"digits kept", "Sneaker 2.0", "sneaker-2-0"},
		{"turkish", "Çocuk Ürünleri", "cocuk-urunleri"},
		{"dotted capital i", "İstanbul", "istanbul"},
		{"dotless i", "Kadın Giyim", "kadin-giyim"},
		{"french accents", "Crème Brûlée", "creme-brulee"},
		{"ligatures", "Æble Straße", "aeble-strasse"},
		{"nordic", "Ørsted Øl", "orsted-ol"},
		{"only symbols", "!!!", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Generate(tt.input))
		})
	}
}

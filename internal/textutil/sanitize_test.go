package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlainText(t *testing.T) {
	cases := map[string]string{
		"":                                  "",
		"  ring the bell  ":                 "ring the bell",
		"<b>extra</b> napkins":              "extra napkins",
		`<script>alert(1)</script>no nuts`:  "no nuts",
		"salt & pepper":                     "salt & pepper",
		`<a href="javascript:x">gate 4</a>`: "gate 4",
		"<3 from the kitchen":               "<3 from the kitchen",
	}
	for in, want := range cases {
		assert.Equal(t, want, PlainText(in), "input %q", in)
	}
}

func TestPlainTextDoesNotReviveEncodedMarkup(t *testing.T) {
	cases := map[string]string{
		"&lt;script&gt;alert(1)&lt;/script&gt;":                 "",
		"<b>hi</b> &lt;img src=x onerror=alert(1)&gt;":          "hi",
		"&amp;lt;script&amp;gt;alert(1)&amp;lt;/script&amp;gt;": "",
		"leave at &lt;b&gt;door&lt;/b&gt;":                      "leave at door",
	}
	for in, want := range cases {
		got := PlainText(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.NotContains(t, got, "<script")
		assert.NotContains(t, got, "<img")
	}
}

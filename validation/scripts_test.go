package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptScreener_FindMarkers(t *testing.T) {
	req := require.New(t)
	screener, err := NewScriptScreener()
	req.NoError(err)

	tests := []struct {
		name string
		data string
		want []string
	}{
		{"Clean", "<svg><rect width='10' height='10'/></svg>", nil},
		{"Script tag", "<svg><script>alert(1)</script></svg>", []string{"<script"}},
		{"Case insensitive", "<svg><SCRIPT>alert(1)</SCRIPT></svg>", []string{"<script"}},
		{"Javascript URL", `<a href="javascript:void(0)">x</a>`, []string{"javascript:"}},
		{"Event handler", `<img src=x onerror=alert(1)>`, []string{"onerror="}},
		{"Data URL", `<iframe src="data:text/html,<b>x</b>">`, []string{"data:text/html"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, screener.FindMarkers([]byte(tt.data)))
		})
	}
}

func TestScriptScreener_Dedup(t *testing.T) {
	req := require.New(t)
	screener, err := NewScriptScreener()
	req.NoError(err)

	markers := screener.FindMarkers([]byte("<script></script><script>"))
	req.Equal([]string{"<script"}, markers)
}

func TestScriptScreener_WindowBound(t *testing.T) {
	req := require.New(t)
	screener, err := NewScriptScreener()
	req.NoError(err)

	// A marker past the scan window is invisible; only the head of the buffer
	// is interpreted by renderers.
	data := append(bytes.Repeat([]byte{'a'}, scriptScanWindow), []byte("<script>")...)
	req.Nil(screener.FindMarkers(data))

	inWindow := append([]byte("<script>"), bytes.Repeat([]byte{'a'}, scriptScanWindow)...)
	req.Equal([]string{"<script"}, screener.FindMarkers(inWindow))
}

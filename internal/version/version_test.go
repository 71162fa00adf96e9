package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	t.Parallel()

	i := Info{Version: "v1.2.0", GitSHA: "0123456789abcdef0123", BuildTime: "2026-01-02T03:04:05Z"}
	assert.Equal(t, "autoaim v1.2.0 (0123456789ab, built 2026-01-02T03:04:05Z)", i.String())

	assert.Equal(t, "autoaim dev (unknown, built unknown)", Current().String())
}

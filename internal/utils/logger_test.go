package utils

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
)

func TestSetLogOutput(t *testing.T) {
	defer SetLogOutput(os.Stderr)

	var first bytes.Buffer
	SetLogOutput(&first)
	log.Info().Str("op", "utils/logger").Msg("redirected")
	assert.Contains(t, first.String(), "redirected")

	var second bytes.Buffer
	SetLogOutput(&second)
	log.Info().Msg("elsewhere")
	assert.NotContains(t, first.String(), "elsewhere")
	assert.Contains(t, second.String(), "elsewhere")
}

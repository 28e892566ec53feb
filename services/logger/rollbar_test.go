package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/Gokulakrishnan610/chicken-dinner/core"
	"github.com/Gokulakrishnan610/chicken-dinner/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), core.NewTestConfig())

	usr := user.User{ID: "3f2a9c1e-5b7d-4e8f-a0b1-c2d3e4f5a6b7", Username: "jane", Email: "jane@test.cd"}
	args := []interface{}{errors.New("boom"), map[string]interface{}{"kind": "achievement"}, usr}

	assert.Equal(t, []interface{}{"crediting profile", args[0], args[1]}, logger.prepare("crediting profile", args))

	logger.Error("crediting profile", args...)
	out := buf.String()
	assert.Contains(t, out, "ERROR: crediting profile")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "map[kind:achievement]")
	assert.NotContains(t, out, "jane@test.cd")

	buf.Reset()
	logger.Info("scheduler started")
	assert.Equal(t, "INFO: scheduler started\n", buf.String())
}

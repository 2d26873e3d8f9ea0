package logsvc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/agape/core"
	"github.com/trezcool/agape/core/user"
)

func newTestLogger(t *testing.T) (*RollbarLogger, *bytes.Buffer) {
	t.Helper()
	buf := new(bytes.Buffer)
	std := logrus.New()
	std.SetOutput(buf)
	std.SetFormatter(&logrus.JSONFormatter{})
	std.SetLevel(logrus.DebugLevel)
	return NewRollbarLogger(std, &core.Config{Env: "TEST"}), buf
}

func TestRollbarLogger_fields(t *testing.T) {
	logger, buf := newTestLogger(t)

	usr := user.User{ID: "u-1", Username: "ops"}
	logger.Warn("gateway payment matches no charge", errors.New("not found"), map[string]interface{}{"payment_id": "pay_1"}, usr)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warning", line["level"])
	assert.Equal(t, "gateway payment matches no charge", line["msg"])
	assert.Equal(t, "not found", line["error"])
	assert.Equal(t, "pay_1", line["payment_id"])
	assert.Equal(t, "u-1", line["user_id"])
	assert.Equal(t, "ops", line["username"])
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger, _ := newTestLogger(t)

	err := errors.New("boom")
	extra := map[string]interface{}{"k": "v"}
	args := logger.prepare("msg", []interface{}{err, user.User{ID: "1"}, extra, user.User{ID: "2"}})

	assert.Equal(t, []interface{}{"msg", err, extra}, args)
}

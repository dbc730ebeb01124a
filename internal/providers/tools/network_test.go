package tools

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"

	"github.com/sandevgo/cnapse/internal/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenLocal(t *testing.T) (net.Listener, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, l.Addr().(*net.TCPAddr).Port
}

func TestNetwork_CheckPort(t *testing.T) {
	n := NewNetwork()
	ctx := context.Background()
	_, port := listenLocal(t)

	out, err := n.CheckPort(ctx, json.RawMessage(`{"port":"`+strconv.Itoa(port)+`"}`))
	require.NoError(t, err)
	assert.Equal(t, "Port "+strconv.Itoa(port)+" is in use", out)

	_, err = n.CheckPort(ctx, json.RawMessage(`{"port":70000}`))
	assert.ErrorContains(t, err, "out of range")
}

func TestNetwork_FindAvailablePort(t *testing.T) {
	n := NewNetwork()
	ctx := context.Background()
	_, busy := listenLocal(t)

	// a range holding only a busy port has nothing to offer
	_, err := n.FindAvailablePort(ctx, json.RawMessage(`{"start":`+strconv.Itoa(busy)+`,"end":`+strconv.Itoa(busy)+`}`))
	assert.ErrorContains(t, err, "no available ports")

	out, err := n.FindAvailablePort(ctx, json.RawMessage(`{"start":`+strconv.Itoa(busy)+`,"end":65535}`))
	require.NoError(t, err)
	got, err := strconv.Atoi(out)
	require.NoError(t, err)
	assert.Greater(t, got, busy)

	_, err = n.FindAvailablePort(ctx, json.RawMessage(`{"start":9000,"end":8000}`))
	assert.ErrorContains(t, err, "below start")
}

func TestNetwork_CheckConnection(t *testing.T) {
	n := NewNetwork()
	ctx := context.Background()
	l, port := listenLocal(t)
	go func() {
		if c, err := l.Accept(); err == nil {
			_ = c.Close()
		}
	}()

	out, err := n.CheckConnection(ctx, json.RawMessage(`{"host":"127.0.0.1","port":`+strconv.Itoa(port)+`}`))
	require.NoError(t, err)
	assert.Contains(t, out, "successful")

	// a port that was free a moment ago refuses connections
	closed, closedPort := listenLocal(t)
	require.NoError(t, closed.Close())
	_, err = n.CheckConnection(ctx, json.RawMessage(`{"host":"127.0.0.1","port":`+strconv.Itoa(closedPort)+`,"timeout":1}`))
	assert.ErrorContains(t, err, "failed")

	_, err = n.CheckConnection(ctx, json.RawMessage(`{"host":" ","port":80}`))
	assert.ErrorContains(t, err, "host must not be empty")
}

func TestNetwork_Interfaces(t *testing.T) {
	n := NewNetwork()
	ctx := context.Background()

	out, err := n.ListInterfaces(ctx, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	ip, err := n.GetLocalIP(ctx, nil)
	if err != nil {
		assert.ErrorContains(t, err, "no non-loopback")
		return
	}
	parsed := net.ParseIP(ip)
	require.NotNil(t, parsed)
	assert.NotNil(t, parsed.To4())
	assert.False(t, parsed.IsLoopback())
}

func TestBuiltin_CoversHandlerTools(t *testing.T) {
	e, err := NewExecutor(Builtin(t.TempDir(), nil, nil)...)
	require.NoError(t, err)

	for _, h := range router.Builtin(nil) {
		for _, name := range h.Tools() {
			_, ok := e.Lookup(name)
			assert.True(t, ok, "handler %s lists unregistered tool %s", h.Name(), name)
		}
	}
}

package util

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNet(t *testing.T) {
	conn, err := ListenReusableUDP("127.0.0.1:0")
	if !assert.NoError(t, err) {
		return
	}
	t.Log("listening " + conn.LocalAddr().String())

	t.Run("rebind", func(tt *testing.T) {
		again, rerr := ListenReusableUDP(conn.LocalAddr().String())
		if assert.NoError(tt, rerr) {
			again.Close()
		}
	})

	t.Run("set buffer", func(tt *testing.T) {
		maxSz := 1048576 * 16
		minSz := 4096
		sz, serr := TrySetUDPReadBuffer(conn, maxSz, minSz)
		assert.NoError(tt, serr)
		assert.Greater(tt, sz, 0)
		assert.LessOrEqual(tt, sz, maxSz)
	})

	t.Run("check error", func(tt *testing.T) {
		conn.Close()
		_, _, rerr := conn.ReadFromUDP(make([]byte, 16))
		if assert.Error(tt, rerr) {
			assert.True(tt, IsNetworkClosed(rerr))
			assert.False(tt, IsNetworkTimeout(rerr))
		}
	})

	_, err = net.ResolveUDPAddr("udp4", conn.LocalAddr().String())
	assert.NoError(t, err)
}

package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEndpoints(t *testing.T) {
	eps, err := ParseEndpoints("239.9.3.254+3:7148")
	if assert.NoError(t, err) && assert.Len(t, eps, 4) {
		assert.Equal(t, Endpoint{Host: "239.9.3.254", Port: 7148, Index: 0}, eps[0])
		assert.Equal(t, "239.9.3.255:7148", eps[1].String())
		assert.Equal(t, "239.9.4.0:7148", eps[2].String())
		assert.Equal(t, Endpoint{Host: "239.9.4.1", Port: 7148, Index: 3}, eps[3])
		assert.True(t, eps[3].IsMulticast())
	}

	eps, err = ParseEndpoints("localhost:7148, 127.0.0.1:7149")
	if assert.NoError(t, err) && assert.Len(t, eps, 2) {
		assert.Equal(t, "localhost:7148", eps[0].String())
		assert.Equal(t, 1, eps[1].Index)
		assert.False(t, eps[1].IsMulticast())
	}
}

func TestParseEndpointsErrors(t *testing.T) {
	_, err := ParseEndpoints("")
	assert.ErrorContains(t, err, "no endpoint")
	_, err = ParseEndpoints("239.9.3.1")
	assert.ErrorContains(t, err, "invalid endpoint")
	_, err = ParseEndpoints("239.9.3.1:http")
	assert.ErrorContains(t, err, "invalid port")
	_, err = ParseEndpoints("localhost+2:7148")
	assert.ErrorContains(t, err, "requires an IPv4 address")
	_, err = ParseEndpoints("255.255.255.255+1:7148")
	assert.ErrorContains(t, err, "overflows")
}

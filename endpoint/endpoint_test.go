package endpoint_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/endpoint"
)

func TestParseProtocolAndAddress(t *testing.T) {
	e, zerr := endpoint.Parse("tcp/192.168.1.1:7447")
	require.Nil(t, zerr)
	assert.Equal(t, "tcp", e.Protocol)
	assert.Equal(t, "192.168.1.1:7447", e.Address)
	assert.Nil(t, e.Metadata)
	assert.False(t, e.HasConfig)
}

func TestParseWithMetadataAndConfig(t *testing.T) {
	e, zerr := endpoint.Parse("udp/239.255.0.1:7447?iface=eth0;ttl=1#lowlatency")
	require.Nil(t, zerr)
	assert.Equal(t, "udp", e.Protocol)
	assert.Equal(t, "239.255.0.1:7447", e.Address)
	require.NotNil(t, e.Metadata)
	assert.Equal(t, "eth0", e.Metadata["iface"])
	assert.Equal(t, "1", e.Metadata["ttl"])
	assert.True(t, e.HasConfig)
	assert.Equal(t, "lowlatency", e.Config)
}

func TestParseWithConfigOnly(t *testing.T) {
	e, zerr := endpoint.Parse("ws/example.org:80#compress")
	require.Nil(t, zerr)
	assert.Equal(t, "ws", e.Protocol)
	assert.Equal(t, "example.org:80", e.Address)
	assert.Nil(t, e.Metadata)
	assert.Equal(t, "compress", e.Config)
}

func TestParseRejectsMissingSeparator(t *testing.T) {
	_, zerr := endpoint.Parse("tcp-only")
	require.NotNil(t, zerr)
	assert.Equal(t, core.InvalidArgument, zerr.Kind)
}

func TestParseRejectsEmptyProtocol(t *testing.T) {
	_, zerr := endpoint.Parse("/192.168.1.1:7447")
	require.NotNil(t, zerr)
	assert.Equal(t, core.InvalidArgument, zerr.Kind)
}

func TestParseRejectsEmptyAddress(t *testing.T) {
	_, zerr := endpoint.Parse("tcp/")
	require.NotNil(t, zerr)
	assert.Equal(t, core.InvalidArgument, zerr.Kind)
}

func TestParseRejectsMalformedMetadataEntry(t *testing.T) {
	_, zerr := endpoint.Parse("tcp/host:7447?noequalsign")
	require.NotNil(t, zerr)
	assert.Equal(t, core.InvalidArgument, zerr.Kind)
}

func TestRequireNoExtensionsRejectsMetadata(t *testing.T) {
	e, zerr := endpoint.Parse("tcp/host:7447?k=v")
	require.Nil(t, zerr)
	assert.NotNil(t, endpoint.RequireNoExtensions(e))
}

func TestRequireNoExtensionsRejectsConfig(t *testing.T) {
	e, zerr := endpoint.Parse("tcp/host:7447#cfg")
	require.Nil(t, zerr)
	assert.NotNil(t, endpoint.RequireNoExtensions(e))
}

func TestRequireNoExtensionsAcceptsBareEndpoint(t *testing.T) {
	e, zerr := endpoint.Parse("tcp/host:7447")
	require.Nil(t, zerr)
	assert.Nil(t, endpoint.RequireNoExtensions(e))
}

func TestStringRoundTripsBareEndpoint(t *testing.T) {
	e, zerr := endpoint.Parse("tcp/192.168.1.1:7447")
	require.Nil(t, zerr)
	assert.Equal(t, "tcp/192.168.1.1:7447", e.String())
}

package link_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/link"
)

func TestStreamedLinkRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	clientLink := link.NewStreamedLink(client, 65535)
	serverLink := link.NewStreamedLink(server, 65535)

	clientTx, _ := clientLink.Split()
	_, serverRx := serverLink.Split()

	done := make(chan *core.Error, 1)
	go func() { done <- clientTx.WriteAll([]byte("hello, session")) }()

	buf := make([]byte, len("hello, session"))
	require.Nil(t, serverRx.ReadExact(buf))
	assert.Equal(t, "hello, session", string(buf))
	require.Nil(t, <-done)
}

func TestStreamedLinkReadExactAcrossShortReads(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	_, rx := link.NewStreamedLink(server, 65535).Split()
	tx, _ := link.NewStreamedLink(client, 65535).Split()

	go func() {
		tx.Write([]byte("AB"))
		time.Sleep(10 * time.Millisecond)
		tx.Write([]byte("CD"))
	}()

	buf := make([]byte, 4)
	require.Nil(t, rx.ReadExact(buf))
	assert.Equal(t, "ABCD", string(buf))
}

func TestStreamedLinkClosedYieldsConnectionClosed(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	_, rx := link.NewStreamedLink(server, 65535).Split()
	client.Close()

	buf := make([]byte, 1)
	zerr := rx.ReadExact(buf)
	require.NotNil(t, zerr)
	assert.Equal(t, core.ConnectionClosed, zerr.Kind)
}

func TestDatagramLinkRoundTrip(t *testing.T) {
	serverAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	serverConn, err := net.ListenUDP("udp", serverAddr)
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	serverPeer, err := net.DialUDP("udp", serverAddr, clientConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer serverPeer.Close()

	clientTx, _ := link.NewDatagramLink(clientConn, 1472).Split()
	_, serverRx := link.NewDatagramLink(serverConn, 1472).Split()

	require.Nil(t, clientTx.Write([]byte("packet")))

	buf := make([]byte, 1472)
	n, zerr := serverRx.Read(buf)
	require.Nil(t, zerr)
	assert.Equal(t, "packet", string(buf[:n]))
}

func TestDatagramLinkRejectsOversizeWrite(t *testing.T) {
	serverAddr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	serverConn, err := net.ListenUDP("udp", serverAddr)
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	tx, _ := link.NewDatagramLink(clientConn, 4).Split()
	zerr := tx.Write([]byte("toolong"))
	require.NotNil(t, zerr)
	assert.Equal(t, core.CapacityExceeded, zerr.Kind)
}

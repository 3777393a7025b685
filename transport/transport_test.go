package transport_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/link"
	"github.com/zenohgo/zenoh08/transport"
	"github.com/zenohgo/zenoh08/wire"
)

func pipeLinks(t *testing.T) (link.StreamedLink, link.StreamedLink) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return link.NewStreamedLink(a, 8192), link.NewStreamedLink(b, 8192)
}

func openSessionPair(t *testing.T) (client, server *transport.Session) {
	t.Helper()
	clientLink, serverLink := pipeLinks(t)
	clientTx, clientRx := clientLink.Split()
	serverTx, serverRx := serverLink.Split()

	now := time.Unix(1700000000, 0)
	serverCfg := transport.Config{Lease: 20 * time.Second}
	clientCfg := transport.Config{Lease: 20 * time.Second}

	type result struct {
		sess *transport.Session
		err  *core.Error
	}
	serverDone := make(chan result, 1)
	go func() {
		s, err := transport.Accept(serverCfg, serverTx, serverRx, true, []byte("cookie-123"), now)
		serverDone <- result{s, err}
	}()

	clientSess, clientErr := transport.Open(clientCfg, clientTx, clientRx, true, now)
	require.Nil(t, clientErr)

	res := <-serverDone
	require.Nil(t, res.err)

	return clientSess, res.sess
}

func TestHandshakeNegotiatesSessionIdentities(t *testing.T) {
	client, server := openSessionPair(t)

	assert.True(t, client.PeerZID.Equal(server.LocalZID))
	assert.True(t, server.PeerZID.Equal(client.LocalZID))
	assert.Equal(t, transport.Connected, client.State())
	assert.Equal(t, transport.Connected, server.State())
}

func TestInitialSNIsDeterministic(t *testing.T) {
	mine, err := core.IDFromBytes([]byte{1, 2, 3})
	require.Nil(t, err)
	other, err := core.IDFromBytes([]byte{9, 8, 7})
	require.Nil(t, err)

	a := transport.InitialSN(mine, other, core.Bits32)
	b := transport.InitialSN(mine, other, core.Bits32)
	assert.Equal(t, a, b)
	assert.LessOrEqual(t, a, core.Bits32.Mask())
}

func TestSendPushDeliversToSubscriber(t *testing.T) {
	client, server := openSessionPair(t)

	received := make(chan transport.Sample, 1)
	_, zerr := server.Router.Subscribe("demo/example", func(s transport.Sample) {
		received <- s
	})
	require.Nil(t, zerr)

	now := time.Unix(1700000001, 0)
	done := make(chan *core.Error, 1)
	go func() {
		done <- server.RecvOnce(now)
	}()

	sendErr := client.SendPush(
		core.WireExpr{Suffix: "demo/example"},
		wire.Put{Payload: []byte("hello")},
		wire.Reliable, nil, now,
	)
	require.Nil(t, sendErr)
	require.Nil(t, <-done)

	select {
	case sample := <-received:
		assert.Equal(t, "demo/example", sample.KeyExpr)
		assert.Equal(t, []byte("hello"), sample.Payload)
	case <-time.After(time.Second):
		t.Fatal("subscriber callback was never invoked")
	}
}


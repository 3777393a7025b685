package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenohgo/zenoh08/core"
	"github.com/zenohgo/zenoh08/wire"
)

func TestResolveMappingSenderUsesRemoteAliasTable(t *testing.T) {
	r := NewRouter(8)
	require.Nil(t, r.HandleDeclare(&wire.Declare{
		ID:       1,
		Kind:     wire.DeclareKeyExpr,
		WireExpr: core.WireExpr{Suffix: "demo/sender"},
	}))

	ke, err := r.resolve(core.WireExpr{Scope: 1, Suffix: "", Mapping: core.MappingSender})
	require.Nil(t, err)
	assert.Equal(t, "demo/sender", ke)
}

func TestResolveMappingReceiverUsesLocalAliasTable(t *testing.T) {
	r := NewRouter(8)
	require.Nil(t, r.DeclareLocalKeyExpr(1, "demo/receiver"))

	ke, err := r.resolve(core.WireExpr{Scope: 1, Suffix: "", Mapping: core.MappingReceiver})
	require.Nil(t, err)
	assert.Equal(t, "demo/receiver", ke)
}

func TestResolveMappingReceiverDoesNotFallBackToRemoteTable(t *testing.T) {
	r := NewRouter(8)
	require.Nil(t, r.HandleDeclare(&wire.Declare{
		ID:       1,
		Kind:     wire.DeclareKeyExpr,
		WireExpr: core.WireExpr{Suffix: "demo/sender"},
	}))

	_, err := r.resolve(core.WireExpr{Scope: 1, Suffix: "", Mapping: core.MappingReceiver})
	require.NotNil(t, err)
	assert.Equal(t, core.InvalidArgument, err.Kind)
}

package network

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surrogate/pkg/approx"
	"surrogate/pkg/demo"
	"surrogate/pkg/errorest"
	"surrogate/pkg/protocol"
	"surrogate/pkg/surrogate"
)

func newServer(t *testing.T) *TCPServer {
	t.Helper()
	points := [][]float64{{0}, {1}, {2}}
	data := [][]float64{{10}, {12}, {24}}
	fa, err := approx.New(points, data, 2)
	require.NoError(t, err)
	oracle, err := demo.NewChiSquare(1, 10, 1)
	require.NoError(t, err)
	est, err := errorest.New(fa, oracle, errorest.MinDistance, 0.1, errorest.WithPosteriorFile(""))
	require.NoError(t, err)
	ev, err := surrogate.New(fa, est, demo.Parabola{}, oracle)
	require.NoError(t, err)
	return NewTCPServer(ev)
}

func TestDispatchEvaluate(t *testing.T) {
	s := newServer(t)
	var out bytes.Buffer
	req := &protocol.Packet{Op: protocol.OpEvaluate, Value: protocol.EncodeFloats([]float64{1})}
	require.NoError(t, s.dispatch(context.Background(), &out, req))

	resp, err := protocol.Decode(&out)
	require.NoError(t, err)
	assert.Equal(t, byte(protocol.RespVal), resp.Op)
	assert.Equal(t, []byte{protocol.FlagApproximated}, resp.Key)
	v, err := protocol.DecodeFloats(resp.Value)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 12}, v)
}

func TestDispatchErrors(t *testing.T) {
	s := newServer(t)
	for _, req := range []*protocol.Packet{
		{Op: 0x7F},
		{Op: protocol.OpEvaluate, Value: []byte{1, 2, 3}},
		{Op: protocol.OpEvaluate, Value: protocol.EncodeFloats([]float64{math.NaN()})},
		{Op: protocol.OpCalibrate},
	} {
		var out bytes.Buffer
		require.NoError(t, s.dispatch(context.Background(), &out, req))
		resp, err := protocol.Decode(&out)
		require.NoError(t, err)
		assert.Equal(t, byte(protocol.RespErr), resp.Op, "op 0x%02x", req.Op)
		assert.NotEmpty(t, resp.Value)
	}
}

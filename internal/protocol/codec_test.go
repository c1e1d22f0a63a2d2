package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeRoundTrip verifies that every message kind survives a trip
// through the wire envelope with its payload intact.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		msg  Message
	}{
		{
			name: "START with identity",
			msg:  Start{Name: "aya", Avatar: "◆"},
		},
		{
			name: "UPDATE_SCORE",
			msg:  UpdateScore{Score: 120},
		},
		{
			name: "GAME_OVER with final score",
			msg:  GameOver{Score: 310},
		},
		{
			name: "READY has no payload fields",
			msg:  Ready{},
		},
		{
			name: "REQUEST_MAP has no payload fields",
			msg:  RequestMap{},
		},
		{
			name: "GRID_UPDATE with grid and identity",
			msg: GridUpdate{
				Grid:           [][]int{{1, 2}, {3, 4}},
				Score:          40,
				OpponentName:   "rin",
				OpponentAvatar: "●",
			},
		},
		{
			name: "SYNC_MAP with identity",
			msg:  SyncMap{OpponentName: "rin", OpponentAvatar: "●"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Encode(tc.msg)
			require.NoError(t, err)

			decoded, err := Decode(raw)
			require.NoError(t, err)

			assert.Equal(t, tc.msg.Kind(), decoded.Kind())

			// Decode returns pointers; compare against the dereferenced value.
			switch want := tc.msg.(type) {
			case Start:
				assert.Equal(t, want, *decoded.(*Start))
			case UpdateScore:
				assert.Equal(t, want, *decoded.(*UpdateScore))
			case GameOver:
				assert.Equal(t, want, *decoded.(*GameOver))
			case GridUpdate:
				assert.Equal(t, want, *decoded.(*GridUpdate))
			case SyncMap:
				assert.Equal(t, want, *decoded.(*SyncMap))
			}
		})
	}
}

// TestWireShape pins the envelope layout and the camelCase payload keys that
// both peers must agree on.
func TestWireShape(t *testing.T) {
	raw, err := Encode(GridUpdate{
		Grid:           [][]int{{5}},
		Score:          10,
		OpponentName:   "aya",
		OpponentAvatar: "◆",
	})
	require.NoError(t, err)

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.JSONEq(t, `"GRID_UPDATE"`, string(env["type"]))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(env["payload"], &payload))
	assert.Contains(t, payload, "grid")
	assert.Contains(t, payload, "score")
	assert.Contains(t, payload, "opponentName")
	assert.Contains(t, payload, "opponentAvatar")
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"type":"TELEPORT","payload":{}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TELEPORT")
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	_, err := Decode([]byte(`{"type":`))
	require.Error(t, err)
}

// TestDecodeEmptyPayload: peers may omit the payload entirely for kinds
// that carry no fields.
func TestDecodeEmptyPayload(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"READY"}`))
	require.NoError(t, err)
	assert.Equal(t, KindReady, msg.Kind())
}

func TestCBORCodecRoundTrip(t *testing.T) {
	codec := NewCBORCodec()

	raw, err := codec.Marshal(UpdateScore{Score: 77})
	require.NoError(t, err)

	var got UpdateScore
	require.NoError(t, codec.Unmarshal(raw, &got))
	assert.Equal(t, 77, got.Score)
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "cbor"} {
		c, err := ByName(name)
		require.NoError(t, err, name)
		require.NotNil(t, c, name)
	}

	_, err := ByName("xml")
	assert.ErrorContains(t, err, `unknown wire format "xml"`)
}

func TestEncodeDecodeWithCBORSelected(t *testing.T) {
	prev := DefaultCodec
	defer func() { DefaultCodec = prev }()

	var err error
	DefaultCodec, err = ByName("cbor")
	require.NoError(t, err)

	raw, err := Encode(&Start{Name: "aya", Avatar: "★"})
	require.NoError(t, err)

	// The frame must be CBOR through and through, not a JSON envelope.
	assert.False(t, json.Valid(raw))

	msg, err := Decode(raw)
	require.NoError(t, err)
	start, ok := msg.(*Start)
	require.True(t, ok)
	assert.Equal(t, "aya", start.Name)
	assert.Equal(t, "★", start.Avatar)
}

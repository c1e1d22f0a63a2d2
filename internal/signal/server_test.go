package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBroker(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(NewServer().HandleWS))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialEndpoint(t *testing.T, url, id string) (*Client, chan Frame) {
	t.Helper()
	cli, err := Dial(context.Background(), url, id)
	require.NoError(t, err)
	t.Cleanup(func() { cli.Close() })

	frames := make(chan Frame, 16)
	cli.OnFrame(func(f Frame) { frames <- f })
	cli.Start()
	return cli, frames
}

func recvFrame(t *testing.T, frames chan Frame) Frame {
	t.Helper()
	select {
	case f := <-frames:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return Frame{}
	}
}

func TestRegisterAndForward(t *testing.T) {
	url := startBroker(t)

	alpha, _ := dialEndpoint(t, url, "duelgrid-1000")
	_, betaFrames := dialEndpoint(t, url, "duelgrid-2000")

	require.NoError(t, alpha.Send(Frame{
		Type: TypeOffer,
		To:   "duelgrid-2000",
		SDP:  "v=0 fake offer",
	}))

	f := recvFrame(t, betaFrames)
	assert.Equal(t, TypeOffer, f.Type)
	assert.Equal(t, "v=0 fake offer", f.SDP)
	assert.Equal(t, "duelgrid-1000", f.From, "broker must stamp the sender")
}

// TestSenderCannotSpoofFrom: whatever From the sender claims, the broker
// overwrites it with the registered id.
func TestSenderCannotSpoofFrom(t *testing.T) {
	url := startBroker(t)

	alpha, _ := dialEndpoint(t, url, "duelgrid-1000")
	_, betaFrames := dialEndpoint(t, url, "duelgrid-2000")

	require.NoError(t, alpha.Send(Frame{
		Type: TypeCandidate,
		From: "duelgrid-9999",
		To:   "duelgrid-2000",
	}))

	f := recvFrame(t, betaFrames)
	assert.Equal(t, "duelgrid-1000", f.From)
}

func TestDuplicateIDRejected(t *testing.T) {
	url := startBroker(t)

	_, _ = dialEndpoint(t, url, "duelgrid-1000")

	_, err := Dial(context.Background(), url, "duelgrid-1000")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIDInUse)
}

// TestIDReusableAfterDisconnect: the claim dies with the connection, so the
// same code can host again later.
func TestIDReusableAfterDisconnect(t *testing.T) {
	url := startBroker(t)

	first, err := Dial(context.Background(), url, "duelgrid-1000")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// The broker unregisters asynchronously with the read loop; allow a
	// few retries.
	deadline := time.Now().Add(2 * time.Second)
	for {
		second, err := Dial(context.Background(), url, "duelgrid-1000")
		if err == nil {
			second.Close()
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("id never became reusable: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestPeerAbsentBounce(t *testing.T) {
	url := startBroker(t)

	alpha, alphaFrames := dialEndpoint(t, url, "duelgrid-1000")

	require.NoError(t, alpha.Send(Frame{Type: TypeOffer, To: "duelgrid-7777"}))

	f := recvFrame(t, alphaFrames)
	assert.Equal(t, TypePeerAbsent, f.Type)
	assert.Equal(t, "duelgrid-7777", f.From)
	assert.Equal(t, "duelgrid-1000", f.To)
}

package network

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjellheim/elevator-fleet/internal/domain"
	"github.com/fjellheim/elevator-fleet/internal/events"
)

func TestPeerTable_TouchReportsNewOnlyOnce(t *testing.T) {
	table := newPeerTable()
	now := time.Now()

	assert.True(t, table.touch("peer-a", now))
	assert.False(t, table.touch("peer-a", now))
}

func TestPeerTable_SweepRemovesStalePeers(t *testing.T) {
	table := newPeerTable()
	past := time.Now().Add(-time.Minute)
	table.touch("peer-a", past)

	lost := table.sweep(time.Second, time.Now())

	assert.Equal(t, []string{"peer-a"}, lost)
	assert.Empty(t, table.sweep(time.Second, time.Now()))
}

func TestDataRX_AcksAndPublishesValidSnapshot(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	port := listener.LocalAddr().(*net.UDPAddr).Port
	listener.Close()

	out := make(chan events.NetworkEvent, 4)
	rx := newDataRX(port, out)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rx.run(ctx)
	time.Sleep(20 * time.Millisecond)

	sender, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer sender.Close()

	data := domain.NewElevatorData("peer-b", 4)
	data.Version = 2
	payload, err := json.Marshal(data)
	require.NoError(t, err)

	_, err = sender.Write(payload)
	require.NoError(t, err)

	require.NoError(t, sender.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, 16)
	n, err := sender.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, ackPayload, string(buf[:n]))

	select {
	case ev := <-out:
		require.Equal(t, events.NetworkEventSnapshot, ev.Kind)
		assert.Equal(t, uint64(2), ev.Snapshot.Version)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot event to be published")
	}
}

func TestDataRX_DropsMalformedDatagramWithoutAck(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	port := listener.LocalAddr().(*net.UDPAddr).Port
	listener.Close()

	out := make(chan events.NetworkEvent, 4)
	rx := newDataRX(port, out)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go rx.run(ctx)
	time.Sleep(20 * time.Millisecond)

	sender, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer sender.Close()

	_, err = sender.Write([]byte("not json"))
	require.NoError(t, err)

	require.NoError(t, sender.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	buf := make([]byte, 16)
	_, err = sender.Read(buf)
	assert.Error(t, err, "a malformed datagram must not be acked")

	select {
	case <-out:
		t.Fatal("a malformed datagram must not be published")
	default:
	}
}

func TestDataTX_SendWithRetrySucceedsWhenPeerAcks(t *testing.T) {
	peer, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer peer.Close()
	peerAddr := peer.LocalAddr().(*net.UDPAddr)

	go func() {
		buf := make([]byte, 1024)
		n, raddr, err := peer.ReadFromUDP(buf)
		if err != nil {
			return
		}
		_ = n
		peer.WriteToUDP([]byte(ackPayload), raddr)
	}()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	tx := newDataTX("self", 3, 500*time.Millisecond, nil)
	ok := tx.sendWithRetry(conn, peerAddr.String(), []byte("payload"))
	assert.True(t, ok)
}

func TestDataTX_SendWithRetryGivesUpWhenNoAck(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	unreachableAddr := listener.LocalAddr().(*net.UDPAddr)
	listener.Close()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	tx := newDataTX("self", 2, 30*time.Millisecond, nil)
	ok := tx.sendWithRetry(conn, unreachableAddr.String(), []byte("payload"))
	assert.False(t, ok)
}

func TestDeriveID_FallsBackToOfflineOnUnreachableRendezvous(t *testing.T) {
	id := DeriveID("127.0.0.1:1", 6330, 2, 5*time.Millisecond)
	assert.Equal(t, OfflineID, id)
}

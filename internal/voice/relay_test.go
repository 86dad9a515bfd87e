package voice_test

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/glaretechnologies/substrata-sub005/internal/idgen"
	"github.com/glaretechnologies/substrata-sub005/internal/voice"
)

func listenLoopback(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	return conn
}

func voicePacket(avatarID idgen.AvatarID, seq uint32) []byte {
	pkt := make([]byte, 12)
	binary.LittleEndian.PutUint32(pkt[0:4], 1) // packetTypeVoice
	binary.LittleEndian.PutUint32(pkt[4:8], uint32(avatarID))
	binary.LittleEndian.PutUint32(pkt[8:12], seq)
	return pkt
}

func TestRelayForwardsToKnownPeerOnly(t *testing.T) {
	relayConn := listenLoopback(t)
	relay := voice.NewRelay(relayConn)
	defer relay.Close()

	done := make(chan error, 1)
	go func() { done <- relay.ListenAndServe() }()

	client1 := listenLoopback(t)
	defer client1.Close()
	client2 := listenLoopback(t)
	defer client2.Close()

	relay.RegisterAvatar("world-a", idgen.AvatarID(1))
	relay.RegisterAvatar("world-a", idgen.AvatarID(2))

	relayAddr := relayConn.LocalAddr().(*net.UDPAddr)

	// Avatar 1's first packet: relay learns its endpoint, but avatar 2's
	// endpoint is not known yet, so nothing should be forwarded back.
	if _, err := client1.WriteToUDP(voicePacket(1, 0), relayAddr); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}
	client2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	buf := make([]byte, 64)
	if _, _, err := client2.ReadFromUDP(buf); err == nil {
		t.Fatalf("expected no forwarded packet before avatar 2 has sent anything")
	}

	// Avatar 2's first packet: relay now knows both endpoints and should
	// forward this packet to avatar 1.
	if _, err := client2.WriteToUDP(voicePacket(2, 5), relayAddr); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}
	client1.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := client1.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected client1 to receive a forwarded packet: %v", err)
	}
	if binary.LittleEndian.Uint32(buf[4:8]) != 2 {
		t.Fatalf("got forwarded avatar id %d, want 2", binary.LittleEndian.Uint32(buf[4:8]))
	}
	if n != 12 {
		t.Fatalf("got %d bytes, want 12", n)
	}

	// Now a further packet from avatar 1 should reach avatar 2.
	if _, err := client1.WriteToUDP(voicePacket(1, 1), relayAddr); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}
	client2.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := client2.ReadFromUDP(buf); err != nil {
		t.Fatalf("expected client2 to receive a forwarded packet: %v", err)
	}

	if err := relay.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ListenAndServe returned error after Close: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("ListenAndServe did not return after Close")
	}
}

func TestForwardDeliversToOtherWorldMembersOnly(t *testing.T) {
	relayConn := listenLoopback(t)
	relay := voice.NewRelay(relayConn)
	defer relay.Close()
	go relay.ListenAndServe()

	client1 := listenLoopback(t)
	defer client1.Close()
	client2 := listenLoopback(t)
	defer client2.Close()
	client3 := listenLoopback(t)
	defer client3.Close()

	relay.RegisterAvatar("world-a", idgen.AvatarID(1))
	relay.RegisterAvatar("world-a", idgen.AvatarID(2))
	relay.RegisterAvatar("world-b", idgen.AvatarID(3))
	relayAddr := relayConn.LocalAddr().(*net.UDPAddr)

	// Learn all three endpoints via a UDP packet each, the same way a
	// real client's voice stream would.
	client1.WriteToUDP(voicePacket(1, 0), relayAddr)
	time.Sleep(20 * time.Millisecond)
	client2.WriteToUDP(voicePacket(2, 0), relayAddr)
	time.Sleep(20 * time.Millisecond)
	client3.WriteToUDP(voicePacket(3, 0), relayAddr)
	time.Sleep(20 * time.Millisecond)

	buf := make([]byte, 64)
	client1.SetReadDeadline(time.Now().Add(time.Second))
	client1.ReadFromUDP(buf) // drain the forward triggered by avatar 2's own packet

	pkt := voicePacket(1, 99)
	relay.Forward("world-a", idgen.AvatarID(1), pkt)

	client2.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err := client2.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("expected client2 to receive the TCP-forwarded packet: %v", err)
	}
	if n != 12 || binary.LittleEndian.Uint32(buf[8:12]) != 99 {
		t.Fatalf("got n=%d seq=%d, want the forwarded packet verbatim", n, binary.LittleEndian.Uint32(buf[8:12]))
	}

	client3.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := client3.ReadFromUDP(buf); err == nil {
		t.Fatalf("expected avatar 3 in a different world not to receive the forward")
	}
}

func TestUnregisterAvatarStopsForwarding(t *testing.T) {
	relayConn := listenLoopback(t)
	relay := voice.NewRelay(relayConn)
	defer relay.Close()
	go relay.ListenAndServe()

	client1 := listenLoopback(t)
	defer client1.Close()
	client2 := listenLoopback(t)
	defer client2.Close()

	relay.RegisterAvatar("world-a", idgen.AvatarID(1))
	relay.RegisterAvatar("world-a", idgen.AvatarID(2))
	relayAddr := relayConn.LocalAddr().(*net.UDPAddr)

	// Learn both endpoints first.
	client1.WriteToUDP(voicePacket(1, 0), relayAddr)
	time.Sleep(20 * time.Millisecond)
	client2.WriteToUDP(voicePacket(2, 0), relayAddr)
	buf := make([]byte, 64)
	client1.SetReadDeadline(time.Now().Add(time.Second))
	client1.ReadFromUDP(buf) // drain the forward triggered by avatar 2's packet

	relay.UnregisterAvatar(idgen.AvatarID(2))

	if _, err := client1.WriteToUDP(voicePacket(1, 1), relayAddr); err != nil {
		t.Fatalf("WriteToUDP: %v", err)
	}
	client2.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := client2.ReadFromUDP(buf); err == nil {
		t.Fatalf("expected no packet to be forwarded to an unregistered avatar")
	}
}

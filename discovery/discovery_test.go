package discovery

import (
	"context"
	"net"
	"testing"

	"github.com/miekg/dns"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startDNS(t *testing.T, handler dns.HandlerFunc) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go srv.ActivateAndServe()
	<-started
	t.Cleanup(func() { srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestResolveProviders(t *testing.T) {
	addr := startDNS(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		if req.Question[0].Name == "_seed._tcp.example.org." {
			hdr := dns.RR_Header{Name: req.Question[0].Name, Rrtype: dns.TypeSRV, Class: dns.ClassINET, Ttl: 60}
			m.Answer = []dns.RR{
				&dns.SRV{Hdr: hdr, Priority: 20, Weight: 1, Port: 8443, Target: "backup.example.org."},
				&dns.SRV{Hdr: hdr, Priority: 10, Weight: 1, Port: 8443, Target: "b.example.org."},
				&dns.SRV{Hdr: hdr, Priority: 10, Weight: 5, Port: 9443, Target: "a.example.org."},
			}
		} else {
			m.Rcode = dns.RcodeNameError
		}
		w.WriteMsg(m)
	})

	r := NewResolver(addr)
	endpoints, err := r.ResolveProviders(context.Background(), "_seed._tcp.example.org")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://a.example.org:9443",
		"https://b.example.org:8443",
		"https://backup.example.org:8443",
	}, endpoints)

	_, err = r.ResolveProviders(context.Background(), "_seed._tcp.missing.org")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestResolveProviders_NoRecords(t *testing.T) {
	addr := startDNS(t, func(w dns.ResponseWriter, req *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(req)
		w.WriteMsg(m)
	})

	_, err := NewResolver(addr).ResolveProviders(context.Background(), "_seed._tcp.example.org")
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

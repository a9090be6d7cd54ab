// Package discovery resolves seed provider endpoints from DNS SRV records.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/scrtlabs/SecretNetwork-sub003/interfaces"
)

// DefaultServer is the local stub resolver.
const DefaultServer = "127.0.0.53:53"

// Resolver looks up SRV records of seed providers.
type Resolver struct {
	// Server is the DNS server address, host:port.
	Server string
	// Scheme prefixes resolved endpoints, "https" by default.
	Scheme string
	Client *dns.Client
}

func NewResolver(server string) *Resolver {
	if server == "" {
		server = DefaultServer
	}
	return &Resolver{
		Server: server,
		Scheme: "https",
		Client: &dns.Client{Timeout: 5 * time.Second},
	}
}

// ResolveProviders returns provider base URLs for the SRV name, ordered by
// priority and then by descending weight.
func (r *Resolver) ResolveProviders(ctx context.Context, name string) ([]string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)
	m.RecursionDesired = true

	client := r.Client
	if client == nil {
		client = new(dns.Client)
	}

	in, _, err := client.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return nil, fmt.Errorf("%w: srv lookup %s: %v", interfaces.ErrBackendUnavailable, name, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("%w: srv lookup %s: %s", interfaces.ErrBackendUnavailable, name, dns.RcodeToString[in.Rcode])
	}

	var records []*dns.SRV
	for _, answer := range in.Answer {
		if srv, ok := answer.(*dns.SRV); ok {
			records = append(records, srv)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no srv records for %s", interfaces.ErrBackendUnavailable, name)
	}

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Weight > records[j].Weight
	})

	scheme := r.Scheme
	if scheme == "" {
		scheme = "https"
	}

	endpoints := make([]string, 0, len(records))
	for _, srv := range records {
		host := strings.TrimSuffix(srv.Target, ".")
		endpoints = append(endpoints, scheme+"://"+net.JoinHostPort(host, strconv.Itoa(int(srv.Port))))
	}
	return endpoints, nil
}

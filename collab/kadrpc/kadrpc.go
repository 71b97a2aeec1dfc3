// Package kadrpc is a toy HTTP-transport reference implementation of
// cmn.RoutingTable and cmn.AsyncKademlia: a demo/integration-test-only
// collaborator, never imported by the vault core packages themselves
// (spec §4.8). Each peer runs the same handler and is addressed by
// Contact.Endpoint ("host:port").
/*
 * Copyright (c) 2024-2025, maidsafe-go contributors. All rights reserved.
 */
package kadrpc

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/ids"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wireContact is Contact's JSON shape: ids.Id marshals as its hex
// String(), not a raw byte array, so the wire form stays readable.
type wireContact struct {
	Id       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

type findRequest struct {
	Target string `json:"target"`
	K      int    `json:"k"`
}

type findResponse struct {
	Contacts []wireContact `json:"contacts"`
}

// Client is a RoutingTable/AsyncKademlia backed by HTTP calls to a
// fixed set of seed peers. It keeps no local routing state of its own:
// every lookup is a fan-out RPC, appropriate for a demo, not a
// production DHT.
type Client struct {
	httpClient *fasthttp.Client
	seeds      []string // "host:port" endpoints
	timeout    time.Duration
}

// New constructs a Client that fans requests out to seeds.
func New(seeds []string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &fasthttp.Client{Name: "vaultcore-kadrpc"},
		seeds:      seeds,
		timeout:    timeout,
	}
}

// GetClosestContacts implements cmn.RoutingTable by querying the first
// reachable seed's /kad/closest endpoint.
func (c *Client) GetClosestContacts(target ids.Id, k int) []cmn.Contact {
	contacts, err := c.queryOnce(target, k)
	if err != nil {
		return nil
	}
	return contacts
}

// FindKClosest implements cmn.AsyncKademlia: the RPC runs on its own
// goroutine and onComplete is invoked with the result.
func (c *Client) FindKClosest(target ids.Id, onComplete cmn.FindKClosestFunc) {
	go func() {
		contacts, err := c.queryOnce(target, defaultK)
		onComplete(contacts, err)
	}()
}

const defaultK = 8

func (c *Client) queryOnce(target ids.Id, k int) ([]cmn.Contact, error) {
	body, err := json.Marshal(findRequest{Target: target.String(), K: k})
	if err != nil {
		return nil, cmn.NewErr(cmn.FindNodesError, "kadrpc: encode request")
	}

	var lastErr error
	for _, seed := range c.seeds {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()

		req.SetRequestURI("http://" + seed + "/kad/closest")
		req.Header.SetMethod(fasthttp.MethodPost)
		req.Header.SetContentType("application/json")
		req.SetBody(body)

		doErr := c.httpClient.DoTimeout(req, resp, c.timeout)
		var out findResponse
		var decErr error
		if doErr == nil {
			decErr = json.Unmarshal(resp.Body(), &out)
		}

		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)

		if doErr != nil {
			lastErr = doErr
			continue
		}
		if decErr != nil {
			lastErr = decErr
			continue
		}
		return toContacts(out.Contacts), nil
	}
	if lastErr == nil {
		lastErr = cmn.NewErr(cmn.FindNodesError, "kadrpc: no seeds configured")
	}
	return nil, cmn.NewErrf(cmn.FindNodesError, "kadrpc: all seeds unreachable: %v", lastErr)
}

func toContacts(wire []wireContact) []cmn.Contact {
	out := make([]cmn.Contact, 0, len(wire))
	for _, w := range wire {
		id, err := ids.FromHex(w.Id)
		if err != nil {
			continue
		}
		out = append(out, cmn.Contact{Id: id, Endpoint: w.Endpoint})
	}
	return out
}

// Server exposes a routing table over HTTP for other kadrpc.Client
// instances to query. contacts is the in-memory set of known contacts;
// a real deployment would back it with a proper Kademlia k-bucket
// structure, out of scope for this reference transport.
type Server struct {
	mu       sync.RWMutex
	contacts []cmn.Contact
	k        int
}

// NewServer constructs a Server that answers with its contact set
// closeness-ranked against the request target and cut to the first k
// (the request's k, or this default k when the request's is not
// positive).
func NewServer(k int) *Server {
	return &Server{k: k}
}

// SetContacts replaces the server's known contact set.
func (s *Server) SetContacts(contacts []cmn.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts = append([]cmn.Contact(nil), contacts...)
}

// Handler is a fasthttp.RequestHandler for POST /kad/closest, suitable
// for passing directly as fasthttp.Server{Handler: srv.Handler}.
func (s *Server) Handler(ctx *fasthttp.RequestCtx) {
	if !ctx.IsPost() {
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	var req findRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	target, err := ids.FromHex(req.Target)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	k := req.K
	if k <= 0 {
		k = s.k
	}

	s.mu.RLock()
	closest := closestTo(target, s.contacts, k)
	s.mu.RUnlock()

	wire := make([]wireContact, 0, len(closest))
	for _, c := range closest {
		wire = append(wire, wireContact{Id: c.Id.String(), Endpoint: c.Endpoint})
	}
	body, err := json.Marshal(findResponse{Contacts: wire})
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

// closestTo sorts contacts by XOR distance to target and returns the
// first k, matching the Kademlia distance metric used throughout the
// spec's routing-table capability.
func closestTo(target ids.Id, contacts []cmn.Contact, k int) []cmn.Contact {
	sorted := append([]cmn.Contact(nil), contacts...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && ids.Xor(sorted[j].Id, target).Less(ids.Xor(sorted[j-1].Id, target)); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}

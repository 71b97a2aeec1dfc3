package kadrpc

import (
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/maidsafe-go/vaultcore/cmn"
	"github.com/maidsafe-go/vaultcore/ids"
)

func mkID(b byte) ids.Id {
	var id ids.Id
	id[ids.Size-1] = b
	return id
}

// startServer boots srv on an ephemeral TCP port and tears it down when
// the test finishes, returning its dial address.
func startServer(t *testing.T, srv *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fs := &fasthttp.Server{Handler: srv.Handler}
	go fs.Serve(ln)
	t.Cleanup(func() { fs.Shutdown() })
	return ln.Addr().String()
}

func TestClientFetchesClosestFromServer(t *testing.T) {
	srv := NewServer(2)
	srv.SetContacts([]cmn.Contact{
		{Id: mkID(1), Endpoint: "peer-1:9000"},
		{Id: mkID(2), Endpoint: "peer-2:9000"},
		{Id: mkID(3), Endpoint: "peer-3:9000"},
	})
	addr := startServer(t, srv)

	client := New([]string{addr}, time.Second)
	got := client.GetClosestContacts(mkID(1), 2)
	if len(got) != 2 {
		t.Fatalf("want 2 closest contacts, got %d: %v", len(got), got)
	}
}

func TestClientFindKClosestInvokesCallback(t *testing.T) {
	srv := NewServer(4)
	srv.SetContacts([]cmn.Contact{{Id: mkID(5), Endpoint: "peer-5:9000"}})
	addr := startServer(t, srv)

	client := New([]string{addr}, time.Second)
	done := make(chan struct{})
	var gotErr error
	var gotContacts []cmn.Contact
	client.FindKClosest(mkID(1), func(contacts []cmn.Contact, err error) {
		gotContacts, gotErr = contacts, err
		close(done)
	})
	<-done
	if gotErr != nil {
		t.Fatalf("unexpected error: %v", gotErr)
	}
	if len(gotContacts) != 1 || gotContacts[0].Id != mkID(5) {
		t.Fatalf("want [peer-5], got %v", gotContacts)
	}
}

func TestClientAllSeedsUnreachableIsError(t *testing.T) {
	client := New([]string{"127.0.0.1:1"}, 50*time.Millisecond)
	got := client.GetClosestContacts(mkID(1), 2)
	if got != nil {
		t.Fatalf("want nil contacts on unreachable seed, got %v", got)
	}
}

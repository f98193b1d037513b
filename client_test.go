// Copyright 2024-2025 The OpenJProxy Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ojp_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	ojp "github.com/openjproxy/ojp-go"
	"github.com/openjproxy/ojp-go/endpoint"
	"github.com/openjproxy/ojp-go/router"
	"github.com/openjproxy/ojp-go/serde"
	"github.com/openjproxy/ojp-go/wire"
)

const testLocator = "jdbc:ojp[e0:1059,e1:1059,e2:1060]_postgresql://h:5432/db"

var (
	ep0 = endpoint.Endpoint{Host: "e0", Port: 1059}
	ep1 = endpoint.Endpoint{Host: "e1", Port: 1059}
	ep2 = endpoint.Endpoint{Host: "e2", Port: 1060}
)

// testCluster fakes a fleet of proxy servers behind the dial function.
type testCluster struct {
	mu      sync.Mutex
	calls   []endpoint.Endpoint
	failing map[endpoint.Endpoint]error
	dialErr error
	values  []byte

	queryPages [][]byte
}

func newTestCluster() *testCluster {
	return &testCluster{failing: map[endpoint.Endpoint]error{}}
}

func (tc *testCluster) dial(_ context.Context, ep endpoint.Endpoint) (*router.Handle, error) {
	tc.mu.Lock()
	err := tc.dialErr
	tc.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return router.NewHandle(ep, &fakeService{tc: tc, ep: ep}, nil), nil
}

func (tc *testCluster) failDials(err error) {
	tc.mu.Lock()
	tc.dialErr = err
	tc.mu.Unlock()
}

func (tc *testCluster) serve(ep endpoint.Endpoint) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.calls = append(tc.calls, ep)
	return tc.failing[ep]
}

func (tc *testCluster) fail(ep endpoint.Endpoint, err error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if err == nil {
		delete(tc.failing, ep)
	} else {
		tc.failing[ep] = err
	}
}

func (tc *testCluster) recover() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.failing = map[endpoint.Endpoint]error{}
}

func (tc *testCluster) served() []endpoint.Endpoint {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]endpoint.Endpoint(nil), tc.calls...)
}

func (tc *testCluster) session(ep endpoint.Endpoint) *wire.SessionInfo {
	return &wire.SessionInfo{SessionUUID: "sess-" + ep.Host, DbName: wire.DbPostgres}
}

type fakeService struct {
	tc *testCluster
	ep endpoint.Endpoint
}

func (s *fakeService) Connect(_ context.Context, _ *wire.ConnectionDetails, _ ...grpc.CallOption) (*wire.SessionInfo, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	return s.tc.session(s.ep), nil
}

func (s *fakeService) ExecuteUpdate(_ context.Context, req *wire.StatementRequest, _ ...grpc.CallOption) (*wire.OpResult, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	session := req.Session
	if session == nil || session.GetSessionUUID() == "" {
		session = s.tc.session(s.ep)
	}
	return &wire.OpResult{Session: session, Type: wire.ResultInteger}, nil
}

func (s *fakeService) ExecuteQuery(_ context.Context, _ *wire.StatementRequest, _ ...grpc.CallOption) (wire.StatementService_ExecuteQueryClient, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	s.tc.mu.Lock()
	pages := make([]*wire.OpResult, len(s.tc.queryPages))
	for i, value := range s.tc.queryPages {
		pages[i] = &wire.OpResult{
			Session: s.tc.session(s.ep),
			Type:    wire.ResultResultSetData,
			Value:   value,
		}
	}
	s.tc.mu.Unlock()
	return &fakeQueryStream{pages: pages}, nil
}

type fakeQueryStream struct {
	grpc.ClientStream
	pages []*wire.OpResult
	idx   int
}

func (s *fakeQueryStream) Recv() (*wire.OpResult, error) {
	if s.idx >= len(s.pages) {
		return nil, io.EOF
	}
	page := s.pages[s.idx]
	s.idx++
	return page, nil
}

func (s *fakeService) FetchNextRows(_ context.Context, req *wire.ResultSetFetchRequest, _ ...grpc.CallOption) (*wire.OpResult, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	return &wire.OpResult{Session: req.Session, Type: wire.ResultResultSetData, Value: []byte{byte(req.Size)}}, nil
}

func (s *fakeService) CreateLob(context.Context, ...grpc.CallOption) (wire.StatementService_CreateLobClient, error) {
	panic("not exercised")
}

func (s *fakeService) ReadLob(context.Context, *wire.ReadLobRequest, ...grpc.CallOption) (wire.StatementService_ReadLobClient, error) {
	panic("not exercised")
}

func (s *fakeService) StartTransaction(_ context.Context, session *wire.SessionInfo, _ ...grpc.CallOption) (*wire.SessionInfo, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *fakeService) CommitTransaction(_ context.Context, session *wire.SessionInfo, _ ...grpc.CallOption) (*wire.SessionInfo, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *fakeService) RollbackTransaction(_ context.Context, session *wire.SessionInfo, _ ...grpc.CallOption) (*wire.SessionInfo, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *fakeService) TerminateSession(context.Context, *wire.SessionInfo, ...grpc.CallOption) (*wire.SessionTerminationStatus, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	return &wire.SessionTerminationStatus{Terminated: true}, nil
}

func (s *fakeService) CallResource(_ context.Context, req *wire.CallResourceRequest, _ ...grpc.CallOption) (*wire.CallResourceResponse, error) {
	if err := s.tc.serve(s.ep); err != nil {
		return nil, err
	}
	return &wire.CallResourceResponse{Session: req.Session, Values: s.tc.values}, nil
}

func newTestClient(t *testing.T, tc *testCluster, options ...ojp.Option) *ojp.Client {
	t.Helper()
	options = append([]ojp.Option{
		ojp.WithDialFunc(tc.dial),
		ojp.WithRetryDelay(time.Millisecond),
	}, options...)
	client, err := ojp.New(testLocator, options...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func unavailable() error {
	return status.Error(codes.Unavailable, "connection refused")
}

func TestNewRejectsInvalidLocator(t *testing.T) {
	t.Parallel()
	_, err := ojp.New("jdbc:ojp[e0:99999]_h2:mem:t")
	require.Error(t, err)
	assert.Equal(t, ojp.KindInvalidLocator, ojp.KindOf(err))
}

func TestClientLocatorAccessors(t *testing.T) {
	t.Parallel()
	client := newTestClient(t, newTestCluster())
	assert.Equal(t, "jdbc:postgresql://h:5432/db", client.DownstreamURL())
	assert.Equal(t, "default", client.PoolProfile())
	assert.Equal(t, []endpoint.Endpoint{ep0, ep1, ep2}, client.Endpoints())
}

func TestConnectRoundRobin(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	client := newTestClient(t, tc)

	for i := 0; i < 6; i++ {
		_, err := client.Connect(context.Background(), ojp.ConnectConfig{User: "app"})
		require.NoError(t, err)
	}
	assert.Equal(t, []endpoint.Endpoint{ep0, ep1, ep2, ep0, ep1, ep2}, tc.served())
}

func TestConnectFailsOver(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	tc.fail(ep0, unavailable())
	client := newTestClient(t, tc)

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)
	assert.Equal(t, []endpoint.Endpoint{ep0, ep1}, tc.served())
	assert.Equal(t, "sess-e1", sess.ID())

	// The session sticks to the endpoint that created it.
	_, err = client.ExecuteUpdate(context.Background(), sess, "update t set x = 1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, ep1, tc.served()[2])
}

func TestSessionStickiness(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	client := newTestClient(t, tc)

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = client.ExecuteUpdate(context.Background(), sess, "update t set x = 1", nil, nil)
		require.NoError(t, err)
	}
	// Without the pin, round-robin would have moved on from ep0.
	assert.Equal(t, []endpoint.Endpoint{ep0, ep0, ep0, ep0}, tc.served())
}

func TestPinMovesWhenEndpointFails(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	client := newTestClient(t, tc)

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)
	require.Equal(t, "sess-e0", sess.ID())

	tc.fail(ep0, unavailable())
	_, err = client.ExecuteUpdate(context.Background(), sess, "update t set x = 1", nil, nil)
	require.NoError(t, err)

	served := tc.served()
	// connect on ep0, failed update on ep0, retried update elsewhere.
	require.Len(t, served, 3)
	assert.Equal(t, ep0, served[1])
	rescue := served[2]
	assert.NotEqual(t, ep0, rescue)

	// The session is now pinned to the endpoint that answered.
	_, err = client.ExecuteUpdate(context.Background(), sess, "update t set x = 2", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, rescue, tc.served()[3])
}

func TestTerminalErrorIsNotRetried(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	tc.fail(ep0, status.Error(codes.Internal, "syntax error"))
	client := newTestClient(t, tc)

	_, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.Error(t, err)
	assert.Equal(t, ojp.KindRemoteFailure, ojp.KindOf(err))
	assert.Len(t, tc.served(), 1)
}

func TestNoHealthyEndpoints(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	tc.fail(ep0, unavailable())
	tc.fail(ep1, unavailable())
	tc.fail(ep2, unavailable())
	client := newTestClient(t, tc, ojp.WithRetryAttempts(3))

	// Every endpoint fails and gets marked down; with the attempt budget
	// spent the transport classification surfaces.
	_, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.Error(t, err)
	assert.Equal(t, ojp.KindTransportUnavailable, ojp.KindOf(err))
}

func TestNoHealthyEndpointsWhenNothingDials(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	tc.failDials(unavailable())
	client := newTestClient(t, tc, ojp.WithRetryAttempts(3))

	// Every dial fails, every endpoint gets marked down, and the recovery
	// sweep cannot resurrect anything: the router runs out of candidates.
	_, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.Error(t, err)
	assert.Equal(t, ojp.KindNoHealthyEndpoints, ojp.KindOf(err))
}

func TestUnlimitedRetriesRecover(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	tc.fail(ep0, unavailable())
	tc.fail(ep1, unavailable())
	tc.fail(ep2, unavailable())
	client := newTestClient(t, tc, ojp.WithRetryAttempts(ojp.UnlimitedRetries))

	go func() {
		time.Sleep(20 * time.Millisecond)
		tc.recover()
	}()

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID())
}

func TestFetchNextRowsDefaultsPageSize(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	client := newTestClient(t, tc)

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)
	result, err := client.FetchNextRows(context.Background(), sess, "rs-1", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(wire.RowsPerResultSetDataBlock)}, result.Value)
}

func TestTransactionOpsFollowSession(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	client := newTestClient(t, tc)

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)
	require.NoError(t, client.StartTransaction(context.Background(), sess))
	require.NoError(t, client.CommitTransaction(context.Background(), sess))
	require.NoError(t, client.RollbackTransaction(context.Background(), sess))
	assert.Equal(t, []endpoint.Endpoint{ep0, ep0, ep0, ep0}, tc.served())
}

func TestCallResourceDecodesValue(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	var err error
	tc.values, err = serde.Marshal(int64(4096))
	require.NoError(t, err)
	client := newTestClient(t, tc)

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)

	length, err := client.LobLength(context.Background(), sess, "lob-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), length)
}

func TestExecuteQueryStreamsPages(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	tc.queryPages = [][]byte{{1}, {2}, {3}}
	client := newTestClient(t, tc)

	sess, err := client.Connect(context.Background(), ojp.ConnectConfig{})
	require.NoError(t, err)

	stream, err := client.ExecuteQuery(context.Background(), sess, "select x from t", nil, nil)
	require.NoError(t, err)

	var pages [][]byte
	for {
		page, err := stream.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		pages = append(pages, page.Value)
	}
	assert.Equal(t, [][]byte{{1}, {2}, {3}}, pages)

	// The query landed on the session's endpoint.
	served := tc.served()
	assert.Equal(t, served[0], served[1])
}

func TestConnectCancelled(t *testing.T) {
	t.Parallel()
	tc := newTestCluster()
	client := newTestClient(t, tc)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Connect(ctx, ojp.ConnectConfig{})
	require.Error(t, err)
	assert.Equal(t, ojp.KindCancelled, ojp.KindOf(err))
}

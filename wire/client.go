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

package wire

import (
	"context"

	"google.golang.org/grpc"
)

// Fully-qualified method names of the StatementService, as the server
// registers them.
const (
	MethodConnect             = "/ojp.v1.StatementService/Connect"
	MethodExecuteUpdate       = "/ojp.v1.StatementService/ExecuteUpdate"
	MethodExecuteQuery        = "/ojp.v1.StatementService/ExecuteQuery"
	MethodFetchNextRows       = "/ojp.v1.StatementService/FetchNextRows"
	MethodCreateLob           = "/ojp.v1.StatementService/CreateLob"
	MethodReadLob             = "/ojp.v1.StatementService/ReadLob"
	MethodStartTransaction    = "/ojp.v1.StatementService/StartTransaction"
	MethodCommitTransaction   = "/ojp.v1.StatementService/CommitTransaction"
	MethodRollbackTransaction = "/ojp.v1.StatementService/RollbackTransaction"
	MethodTerminateSession    = "/ojp.v1.StatementService/TerminateSession"
	MethodCallResource        = "/ojp.v1.StatementService/CallResource"
)

// StatementServiceClient is the client API of the proxy's statement service.
// It is hand-maintained against ojp.proto; only the client side exists in
// this module.
type StatementServiceClient interface {
	// Connect opens a session against the downstream database embedded in the
	// locator carried by the connection details.
	Connect(ctx context.Context, in *ConnectionDetails, opts ...grpc.CallOption) (*SessionInfo, error)
	// ExecuteUpdate runs DML/DDL and returns a single OpResult.
	ExecuteUpdate(ctx context.Context, in *StatementRequest, opts ...grpc.CallOption) (*OpResult, error)
	// ExecuteQuery runs a query; the server streams OpResult pages of at most
	// RowsPerResultSetDataBlock rows each.
	ExecuteQuery(ctx context.Context, in *StatementRequest, opts ...grpc.CallOption) (StatementService_ExecuteQueryClient, error)
	// FetchNextRows pulls the next page of a server-held result set.
	FetchNextRows(ctx context.Context, in *ResultSetFetchRequest, opts ...grpc.CallOption) (*OpResult, error)
	// CreateLob opens a bidirectional stream: the client sends LobDataBlock
	// frames, the server answers with LobReference values.
	CreateLob(ctx context.Context, opts ...grpc.CallOption) (StatementService_CreateLobClient, error)
	// ReadLob streams LobDataBlock frames of a stored LOB back to the client.
	ReadLob(ctx context.Context, in *ReadLobRequest, opts ...grpc.CallOption) (StatementService_ReadLobClient, error)
	StartTransaction(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionInfo, error)
	CommitTransaction(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionInfo, error)
	RollbackTransaction(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionInfo, error)
	TerminateSession(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionTerminationStatus, error)
	CallResource(ctx context.Context, in *CallResourceRequest, opts ...grpc.CallOption) (*CallResourceResponse, error)
}

type statementServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewStatementServiceClient returns a StatementServiceClient backed by the
// given connection.
func NewStatementServiceClient(cc grpc.ClientConnInterface) StatementServiceClient {
	return &statementServiceClient{cc}
}

var (
	executeQueryStreamDesc = &grpc.StreamDesc{
		StreamName:    "ExecuteQuery",
		ServerStreams: true,
	}
	createLobStreamDesc = &grpc.StreamDesc{
		StreamName:    "CreateLob",
		ServerStreams: true,
		ClientStreams: true,
	}
	readLobStreamDesc = &grpc.StreamDesc{
		StreamName:    "ReadLob",
		ServerStreams: true,
	}
)

func (c *statementServiceClient) Connect(ctx context.Context, in *ConnectionDetails, opts ...grpc.CallOption) (*SessionInfo, error) {
	out := new(SessionInfo)
	if err := c.cc.Invoke(ctx, MethodConnect, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statementServiceClient) ExecuteUpdate(ctx context.Context, in *StatementRequest, opts ...grpc.CallOption) (*OpResult, error) {
	out := new(OpResult)
	if err := c.cc.Invoke(ctx, MethodExecuteUpdate, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statementServiceClient) ExecuteQuery(ctx context.Context, in *StatementRequest, opts ...grpc.CallOption) (StatementService_ExecuteQueryClient, error) {
	stream, err := c.cc.NewStream(ctx, executeQueryStreamDesc, MethodExecuteQuery, opts...)
	if err != nil {
		return nil, err
	}
	x := &statementServiceExecuteQueryClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// StatementService_ExecuteQueryClient receives the streamed OpResult pages
// of a query.
type StatementService_ExecuteQueryClient interface {
	Recv() (*OpResult, error)
	grpc.ClientStream
}

type statementServiceExecuteQueryClient struct {
	grpc.ClientStream
}

func (x *statementServiceExecuteQueryClient) Recv() (*OpResult, error) {
	m := new(OpResult)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *statementServiceClient) FetchNextRows(ctx context.Context, in *ResultSetFetchRequest, opts ...grpc.CallOption) (*OpResult, error) {
	out := new(OpResult)
	if err := c.cc.Invoke(ctx, MethodFetchNextRows, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statementServiceClient) CreateLob(ctx context.Context, opts ...grpc.CallOption) (StatementService_CreateLobClient, error) {
	stream, err := c.cc.NewStream(ctx, createLobStreamDesc, MethodCreateLob, opts...)
	if err != nil {
		return nil, err
	}
	return &statementServiceCreateLobClient{stream}, nil
}

// StatementService_CreateLobClient is the bidirectional LOB write stream:
// LobDataBlock frames out, LobReference values in.
type StatementService_CreateLobClient interface {
	Send(*LobDataBlock) error
	Recv() (*LobReference, error)
	grpc.ClientStream
}

type statementServiceCreateLobClient struct {
	grpc.ClientStream
}

func (x *statementServiceCreateLobClient) Send(m *LobDataBlock) error {
	return x.ClientStream.SendMsg(m)
}

func (x *statementServiceCreateLobClient) Recv() (*LobReference, error) {
	m := new(LobReference)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *statementServiceClient) ReadLob(ctx context.Context, in *ReadLobRequest, opts ...grpc.CallOption) (StatementService_ReadLobClient, error) {
	stream, err := c.cc.NewStream(ctx, readLobStreamDesc, MethodReadLob, opts...)
	if err != nil {
		return nil, err
	}
	x := &statementServiceReadLobClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// StatementService_ReadLobClient receives the streamed frames of a LOB read.
type StatementService_ReadLobClient interface {
	Recv() (*LobDataBlock, error)
	grpc.ClientStream
}

type statementServiceReadLobClient struct {
	grpc.ClientStream
}

func (x *statementServiceReadLobClient) Recv() (*LobDataBlock, error) {
	m := new(LobDataBlock)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *statementServiceClient) StartTransaction(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionInfo, error) {
	out := new(SessionInfo)
	if err := c.cc.Invoke(ctx, MethodStartTransaction, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statementServiceClient) CommitTransaction(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionInfo, error) {
	out := new(SessionInfo)
	if err := c.cc.Invoke(ctx, MethodCommitTransaction, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statementServiceClient) RollbackTransaction(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionInfo, error) {
	out := new(SessionInfo)
	if err := c.cc.Invoke(ctx, MethodRollbackTransaction, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statementServiceClient) TerminateSession(ctx context.Context, in *SessionInfo, opts ...grpc.CallOption) (*SessionTerminationStatus, error) {
	out := new(SessionTerminationStatus)
	if err := c.cc.Invoke(ctx, MethodTerminateSession, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *statementServiceClient) CallResource(ctx context.Context, in *CallResourceRequest, opts ...grpc.CallOption) (*CallResourceResponse, error) {
	out := new(CallResourceResponse)
	if err := c.cc.Invoke(ctx, MethodCallResource, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

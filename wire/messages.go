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
	"github.com/golang/protobuf/proto"
)

// DbName identifies the database family behind the downstream locator. The
// LOB engine keys its framing variants off this value.
type DbName int32

const (
	DbUnknown   DbName = 0
	DbH2        DbName = 1
	DbPostgres  DbName = 2
	DbMySQL     DbName = 3
	DbMariaDB   DbName = 4
	DbOracle    DbName = 5
	DbSQLServer DbName = 6
)

var dbNameName = map[DbName]string{
	DbUnknown:   "DB_UNKNOWN",
	DbH2:        "DB_H2",
	DbPostgres:  "DB_POSTGRES",
	DbMySQL:     "DB_MYSQL",
	DbMariaDB:   "DB_MARIADB",
	DbOracle:    "DB_ORACLE",
	DbSQLServer: "DB_SQL_SERVER",
}

func (d DbName) String() string {
	if s, ok := dbNameName[d]; ok {
		return s
	}
	return "DB_UNKNOWN"
}

// LobType tags the payload of a LOB transfer.
type LobType int32

const (
	LobTypeBinary            LobType = 0
	LobTypeCharacter         LobType = 1
	LobTypeNationalCharacter LobType = 2
)

var lobTypeName = map[LobType]string{
	LobTypeBinary:            "LOB_TYPE_BINARY",
	LobTypeCharacter:         "LOB_TYPE_CHARACTER",
	LobTypeNationalCharacter: "LOB_TYPE_NATIONAL_CHARACTER",
}

func (l LobType) String() string {
	if s, ok := lobTypeName[l]; ok {
		return s
	}
	return "LOB_TYPE_BINARY"
}

// ResourceType names the kind of server-side resource a CallResourceRequest
// targets.
type ResourceType int32

const (
	ResourceConnection  ResourceType = 0
	ResourceStatement   ResourceType = 1
	ResourceResultSet   ResourceType = 2
	ResourceLob         ResourceType = 3
	ResourceSavepoint   ResourceType = 4
	ResourceTransaction ResourceType = 5
)

var resourceTypeName = map[ResourceType]string{
	ResourceConnection:  "RES_CONNECTION",
	ResourceStatement:   "RES_STATEMENT",
	ResourceResultSet:   "RES_RESULT_SET",
	ResourceLob:         "RES_LOB",
	ResourceSavepoint:   "RES_SAVEPOINT",
	ResourceTransaction: "RES_TRANSACTION",
}

func (r ResourceType) String() string {
	if s, ok := resourceTypeName[r]; ok {
		return s
	}
	return "RES_CONNECTION"
}

// CallType is the verb of a resource call.
type CallType int32

const (
	CallGet    CallType = 0
	CallSet    CallType = 1
	CallCall   CallType = 2
	CallUpdate CallType = 3
	CallLength CallType = 4
	CallFree   CallType = 5
)

var callTypeName = map[CallType]string{
	CallGet:    "CALL_GET",
	CallSet:    "CALL_SET",
	CallCall:   "CALL_CALL",
	CallUpdate: "CALL_UPDATE",
	CallLength: "CALL_LENGTH",
	CallFree:   "CALL_FREE",
}

func (c CallType) String() string {
	if s, ok := callTypeName[c]; ok {
		return s
	}
	return "CALL_GET"
}

// ResultType tags the payload of an OpResult.
type ResultType int32

const (
	ResultInteger       ResultType = 0
	ResultResultSetData ResultType = 1
	ResultUUIDString    ResultType = 2
	ResultLobReference  ResultType = 3
	ResultNull          ResultType = 4
)

var resultTypeName = map[ResultType]string{
	ResultInteger:       "INTEGER",
	ResultResultSetData: "RESULT_SET_DATA",
	ResultUUIDString:    "UUID_STRING",
	ResultLobReference:  "LOB_REFERENCE",
	ResultNull:          "NULL",
}

func (r ResultType) String() string {
	if s, ok := resultTypeName[r]; ok {
		return s
	}
	return "INTEGER"
}

// ConnectionDetails opens a session. The URL carries the full composite
// locator; the server extracts the downstream locator itself. Properties is
// an opaque serialized blob of pool sizing hints and driver options.
type ConnectionDetails struct {
	Url        string `protobuf:"bytes,1,opt,name=url,proto3" json:"url,omitempty"`
	User       string `protobuf:"bytes,2,opt,name=user,proto3" json:"user,omitempty"`
	Password   string `protobuf:"bytes,3,opt,name=password,proto3" json:"password,omitempty"`
	ClientUUID string `protobuf:"bytes,4,opt,name=clientUUID,proto3" json:"clientUUID,omitempty"`
	Properties []byte `protobuf:"bytes,5,opt,name=properties,proto3" json:"properties,omitempty"`
}

func (m *ConnectionDetails) Reset()         { *m = ConnectionDetails{} }
func (m *ConnectionDetails) String() string { return proto.CompactTextString(m) }
func (*ConnectionDetails) ProtoMessage()    {}

// SessionInfo identifies one logical database connection held by the server.
// The server may return a replacement SessionInfo on every response; callers
// must adopt it while the SessionUUID stays stable.
type SessionInfo struct {
	SessionUUID  string `protobuf:"bytes,1,opt,name=sessionUUID,proto3" json:"sessionUUID,omitempty"`
	ConnHash     string `protobuf:"bytes,2,opt,name=connHash,proto3" json:"connHash,omitempty"`
	ClientUUID   string `protobuf:"bytes,3,opt,name=clientUUID,proto3" json:"clientUUID,omitempty"`
	DbName       DbName `protobuf:"varint,4,opt,name=dbName,proto3,enum=ojp.v1.DbName" json:"dbName,omitempty"`
	SessionState []byte `protobuf:"bytes,5,opt,name=sessionState,proto3" json:"sessionState,omitempty"`
}

func (m *SessionInfo) Reset()         { *m = SessionInfo{} }
func (m *SessionInfo) String() string { return proto.CompactTextString(m) }
func (*SessionInfo) ProtoMessage()    {}

func (m *SessionInfo) GetSessionUUID() string {
	if m == nil {
		return ""
	}
	return m.SessionUUID
}

func (m *SessionInfo) GetDbName() DbName {
	if m == nil {
		return DbUnknown
	}
	return m.DbName
}

// StatementRequest executes SQL, either as an update (unary response) or a
// query (streamed OpResult pages).
type StatementRequest struct {
	Session       *SessionInfo `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	StatementUUID string       `protobuf:"bytes,2,opt,name=statementUUID,proto3" json:"statementUUID,omitempty"`
	Sql           string       `protobuf:"bytes,3,opt,name=sql,proto3" json:"sql,omitempty"`
	Parameters    []byte       `protobuf:"bytes,4,opt,name=parameters,proto3" json:"parameters,omitempty"`
	Properties    []byte       `protobuf:"bytes,5,opt,name=properties,proto3" json:"properties,omitempty"`
}

func (m *StatementRequest) Reset()         { *m = StatementRequest{} }
func (m *StatementRequest) String() string { return proto.CompactTextString(m) }
func (*StatementRequest) ProtoMessage()    {}

// OpResult is the generic response of statement execution and result-set
// pagination.
type OpResult struct {
	Session *SessionInfo `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	Type    ResultType   `protobuf:"varint,2,opt,name=type,proto3,enum=ojp.v1.ResultType" json:"type,omitempty"`
	Value   []byte       `protobuf:"bytes,3,opt,name=value,proto3" json:"value,omitempty"`
}

func (m *OpResult) Reset()         { *m = OpResult{} }
func (m *OpResult) String() string { return proto.CompactTextString(m) }
func (*OpResult) ProtoMessage()    {}

func (m *OpResult) GetSession() *SessionInfo {
	if m == nil {
		return nil
	}
	return m.Session
}

// ResultSetFetchRequest pulls the next page of rows from a server-held
// result set.
type ResultSetFetchRequest struct {
	Session       *SessionInfo `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	ResultSetUUID string       `protobuf:"bytes,2,opt,name=resultSetUUID,proto3" json:"resultSetUUID,omitempty"`
	Size          int32        `protobuf:"varint,3,opt,name=size,proto3" json:"size,omitempty"`
}

func (m *ResultSetFetchRequest) Reset()         { *m = ResultSetFetchRequest{} }
func (m *ResultSetFetchRequest) String() string { return proto.CompactTextString(m) }
func (*ResultSetFetchRequest) ProtoMessage()    {}

// LobDataBlock is one frame of a LOB transfer, at most MaxLobDataBlockSize
// payload bytes. Position is 1-based.
type LobDataBlock struct {
	Session  *SessionInfo `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	LobType  LobType      `protobuf:"varint,2,opt,name=lobType,proto3,enum=ojp.v1.LobType" json:"lobType,omitempty"`
	Position int64        `protobuf:"varint,3,opt,name=position,proto3" json:"position,omitempty"`
	Data     []byte       `protobuf:"bytes,4,opt,name=data,proto3" json:"data,omitempty"`
	Metadata []byte       `protobuf:"bytes,5,opt,name=metadata,proto3" json:"metadata,omitempty"`
}

func (m *LobDataBlock) Reset()         { *m = LobDataBlock{} }
func (m *LobDataBlock) String() string { return proto.CompactTextString(m) }
func (*LobDataBlock) ProtoMessage()    {}

func (m *LobDataBlock) GetData() []byte {
	if m == nil {
		return nil
	}
	return m.Data
}

// LobReference is the server-issued handle of a stored LOB. It carries the
// session so subsequent reads land on the owning endpoint.
type LobReference struct {
	Session *SessionInfo `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	Uuid    string       `protobuf:"bytes,2,opt,name=uuid,proto3" json:"uuid,omitempty"`
	LobType LobType      `protobuf:"varint,3,opt,name=lobType,proto3,enum=ojp.v1.LobType" json:"lobType,omitempty"`
}

func (m *LobReference) Reset()         { *m = LobReference{} }
func (m *LobReference) String() string { return proto.CompactTextString(m) }
func (*LobReference) ProtoMessage()    {}

func (m *LobReference) GetSession() *SessionInfo {
	if m == nil {
		return nil
	}
	return m.Session
}

func (m *LobReference) GetUuid() string {
	if m == nil {
		return ""
	}
	return m.Uuid
}

// ReadLobRequest streams a byte range of a stored LOB back to the client.
type ReadLobRequest struct {
	LobReference *LobReference `protobuf:"bytes,1,opt,name=lobReference,proto3" json:"lobReference,omitempty"`
	Position     int64         `protobuf:"varint,2,opt,name=position,proto3" json:"position,omitempty"`
	Length       int32         `protobuf:"varint,3,opt,name=length,proto3" json:"length,omitempty"`
}

func (m *ReadLobRequest) Reset()         { *m = ReadLobRequest{} }
func (m *ReadLobRequest) String() string { return proto.CompactTextString(m) }
func (*ReadLobRequest) ProtoMessage()    {}

// TargetCall names the member invoked on a server-side resource.
type TargetCall struct {
	CallType     CallType `protobuf:"varint,1,opt,name=callType,proto3,enum=ojp.v1.CallType" json:"callType,omitempty"`
	ResourceName string   `protobuf:"bytes,2,opt,name=resourceName,proto3" json:"resourceName,omitempty"`
	Params       []byte   `protobuf:"bytes,3,opt,name=params,proto3" json:"params,omitempty"`
}

func (m *TargetCall) Reset()         { *m = TargetCall{} }
func (m *TargetCall) String() string { return proto.CompactTextString(m) }
func (*TargetCall) ProtoMessage()    {}

// CallResourceRequest invokes an arbitrary operation on an opaque
// server-side resource.
type CallResourceRequest struct {
	Session      *SessionInfo `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	ResourceType ResourceType `protobuf:"varint,2,opt,name=resourceType,proto3,enum=ojp.v1.ResourceType" json:"resourceType,omitempty"`
	ResourceUUID string       `protobuf:"bytes,3,opt,name=resourceUUID,proto3" json:"resourceUUID,omitempty"`
	Target       *TargetCall  `protobuf:"bytes,4,opt,name=target,proto3" json:"target,omitempty"`
}

func (m *CallResourceRequest) Reset()         { *m = CallResourceRequest{} }
func (m *CallResourceRequest) String() string { return proto.CompactTextString(m) }
func (*CallResourceRequest) ProtoMessage()    {}

// CallResourceResponse carries the serialized return value of a resource
// call plus the replacement session.
type CallResourceResponse struct {
	Session *SessionInfo `protobuf:"bytes,1,opt,name=session,proto3" json:"session,omitempty"`
	Values  []byte       `protobuf:"bytes,2,opt,name=values,proto3" json:"values,omitempty"`
}

func (m *CallResourceResponse) Reset()         { *m = CallResourceResponse{} }
func (m *CallResourceResponse) String() string { return proto.CompactTextString(m) }
func (*CallResourceResponse) ProtoMessage()    {}

func (m *CallResourceResponse) GetSession() *SessionInfo {
	if m == nil {
		return nil
	}
	return m.Session
}

// SessionTerminationStatus acknowledges session termination.
type SessionTerminationStatus struct {
	Terminated bool `protobuf:"varint,1,opt,name=terminated,proto3" json:"terminated,omitempty"`
}

func (m *SessionTerminationStatus) Reset()         { *m = SessionTerminationStatus{} }
func (m *SessionTerminationStatus) String() string { return proto.CompactTextString(m) }
func (*SessionTerminationStatus) ProtoMessage()    {}

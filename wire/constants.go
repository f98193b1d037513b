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

// Framing constants shared by the driver and the proxy server. The LOB block
// size and the result-set batch size are part of the wire contract.
const (
	// MaxLobDataBlockSize is the maximum payload carried by a single
	// LobDataBlock, in either direction.
	MaxLobDataBlockSize = 1024

	// RowsPerResultSetDataBlock is the number of rows the server packs into
	// one OpResult when paginating a result set.
	RowsPerResultSetDataBlock = 100

	// DefaultPortNumber is the port a proxy server listens on when none is
	// configured.
	DefaultPortNumber = 1059

	// DefaultMaxInboundMessageSize bounds messages accepted from the server.
	// Enforced by the transport at channel construction.
	DefaultMaxInboundMessageSize = 4 * 1024 * 1024

	// DefaultMaxOutboundMessageSize bounds messages sent to the server.
	// Enforced locally by the outbound size guard before transmission.
	DefaultMaxOutboundMessageSize = 16 * 1024 * 1024
)

// ClobPrefix marks character LOB payloads so the server can distinguish them
// from binary payloads that happen to decode as text.
const ClobPrefix = "OJP_CLOB_PREFIX:"

// Well-known keys of the serialized properties blob attached to statement
// requests.
const (
	PropertyStatementSQL            = "PREPARED_STATEMENT_SQL_KEY"
	PropertyAddBatchFlag            = "PREPARED_STATEMENT_ADD_BATCH_FLAG"
	PropertyExecuteBatchFlag        = "PREPARED_STATEMENT_EXECUTE_BATCH_FLAG"
	PropertyResultSetType           = "STATEMENT_RESULT_SET_TYPE_KEY"
	PropertyResultSetConcurrency    = "STATEMENT_RESULT_SET_CONCURRENCY_KEY"
	PropertyResultSetHoldability    = "STATEMENT_RESULT_SET_HOLDABILITY_KEY"
	PropertyAutoGeneratedKeys       = "STATEMENT_AUTO_GENERATED_KEYS_KEY"
	PropertyGeneratedKeysColIndexes = "STATEMENT_COLUMN_INDEXES_KEY"
	PropertyGeneratedKeysColNames   = "STATEMENT_COLUMN_NAMES_KEY"
)

// Slots of the serialized metadata blob attached to LOB write streams.
const (
	MetadataBinaryStreamIndex  = 1
	MetadataBinaryStreamLength = 2
	MetadataBinaryStreamSQL    = 3
	MetadataStatementUUID      = 4
)

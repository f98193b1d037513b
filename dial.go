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

package ojp

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/openjproxy/ojp-go/endpoint"
	"github.com/openjproxy/ojp-go/router"
	"github.com/openjproxy/ojp-go/wire"
)

// defaultDial opens a plaintext channel to the endpoint. The inbound limit
// is set on the channel and enforced by the transport; the outbound limit
// is enforced by the local size guard so violations fail before
// transmission with a distinct error.
func (c *Client) defaultDial(_ context.Context, ep endpoint.Endpoint) (*router.Handle, error) {
	conn, err := grpc.NewClient(
		ep.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.opts.maxInboundMessageSize),
		),
		grpc.WithChainUnaryInterceptor(
			wire.OutboundSizeUnaryInterceptor(c.opts.maxOutboundMessageSize),
		),
		grpc.WithChainStreamInterceptor(
			wire.OutboundSizeStreamInterceptor(c.opts.maxOutboundMessageSize),
		),
	)
	if err != nil {
		return nil, err
	}
	return router.NewHandle(ep, wire.NewStatementServiceClient(conn), conn), nil
}

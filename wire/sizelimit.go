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
	"fmt"

	"github.com/golang/protobuf/proto"
	"google.golang.org/grpc"
)

// MessageTooLargeError reports an outbound message rejected by the size
// guard before it reached the transport.
type MessageTooLargeError struct {
	Size  int
	Limit int
}

func (e *MessageTooLargeError) Error() string {
	return fmt.Sprintf("outbound message too large: %d bytes (limit %d)", e.Size, e.Limit)
}

// checkOutboundSize asks the encoder for the computed length instead of
// serializing the message twice; the bound is still enforced before the
// message enters the transport.
func checkOutboundSize(m any, limit int) error {
	msg, ok := m.(proto.Message)
	if !ok {
		return nil
	}
	if size := proto.Size(msg); size > limit {
		return &MessageTooLargeError{Size: size, Limit: limit}
	}
	return nil
}

// OutboundSizeUnaryInterceptor rejects unary requests whose encoded size
// exceeds limit.
func OutboundSizeUnaryInterceptor(limit int) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if err := checkOutboundSize(req, limit); err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// OutboundSizeStreamInterceptor rejects stream messages whose encoded size
// exceeds limit. Applies to every SendMsg on the stream, so a LOB write
// cannot smuggle an oversized frame past the guard.
func OutboundSizeStreamInterceptor(limit int) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		stream, err := streamer(ctx, desc, cc, method, opts...)
		if err != nil {
			return nil, err
		}
		return &sizeLimitedStream{ClientStream: stream, limit: limit}, nil
	}
}

type sizeLimitedStream struct {
	grpc.ClientStream
	limit int
}

func (s *sizeLimitedStream) SendMsg(m any) error {
	if err := checkOutboundSize(m, s.limit); err != nil {
		return err
	}
	return s.ClientStream.SendMsg(m)
}

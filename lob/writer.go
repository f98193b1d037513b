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

// Package lob implements the streaming engines for large-object transfer:
// a piped writer that frames bytes into blocks on a background task, and a
// block-windowed reader that reassembles the byte stream of a stored LOB.
package lob

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/openjproxy/ojp-go/serde"
	"github.com/openjproxy/ojp-go/wire"
)

// CreateStream is the client side of the bidirectional LOB write RPC.
// wire.StatementService_CreateLobClient satisfies it; tests use fakes.
type CreateStream interface {
	Send(*wire.LobDataBlock) error
	CloseSend() error
	Recv() (*wire.LobReference, error)
}

// OpenFunc opens the write stream on the endpoint owning the session.
type OpenFunc func(ctx context.Context) (CreateStream, error)

// Phase names the stage of the close path a LOB write failed in.
type Phase string

const (
	PhaseSend           Phase = "send"
	PhaseValidate       Phase = "validate"
	PhaseRefreshSession Phase = "refresh-session"
)

// CloseError reports which phase of closing a LOB write failed.
type CloseError struct {
	Phase Phase
	Err   error
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("lob write close failed in %s phase: %v", e.Phase, e.Err)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

// ErrReferenceMissing is returned when the server completed the write
// stream without issuing a usable reference.
var ErrReferenceMissing = errors.New("lob reference has no identifier")

// WriterConfig describes one LOB write.
type WriterConfig struct {
	Session SessionCell
	Family  wire.DbName
	LobType wire.LobType

	// BasePosition is the 1-based position the write starts at; zero means 1.
	BasePosition int64

	// Metadata is the slot-keyed metadata map sent with every frame. The
	// MetadataBinaryStreamLength slot, when present, declares the payload
	// length and trims the framed total to it.
	Metadata map[int]any
}

// Writer is the byte sink of a LOB write. Bytes written feed an internal
// pipe; a background task frames them into blocks and sends them on the
// stream while the caller keeps writing. Close flushes the pipe, awaits the
// server's final reference, and validates it.
type Writer struct {
	pw      *io.PipeWriter
	group   *errgroup.Group
	ctx     context.Context
	session SessionCell

	first *refSlot
	final *refSlot
}

// NewWriter starts a LOB write. The stream is opened and driven by a
// background task; NewWriter itself does not block on the server.
func NewWriter(ctx context.Context, open OpenFunc, cfg WriterConfig) (*Writer, error) {
	metadata, err := serde.MarshalMetadata(cfg.Metadata)
	if err != nil {
		return nil, err
	}
	basePos := cfg.BasePosition
	if basePos == 0 {
		basePos = 1
	}

	pr, pw := io.Pipe()
	group, gctx := errgroup.WithContext(ctx)
	w := &Writer{
		pw:      pw,
		group:   group,
		ctx:     ctx,
		session: cfg.Session,
		first:   newRefSlot(),
		final:   newRefSlot(),
	}

	prod := newProducer(pr, cfg.Family, cfg.Session, cfg.LobType, basePos, declaredLength(cfg.Metadata), metadata)

	group.Go(func() error {
		stream, err := open(gctx)
		if err != nil {
			w.fail(err, pr)
			return err
		}
		group.Go(func() error {
			return w.receive(stream, pr)
		})
		return w.send(gctx, stream, prod, pr)
	})
	return w, nil
}

// declaredLength extracts the declared payload length from the metadata, or
// -1 when none was supplied.
func declaredLength(metadata map[int]any) int64 {
	switch v := metadata[wire.MetadataBinaryStreamLength].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	default:
		return -1
	}
}

func (w *Writer) fail(err error, pr *io.PipeReader) {
	w.first.resolve(nil, err)
	w.final.resolve(nil, err)
	pr.CloseWithError(err)
}

// send drives the producer until the pipe is exhausted. After the first
// frame it waits for the server's first reference before producing more, so
// a rejected object fails fast instead of streaming into the void.
func (w *Writer) send(ctx context.Context, stream CreateStream, prod *producer, pr *io.PipeReader) error {
	sentFirst := false
	for {
		block, err := prod.next()
		if err != nil {
			w.fail(err, pr)
			return err
		}
		if block == nil {
			break
		}
		if err := stream.Send(block); err != nil {
			// The receive task observes the authoritative status; this only
			// unblocks the caller if that never happens.
			w.fail(errors.Wrap(err, "lob: send block"), pr)
			return err
		}
		if !sentFirst {
			sentFirst = true
			if _, err := w.first.wait(ctx); err != nil {
				w.fail(err, pr)
				return err
			}
		}
	}
	if err := stream.CloseSend(); err != nil {
		w.fail(errors.Wrap(err, "lob: close send"), pr)
		return err
	}
	return nil
}

// receive collects the stream of references. Every reference refreshes the
// session; the first resolves the first-reference slot, the one in hand at
// stream completion resolves the final slot.
func (w *Writer) receive(stream CreateStream, pr *io.PipeReader) error {
	var last *wire.LobReference
	for {
		ref, err := stream.Recv()
		if err == io.EOF {
			w.final.resolve(last, nil)
			if last == nil {
				// Completion without any reference: unblock a sender still
				// waiting on the first ack.
				w.first.resolve(nil, ErrReferenceMissing)
			}
			return nil
		}
		if err != nil {
			w.fail(err, pr)
			return err
		}
		if s := ref.GetSession(); s != nil {
			w.session.Adopt(s)
		}
		last = ref
		w.first.resolve(ref, nil)
	}
}

// Write feeds payload bytes into the pipe. It blocks while the background
// task is draining earlier bytes, and fails once the stream has failed.
func (w *Writer) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close closes the pipe, awaits the final reference, validates it, and
// adopts its session. The returned error names the phase that failed.
func (w *Writer) Close() error {
	if err := w.pw.Close(); err != nil {
		return &CloseError{Phase: PhaseSend, Err: err}
	}
	ref, err := w.final.wait(w.ctx)
	if err != nil {
		return &CloseError{Phase: PhaseSend, Err: err}
	}
	if ref == nil || ref.GetUuid() == "" {
		return &CloseError{Phase: PhaseValidate, Err: ErrReferenceMissing}
	}
	s := ref.GetSession()
	if s == nil {
		return &CloseError{Phase: PhaseRefreshSession, Err: errors.New("final lob reference carries no session")}
	}
	w.session.Adopt(s)
	_ = w.group.Wait()
	return nil
}

// Reference returns the final reference of a completed write. It blocks
// until the write finishes or fails.
func (w *Writer) Reference(ctx context.Context) (*wire.LobReference, error) {
	return w.final.wait(ctx)
}

// FirstReference returns the first reference the server issued, blocking
// until it arrives or the write fails.
func (w *Writer) FirstReference(ctx context.Context) (*wire.LobReference, error) {
	return w.first.wait(ctx)
}

package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"surrogate/pkg/logging"
	"surrogate/pkg/protocol"
	"surrogate/pkg/surrogate"
)

// TCPServer serves the evaluator over the binary protocol.
type TCPServer struct {
	eval   *surrogate.Evaluator
	logger *slog.Logger
}

func NewTCPServer(eval *surrogate.Evaluator) *TCPServer {
	return &TCPServer{eval: eval, logger: logging.New("tcp")}
}

// Start listens on addr until ctx is cancelled.
func (s *TCPServer) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.logger.Info("listening (binary protocol)", "addr", listener.Addr().String())
	return s.Serve(ctx, listener)
}

// Serve accepts connections on l and closes it when ctx is done. Open
// connections are closed too, and Serve returns once their handlers exit.
func (s *TCPServer) Serve(ctx context.Context, l net.Listener) error {
	var wg sync.WaitGroup
	var mu sync.Mutex
	conns := make(map[net.Conn]struct{})

	go func() {
		<-ctx.Done()
		l.Close()
		mu.Lock()
		for c := range conns {
			c.Close()
		}
		mu.Unlock()
	}()

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return err
			}
			s.logger.Warn("accept error", "error", err)
			continue
		}
		mu.Lock()
		if ctx.Err() != nil {
			mu.Unlock()
			conn.Close()
			continue
		}
		conns[conn] = struct{}{}
		mu.Unlock()

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
			mu.Lock()
			delete(conns, conn)
			mu.Unlock()
		}()
	}
}

func (s *TCPServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	for {
		req, err := protocol.Decode(conn)
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				s.logger.Debug("decode error", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		if err := s.dispatch(ctx, conn, req); err != nil {
			s.logger.Debug("write error", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}
	}
}

func (s *TCPServer) dispatch(ctx context.Context, w io.Writer, req *protocol.Packet) error {
	switch req.Op {
	case protocol.OpEvaluate:
		point, err := protocol.DecodeFloats(req.Value)
		if err != nil {
			return respondErr(w, err)
		}
		res, err := s.eval.Evaluate(ctx, point)
		if err != nil {
			return respondErr(w, err)
		}
		return protocol.Encode(w, protocol.RespVal, []byte{flags(res)}, encodeResult(res))

	case protocol.OpCalibrate:
		if err := s.eval.Flush(); err != nil {
			return respondErr(w, err)
		}
		return protocol.Encode(w, protocol.RespOK, nil, nil)

	case protocol.OpStatus:
		data, err := json.Marshal(s.eval.Status())
		if err != nil {
			return respondErr(w, err)
		}
		return protocol.Encode(w, protocol.RespVal, nil, data)

	default:
		return respondErr(w, fmt.Errorf("unknown op 0x%02x", req.Op))
	}
}

func respondErr(w io.Writer, err error) error {
	return protocol.Encode(w, protocol.RespErr, nil, []byte(err.Error()))
}

func flags(res surrogate.Result) byte {
	if res.Approximated {
		return protocol.FlagApproximated
	}
	return 0
}

// [Value 8B] [Data 8B * n]
func encodeResult(res surrogate.Result) []byte {
	v := make([]float64, 0, 1+len(res.Data))
	v = append(v, res.Value)
	v = append(v, res.Data...)
	return protocol.EncodeFloats(v)
}

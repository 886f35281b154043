package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"surrogate/pkg/protocol"
	"surrogate/pkg/surrogate"
)

// ServerError is an error reported by the server.
type ServerError struct {
	Msg string
}

func (e *ServerError) Error() string { return "server: " + e.Msg }

type Client struct {
	conn net.Conn
	addr string
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		addr: addr,
	}, nil
}

// Evaluate asks the server for the model output at point. Latency is the
// client-side round trip.
func (c *Client) Evaluate(point []float64) (surrogate.Result, error) {
	start := time.Now()
	pkg, err := c.roundTrip(protocol.OpEvaluate, nil, protocol.EncodeFloats(point))
	if err != nil {
		return surrogate.Result{}, err
	}
	if pkg.Op != protocol.RespVal {
		return surrogate.Result{}, errors.New("unknown response")
	}
	v, err := protocol.DecodeFloats(pkg.Value)
	if err != nil {
		return surrogate.Result{}, err
	}
	if len(v) == 0 {
		return surrogate.Result{}, errors.New("empty evaluate response")
	}
	return surrogate.Result{
		Value:        v[0],
		Data:         v[1:],
		Approximated: len(pkg.Key) > 0 && pkg.Key[0]&protocol.FlagApproximated != 0,
		Latency:      time.Since(start),
	}, nil
}

// Calibrate runs the server's retraining cycle on its pending evaluations.
func (c *Client) Calibrate() error {
	pkg, err := c.roundTrip(protocol.OpCalibrate, nil, nil)
	if err != nil {
		return err
	}
	if pkg.Op != protocol.RespOK {
		return errors.New("operation failed")
	}
	return nil
}

func (c *Client) Status() (surrogate.Status, error) {
	var st surrogate.Status
	pkg, err := c.roundTrip(protocol.OpStatus, nil, nil)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(pkg.Value, &st); err != nil {
		return st, fmt.Errorf("decode status: %w", err)
	}
	return st, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) roundTrip(op byte, key, val []byte) (*protocol.Packet, error) {
	pkg, err := c.send(op, key, val)
	if err != nil {
		var se *ServerError
		if errors.As(err, &se) {
			return nil, err
		}
		pkg, err = c.reconnectAndRetry(op, key, val)
		if err != nil {
			return nil, err
		}
	}
	return pkg, nil
}

func (c *Client) send(op byte, key, val []byte) (*protocol.Packet, error) {
	if err := protocol.Encode(c.conn, op, key, val); err != nil {
		return nil, err
	}
	pkg, err := protocol.Decode(c.conn)
	if err != nil {
		return nil, err
	}
	if pkg.Op == protocol.RespErr {
		return nil, &ServerError{Msg: string(pkg.Value)}
	}
	return pkg, nil
}

func (c *Client) reconnectAndRetry(op byte, key, val []byte) (*protocol.Packet, error) {
	c.conn.Close()
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	return c.send(op, key, val)
}

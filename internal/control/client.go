package control

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon control plane.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the control server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Ping checks daemon liveness.
func (c *Client) Ping() (*PingResponse, error) {
	var resp PingResponse
	if err := c.client.Call(rpcName+".Ping", PingRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves broker runtime state.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call(rpcName+".Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Services lists registered service names.
func (c *Client) Services() (*ServicesResponse, error) {
	var resp ServicesResponse
	if err := c.client.Call(rpcName+".Services", ServicesRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JournalTail returns recent deliveries, newest first.
func (c *Client) JournalTail(service string, limit int) (*JournalTailResponse, error) {
	var resp JournalTailResponse
	req := JournalTailRequest{Service: service, Limit: limit}
	if err := c.client.Call(rpcName+".JournalTail", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JournalStats returns per-service delivery totals.
func (c *Client) JournalStats() (*JournalStatsResponse, error) {
	var resp JournalStatsResponse
	if err := c.client.Call(rpcName+".JournalStats", JournalStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JournalPurge removes journal entries older than the given age.
func (c *Client) JournalPurge(days int) (*JournalPurgeResponse, error) {
	var resp JournalPurgeResponse
	req := JournalPurgeRequest{Days: days}
	if err := c.client.Call(rpcName+".JournalPurge", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop requests daemon shutdown.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call(rpcName+".Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

const dialTimeout = 2 * time.Second

// Client is the CLI side of the daemon's JSON-RPC socket.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the daemon socket at path. The dial is bounded by a short
// timeout so CLI commands fail fast when no daemon is listening.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, dialTimeout)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, client: rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	if c.client != nil {
		_ = c.client.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Start asks the daemon to begin dispatching queued jobs.
func (c *Client) Start() (*StartResponse, error) {
	var resp StartResponse
	if err := c.client.Call("Ocrkit.Start", StartRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stop asks the daemon to quiesce job dispatch.
func (c *Client) Stop() (*StopResponse, error) {
	var resp StopResponse
	if err := c.client.Call("Ocrkit.Stop", StopRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status reports daemon liveness and component health.
func (c *Client) Status() (*StatusResponse, error) {
	var resp StatusResponse
	if err := c.client.Call("Ocrkit.Status", StatusRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Submit enqueues a single recognition job.
func (c *Client) Submit(req SubmitRequest) (*SubmitResponse, error) {
	var resp SubmitResponse
	if err := c.client.Call("Ocrkit.Submit", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SubmitBatch enqueues a group of jobs admitted all-or-nothing.
func (c *Client) SubmitBatch(req SubmitBatchRequest) (*SubmitBatchResponse, error) {
	var resp SubmitBatchResponse
	if err := c.client.Call("Ocrkit.SubmitBatch", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// JobStatus retrieves one job by ID.
func (c *Client) JobStatus(id string) (*JobStatusResponse, error) {
	var resp JobStatusResponse
	if err := c.client.Call("Ocrkit.JobStatus", JobStatusRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BatchStatus retrieves a batch and its member jobs.
func (c *Client) BatchStatus(id string) (*BatchStatusResponse, error) {
	var resp BatchStatusResponse
	if err := c.client.Call("Ocrkit.BatchStatus", BatchStatusRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Cancel requests cancellation of a pending or running job.
func (c *Client) Cancel(id string) (*CancelResponse, error) {
	var resp CancelResponse
	if err := c.client.Call("Ocrkit.Cancel", CancelRequest{ID: id}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Jobs lists jobs matching the filter.
func (c *Client) Jobs(req JobListRequest) (*JobListResponse, error) {
	var resp JobListResponse
	if err := c.client.Call("Ocrkit.Jobs", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Batches lists recent batches.
func (c *Client) Batches(limit int) (*BatchListResponse, error) {
	var resp BatchListResponse
	if err := c.client.Call("Ocrkit.Batches", BatchListRequest{Limit: limit}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueList retrieves pending queue entries.
func (c *Client) QueueList() (*QueueListResponse, error) {
	var resp QueueListResponse
	if err := c.client.Call("Ocrkit.QueueList", QueueListRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CacheStats retrieves result cache counters.
func (c *Client) CacheStats() (*CacheStatsResponse, error) {
	var resp CacheStatsResponse
	if err := c.client.Call("Ocrkit.CacheStats", CacheStatsRequest{}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History queries archived job records.
func (c *Client) History(req HistoryRequest) (*HistoryResponse, error) {
	var resp HistoryResponse
	if err := c.client.Call("Ocrkit.History", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events fetches buffered events after a cursor, optionally waiting for more.
func (c *Client) Events(req EventsRequest) (*EventsResponse, error) {
	var resp EventsResponse
	if err := c.client.Call("Ocrkit.Events", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

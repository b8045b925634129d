package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/api"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/archive"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/daemon"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/logging"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/registry"
)

// Server answers CLI requests over a Unix domain socket using JSON-RPC. Every
// request is delegated to the daemon; the server itself holds no job state.
type Server struct {
	path      string
	listener  net.Listener
	rpcServer *rpc.Server
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds the socket at path and registers the RPC service backed by
// d. Any stale socket file from a previous run is removed first.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc: daemon is required")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("clear stale socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("Ocrkit", &service{daemon: d, logger: logger, ctx: ctx}); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		listener:  listener,
		rpcServer: rpcServer,
		logger:    logger,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve begins accepting connections in the background. Close stops it.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("accept failed", logging.Error(err))
			continue
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close stops accepting connections, waits for in-flight requests, and
// removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket", logging.String("socket", s.path), logging.Error(err))
	}
}

// service carries the RPC method set. Its logger is the server logger, so
// every method logs with the ipc component already attached.
type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC")
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC")
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.SocketPath = status.SocketPath
	resp.LockPath = status.LockPath
	resp.ArchivePath = status.ArchivePath
	resp.Service = api.FromServiceStatus(status.Service)
	resp.Dependencies = api.FromDependencies(status.Dependencies)
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	j, err := s.daemon.Submit(req.ToSubmission())
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(j)
	s.logger.Debug("job submitted via IPC", logging.String(logging.FieldJobID, j.ID))
	return nil
}

func (s *service) SubmitBatch(req SubmitBatchRequest, resp *SubmitBatchResponse) error {
	receipt, err := s.daemon.SubmitBatch(req.ToBatchRequest())
	if err != nil {
		return err
	}
	resp.Batch = api.FromBatch(receipt.Batch)
	resp.JobIDs = append([]string(nil), receipt.JobIDs...)
	s.logger.Debug("batch submitted via IPC",
		logging.String(logging.FieldBatchID, resp.Batch.ID),
		logging.Int("job_count", len(resp.JobIDs)))
	return nil
}

func (s *service) JobStatus(req JobStatusRequest, resp *JobStatusResponse) error {
	if req.ID == "" {
		return errors.New("job id is required")
	}
	j, err := s.daemon.JobStatus(req.ID)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(j)
	return nil
}

func (s *service) BatchStatus(req BatchStatusRequest, resp *BatchStatusResponse) error {
	if req.ID == "" {
		return errors.New("batch id is required")
	}
	view, err := s.daemon.BatchStatus(req.ID)
	if err != nil {
		return err
	}
	resp.Batch = api.FromBatch(view.Batch)
	resp.Jobs = api.FromJobs(view.Jobs)
	return nil
}

func (s *service) Cancel(req CancelRequest, resp *CancelResponse) error {
	if req.ID == "" {
		return errors.New("job id is required")
	}
	j, err := s.daemon.Cancel(req.ID)
	if err != nil {
		return err
	}
	resp.Job = api.FromJob(j)
	s.logger.Info("job cancelled via IPC", logging.String(logging.FieldJobID, req.ID))
	return nil
}

func (s *service) Jobs(req JobListRequest, resp *JobListResponse) error {
	filter := registry.ListFilter{BatchID: req.BatchID, Limit: req.Limit}
	for _, status := range req.Statuses {
		parsed, ok := job.ParseStatus(status)
		if !ok {
			continue
		}
		filter.Statuses = append(filter.Statuses, parsed)
	}
	jobs, err := s.daemon.Jobs(filter)
	if err != nil {
		return err
	}
	resp.Jobs = api.FromJobs(jobs)
	return nil
}

func (s *service) Batches(req BatchListRequest, resp *BatchListResponse) error {
	batches, err := s.daemon.Batches(req.Limit)
	if err != nil {
		return err
	}
	resp.Batches = api.FromBatches(batches)
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	entries, err := s.daemon.QueueList()
	if err != nil {
		return err
	}
	resp.Entries = api.FromQueueEntries(entries)
	return nil
}

func (s *service) CacheStats(_ CacheStatsRequest, resp *CacheStatsResponse) error {
	stats, err := s.daemon.CacheStats()
	if err != nil {
		return err
	}
	resp.Stats = api.FromCacheStats(stats)
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	filter := archive.HistoryFilter{
		BatchID:  req.BatchID,
		CallerID: req.CallerID,
		Limit:    req.Limit,
	}
	if req.Status != "" {
		parsed, ok := job.ParseStatus(req.Status)
		if !ok {
			return fmt.Errorf("unknown status %q", req.Status)
		}
		filter.Status = parsed
	}
	records, err := s.daemon.History(s.ctx, filter)
	if err != nil {
		return err
	}
	resp.Records = api.FromHistoryRecords(records)
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait)
		defer cancel()
	}
	events, next, err := s.daemon.Events(ctx, req.Since, req.Limit, req.Follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	resp.Events = api.FromEvents(events)
	resp.Next = next
	return nil
}

// Package mcpbridge exposes the client façade as MCP tools, grounded on the
// teacher's internal/mcp package (mcp.NewServer + mcp.AddTool over a mail
// service): the same pattern, generalized to bind
// td_create_client_id/td_send/td_receive/td_execute over
// internal/client.Manager (via internal/jsonbridge for the wire format)
// instead of a mail store. This is an alternate entry point alongside
// cmd/tdcore_c's C ABI, not a new feature domain (spec §1's Non-goals are
// unaffected).
package mcpbridge

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/roasbeef/tdcore/internal/baselib/tderr"
	"github.com/roasbeef/tdcore/internal/client"
	"github.com/roasbeef/tdcore/internal/jsonbridge"
	"github.com/roasbeef/tdcore/internal/tlobject"
)

// Server wraps an MCP server bound to a client.Manager.
type Server struct {
	server *mcp.Server
	mgr    *client.Manager
	bridge *jsonbridge.Bridge
}

// NewServer creates an MCP server with every façade tool registered.
func NewServer(mgr *client.Manager) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "tdcore",
		Version: "0.1.0",
	}, nil)

	s := &Server{
		server: mcpServer,
		mgr:    mgr,
		bridge: jsonbridge.NewBridge(mgr),
	}
	s.registerTools()

	return s
}

// Run starts the MCP server on transport.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	return s.server.Run(ctx, transport)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "td_create_client_id",
		Description: "Allocate a new client instance id",
	}, s.handleCreateClientID)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "td_send",
		Description: "Send a request JSON object to a client instance",
	}, s.handleSend)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "td_receive",
		Description: "Receive the next pending response or update as JSON",
	}, s.handleReceive)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "td_execute",
		Description: "Synchronously run a side-effect-free request and return its JSON result",
	}, s.handleExecute)
}

// CreateClientIDResult is td_create_client_id's result.
type CreateClientIDResult struct {
	ClientID int32 `json:"client_id"`
}

func (s *Server) handleCreateClientID(ctx context.Context,
	req *mcp.CallToolRequest, args struct{},
) (*mcp.CallToolResult, CreateClientIDResult, error) {
	id := s.mgr.CreateClientId()
	return nil, CreateClientIDResult{ClientID: int32(id)}, nil
}

// SendArgs are td_send's arguments.
type SendArgs struct {
	ClientID int32  `json:"client_id" jsonschema:"Target client instance id from td_create_client_id"`
	Request  string `json:"request" jsonschema:"Request JSON object, e.g. {\"@type\":\"close\"}"`
}

// SendResult is td_send's result: the pure JSON ABI never returns anything
// more than "enqueued" (spec §6 send has no return value).
type SendResult struct {
	Enqueued bool `json:"enqueued"`
}

func (s *Server) handleSend(ctx context.Context,
	req *mcp.CallToolRequest, args SendArgs,
) (*mcp.CallToolResult, SendResult, error) {
	s.bridge.Send(client.ClientId(args.ClientID), []byte(args.Request))
	return nil, SendResult{Enqueued: true}, nil
}

// ReceiveArgs are td_receive's arguments.
type ReceiveArgs struct {
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty" jsonschema:"Seconds to wait for a pending response,default=1"`
}

// ReceiveResult is td_receive's result.
type ReceiveResult struct {
	Response string `json:"response,omitempty"`
	TimedOut bool   `json:"timed_out"`
}

func (s *Server) handleReceive(ctx context.Context,
	req *mcp.CallToolRequest, args ReceiveArgs,
) (*mcp.CallToolResult, ReceiveResult, error) {
	timeout := time.Duration(args.TimeoutSeconds * float64(time.Second))
	if timeout <= 0 {
		timeout = time.Second
	}

	data := s.bridge.Receive(timeout)
	if data == nil {
		return nil, ReceiveResult{TimedOut: true}, nil
	}

	return nil, ReceiveResult{Response: string(data)}, nil
}

// ExecuteArgs are td_execute's arguments.
type ExecuteArgs struct {
	Request string `json:"request" jsonschema:"Request JSON object for the synchronous-executable subset"`
}

// ExecuteResult is td_execute's result.
type ExecuteResult struct {
	Response string `json:"response"`
}

func (s *Server) handleExecute(ctx context.Context,
	req *mcp.CallToolRequest, args ExecuteArgs,
) (*mcp.CallToolResult, ExecuteResult, error) {
	fnObj, _, err := tlobject.DecodeFunction(tlobject.Default, []byte(args.Request))
	if err != nil {
		return nil, ExecuteResult{}, err
	}

	var obj tlobject.Object
	obj, err = s.mgr.Execute(fnObj)
	if err != nil {
		obj = tlobject.NewError(int32(tderr.Code(err)), "%v", err)
	}

	data, err := tlobject.EncodeResponse(obj, nil, 0)
	if err != nil {
		return nil, ExecuteResult{}, err
	}

	return nil, ExecuteResult{Response: string(data)}, nil
}

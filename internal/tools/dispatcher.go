// Package tools exposes the espresso machine operations as MCP tools.
package tools

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"gaggiuino_mcp"
	"gaggiuino_mcp/internal/deviceerr"
	"gaggiuino_mcp/internal/logger"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Device is the machine API the tools call into.
type Device interface {
	GetLatestShot(ctx context.Context) (string, error)
	GetShot(ctx context.Context, id string) (gaggiuino_mcp.Shot, error)
	UploadShot(ctx context.Context, upload gaggiuino_mcp.ShotUpload) (string, error)
	GetAllProfiles(ctx context.Context) ([]gaggiuino_mcp.Profile, error)
	SelectProfile(ctx context.Context, id string) error
	DeleteProfile(ctx context.Context, id string) error
	GetSystemStatus(ctx context.Context) (gaggiuino_mcp.SystemStatus, error)
}

// InvocationRecorder counts tool outcomes.
type InvocationRecorder interface {
	ObserveToolInvocation(tool, outcome string)
}

const outcomeOK = "ok"

// Dispatcher turns tool calls into device calls. It keeps no per-call
// state, so concurrent invocations are independent.
type Dispatcher struct {
	device   Device
	log      *logger.Logger
	recorder InvocationRecorder
}

// NewDispatcher builds a dispatcher. log and recorder may be nil.
func NewDispatcher(device Device, log *logger.Logger, recorder InvocationRecorder) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{device: device, log: log, recorder: recorder}
}

// Register adds every tool to srv.
func (d *Dispatcher) Register(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{Name: ToolGetSystemStatus, Description: descGetSystemStatus}, d.getSystemStatus)
	mcp.AddTool(srv, &mcp.Tool{Name: ToolGetLatestShot, Description: descGetLatestShot}, d.getLatestShot)
	mcp.AddTool(srv, &mcp.Tool{Name: ToolGetShotData, Description: descGetShotData}, d.getShotData)
	mcp.AddTool(srv, &mcp.Tool{Name: ToolGetAllProfiles, Description: descGetAllProfiles}, d.getAllProfiles)
	mcp.AddTool(srv, &mcp.Tool{Name: ToolSelectProfile, Description: descSelectProfile}, d.selectProfile)
	mcp.AddTool(srv, &mcp.Tool{Name: ToolDeleteProfile, Description: descDeleteProfile}, d.deleteProfile)
	mcp.AddTool(srv, &mcp.Tool{Name: ToolUploadShot, Description: descUploadShot}, d.uploadShot)
}

// invoke runs one tool body and always resolves to a result: the rendered
// success text or a single translated error line.
func (d *Dispatcher) invoke(ctx context.Context, tool, op string, fn func(ctx context.Context) (string, error)) (res *mcp.CallToolResult) {
	invocationID := uuid.NewString()
	log := &logger.Logger{SugaredLogger: d.log.With("tool", tool, "invocation_id", invocationID)}

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("tool_call_panicked", "panic", r, "stack", string(debug.Stack()))
			res = d.fail(log, tool, op, deviceerr.FromPanic(r, op))
		}
	}()

	log.Debugw("tool_call_started", "op", op)
	text, err := fn(ctx)
	if err != nil {
		return d.fail(log, tool, op, err)
	}
	d.record(tool, outcomeOK)
	return textResult(text, false)
}

func (d *Dispatcher) fail(log *logger.Logger, tool, op string, err error) *mcp.CallToolResult {
	kind := deviceerr.KindOf(err)
	fields := []any{"err", err, "kind", kind.String()}
	var e *deviceerr.Error
	if errors.As(err, &e) && e.StatusCode != 0 {
		fields = append(fields, "status", e.StatusCode)
	}
	log.Errorw("tool_call_failed", fields...)
	d.record(tool, kind.String())
	return textResult(deviceerr.Translate(err, op), true)
}

func (d *Dispatcher) record(tool, outcome string) {
	if d.recorder != nil {
		d.recorder.ObserveToolInvocation(tool, outcome)
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

// renderJSON pretty-prints structured results.
func renderJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(data), nil
}

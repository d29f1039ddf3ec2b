package tools

import (
	"context"
	"fmt"

	"gaggiuino_mcp"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names.
const (
	ToolGetSystemStatus = "getSystemStatus"
	ToolGetLatestShot   = "getLatestShot"
	ToolGetShotData     = "getShotData"
	ToolGetAllProfiles  = "getAllProfiles"
	ToolSelectProfile   = "selectProfile"
	ToolDeleteProfile   = "deleteProfile"
	ToolUploadShot      = "uploadShot"
)

const (
	descGetSystemStatus = "Get the current system status of the espresso machine"
	descGetLatestShot   = "Get the ID of the latest espresso shot"
	descGetShotData     = "Get detailed data for a specific espresso shot"
	descGetAllProfiles  = "Get all available espresso profiles"
	descSelectProfile   = "Select a specific espresso profile"
	descDeleteProfile   = "Delete a specific espresso profile"
	descUploadShot      = "Upload data for a new espresso shot"
)

// NoArgs is the input of tools without parameters.
type NoArgs struct{}

type ShotIDArgs struct {
	ID string `json:"id" jsonschema:"The ID of the shot to fetch"`
}

type SelectProfileArgs struct {
	ID string `json:"id" jsonschema:"The ID of the profile to select"`
}

type DeleteProfileArgs struct {
	ID string `json:"id" jsonschema:"The ID of the profile to delete"`
}

// UploadShotArgs mirrors the upload payload; its schema requires profile
// and every data point field except weight.
type UploadShotArgs = gaggiuino_mcp.ShotUpload

func (d *Dispatcher) getSystemStatus(ctx context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, any, error) {
	res := d.invoke(ctx, ToolGetSystemStatus, "fetching system status", func(ctx context.Context) (string, error) {
		status, err := d.device.GetSystemStatus(ctx)
		if err != nil {
			return "", err
		}
		return renderJSON(status)
	})
	return res, nil, nil
}

func (d *Dispatcher) getLatestShot(ctx context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, any, error) {
	res := d.invoke(ctx, ToolGetLatestShot, "fetching latest shot", func(ctx context.Context) (string, error) {
		return d.device.GetLatestShot(ctx)
	})
	return res, nil, nil
}

func (d *Dispatcher) getShotData(ctx context.Context, _ *mcp.CallToolRequest, in ShotIDArgs) (*mcp.CallToolResult, any, error) {
	res := d.invoke(ctx, ToolGetShotData, fmt.Sprintf("fetching shot %s", in.ID), func(ctx context.Context) (string, error) {
		shot, err := d.device.GetShot(ctx, in.ID)
		if err != nil {
			return "", err
		}
		return renderJSON(shot)
	})
	return res, nil, nil
}

func (d *Dispatcher) getAllProfiles(ctx context.Context, _ *mcp.CallToolRequest, _ NoArgs) (*mcp.CallToolResult, any, error) {
	res := d.invoke(ctx, ToolGetAllProfiles, "fetching profiles", func(ctx context.Context) (string, error) {
		profiles, err := d.device.GetAllProfiles(ctx)
		if err != nil {
			return "", err
		}
		return renderJSON(profiles)
	})
	return res, nil, nil
}

func (d *Dispatcher) selectProfile(ctx context.Context, _ *mcp.CallToolRequest, in SelectProfileArgs) (*mcp.CallToolResult, any, error) {
	res := d.invoke(ctx, ToolSelectProfile, fmt.Sprintf("selecting profile %s", in.ID), func(ctx context.Context) (string, error) {
		if err := d.device.SelectProfile(ctx, in.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Profile %s selected successfully", in.ID), nil
	})
	return res, nil, nil
}

func (d *Dispatcher) deleteProfile(ctx context.Context, _ *mcp.CallToolRequest, in DeleteProfileArgs) (*mcp.CallToolResult, any, error) {
	res := d.invoke(ctx, ToolDeleteProfile, fmt.Sprintf("deleting profile %s", in.ID), func(ctx context.Context) (string, error) {
		if err := d.device.DeleteProfile(ctx, in.ID); err != nil {
			return "", err
		}
		return fmt.Sprintf("Profile %s deleted successfully", in.ID), nil
	})
	return res, nil, nil
}

func (d *Dispatcher) uploadShot(ctx context.Context, _ *mcp.CallToolRequest, in UploadShotArgs) (*mcp.CallToolResult, any, error) {
	res := d.invoke(ctx, ToolUploadShot, "uploading shot data", func(ctx context.Context) (string, error) {
		id, err := d.device.UploadShot(ctx, in)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Shot uploaded successfully with ID: %s", id), nil
	})
	return res, nil, nil
}

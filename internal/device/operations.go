package device

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"gaggiuino_mcp"
)

const (
	pathLatestShot    = "/api/shots/latest"
	pathShots         = "/api/shots"
	pathProfiles      = "/api/profiles/all"
	pathProfileSelect = "/api/profile-select/"
	pathSystemStatus  = "/api/system/status"
)

// Operation labels used for metrics.
const (
	OpGetLatestShot   = "getLatestShot"
	OpGetShot         = "getShot"
	OpUploadShot      = "uploadShot"
	OpGetAllProfiles  = "getAllProfiles"
	OpSelectProfile   = "selectProfile"
	OpDeleteProfile   = "deleteProfile"
	OpGetSystemStatus = "getSystemStatus"
)

// GetLatestShot returns the id of the most recent shot.
func (c *Client) GetLatestShot(ctx context.Context) (string, error) {
	var id string
	err := c.call(ctx, OpGetLatestShot, "fetching latest shot", func(ctx context.Context) error {
		body, err := c.request(ctx, http.MethodGet, pathLatestShot, nil)
		if err != nil {
			return err
		}
		id, err = matchShape(body, latestShotShapes, errUnexpectedLatestShot)
		return err
	})
	return id, err
}

// GetShot returns the recorded data of one shot.
func (c *Client) GetShot(ctx context.Context, id string) (gaggiuino_mcp.Shot, error) {
	var shot gaggiuino_mcp.Shot
	err := c.call(ctx, OpGetShot, fmt.Sprintf("fetching shot %s", id), func(ctx context.Context) error {
		body, err := c.request(ctx, http.MethodGet, pathShots+"/"+url.PathEscape(id), nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &shot); err != nil {
			return fmt.Errorf("decode shot: %w", err)
		}
		return shot.Data.Validate()
	})
	if err != nil {
		return gaggiuino_mcp.Shot{}, err
	}
	return shot, nil
}

// UploadShot sends a new shot and returns the id the machine assigned.
func (c *Client) UploadShot(ctx context.Context, upload gaggiuino_mcp.ShotUpload) (string, error) {
	var id string
	err := c.call(ctx, OpUploadShot, "uploading shot data", func(ctx context.Context) error {
		body, err := c.request(ctx, http.MethodPost, pathShots, upload)
		if err != nil {
			return err
		}
		id, err = matchShape(body, uploadIDShapes, errUnexpectedUploadID)
		return err
	})
	return id, err
}

// GetAllProfiles lists every profile stored on the machine.
func (c *Client) GetAllProfiles(ctx context.Context) ([]gaggiuino_mcp.Profile, error) {
	var profiles []gaggiuino_mcp.Profile
	err := c.call(ctx, OpGetAllProfiles, "fetching profiles", func(ctx context.Context) error {
		body, err := c.request(ctx, http.MethodGet, pathProfiles, nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &profiles); err != nil {
			return fmt.Errorf("decode profiles: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = []gaggiuino_mcp.Profile{}
	}
	return profiles, nil
}

// SelectProfile makes id the active profile.
func (c *Client) SelectProfile(ctx context.Context, id string) error {
	return c.call(ctx, OpSelectProfile, fmt.Sprintf("selecting profile %s", id), func(ctx context.Context) error {
		_, err := c.request(ctx, http.MethodPost, pathProfileSelect+url.PathEscape(id), nil)
		return err
	})
}

// DeleteProfile removes a profile from the machine.
func (c *Client) DeleteProfile(ctx context.Context, id string) error {
	return c.call(ctx, OpDeleteProfile, fmt.Sprintf("deleting profile %s", id), func(ctx context.Context) error {
		_, err := c.request(ctx, http.MethodDelete, pathProfileSelect+url.PathEscape(id), nil)
		return err
	})
}

// GetSystemStatus returns the current machine readings.
func (c *Client) GetSystemStatus(ctx context.Context) (gaggiuino_mcp.SystemStatus, error) {
	var status gaggiuino_mcp.SystemStatus
	err := c.call(ctx, OpGetSystemStatus, "fetching system status", func(ctx context.Context) error {
		body, err := c.request(ctx, http.MethodGet, pathSystemStatus, nil)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &status); err != nil {
			return fmt.Errorf("decode system status: %w", err)
		}
		return nil
	})
	if err != nil {
		return gaggiuino_mcp.SystemStatus{}, err
	}
	return status, nil
}

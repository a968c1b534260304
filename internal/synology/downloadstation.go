package synology

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
)

// DSM 7 moved task management to SYNO.DownloadStation2.Task behind entry.cgi;
// the info and statistics APIs kept their legacy endpoints.
const (
	taskAPI     = "SYNO.DownloadStation2.Task"
	taskVersion = "2"
	infoAPI     = "SYNO.DownloadStation.Info"
	infoVersion = "2"
	statAPI     = "SYNO.DownloadStation.Statistic"
	statVersion = "1"

	infoPath = "/webapi/DownloadStation/info.cgi"
	statPath = "/webapi/DownloadStation/statistic.cgi"
)

// dsErrorMessages maps Download Station error codes to readable text.
var dsErrorMessages = map[int]string{
	100: "Unknown error",
	101: "Invalid parameter",
	102: "The requested API does not exist",
	103: "The requested method does not exist",
	104: "The requested version does not support the functionality",
	105: "The logged in session does not have permission",
	106: "Session timeout",
	107: "Session interrupted by duplicate login",
	120: "Invalid task id or task not found",
	400: "File upload failed",
	401: "Max number of tasks reached",
	402: "Destination denied",
	403: "Destination does not exist",
	404: "Invalid task id",
	405: "Invalid task action",
	406: "No default destination",
	407: "Set destination failed",
	408: "File does not exist",
	409: "Task already exists",
	410: "Task already finished",
}

func dsErrorMessage(code int) string {
	if msg, ok := dsErrorMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("Unknown error: %d", code)
}

// isAPIUnavailable reports whether the error means the API/version is not
// supported on this DSM release, so a legacy fallback should be tried.
func isAPIUnavailable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == 102 || apiErr.Code == 104
	}
	return false
}

// Info describes the Download Station service.
type Info struct {
	Version       json.Number `json:"version"`
	VersionString string      `json:"version_string"`
	IsManager     bool        `json:"is_manager"`
	Hostname      string      `json:"hostname"`
	Note          string      `json:"note,omitempty"`
}

// Task is one download task with detail and transfer info flattened.
type Task struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Username      string `json:"username"`
	Title         string `json:"title"`
	Size          int64  `json:"size"`
	Status        any    `json:"status"`
	CreateTime    int64  `json:"create_time,omitempty"`
	StartedTime   int64  `json:"started_time,omitempty"`
	CompletedTime int64  `json:"completed_time,omitempty"`

	Destination      string `json:"destination,omitempty"`
	URI              string `json:"uri,omitempty"`
	Priority         string `json:"priority,omitempty"`
	TotalPeers       int    `json:"total_peers,omitempty"`
	ConnectedSeeders int    `json:"connected_seeders,omitempty"`
	ConnectedLeechers int   `json:"connected_leechers,omitempty"`

	SizeDownloaded int64 `json:"size_downloaded,omitempty"`
	SizeUploaded   int64 `json:"size_uploaded,omitempty"`
	SpeedDownload  int64 `json:"speed_download,omitempty"`
	SpeedUpload    int64 `json:"speed_upload,omitempty"`
}

// TaskList is a page of download tasks.
type TaskList struct {
	Total  int    `json:"total"`
	Offset int    `json:"offset"`
	Tasks  []Task `json:"tasks"`
}

// Statistics holds current transfer rates.
type Statistics struct {
	SpeedDownload      int64  `json:"speed_download"`
	SpeedUpload        int64  `json:"speed_upload"`
	EmuleSpeedDownload int64  `json:"emule_speed_download,omitempty"`
	EmuleSpeedUpload   int64  `json:"emule_speed_upload,omitempty"`
	Note               string `json:"note,omitempty"`
}

// CreateResult reports the ids assigned to a created task.
type CreateResult struct {
	TaskIDs []string `json:"task_id"`
	ListIDs []string `json:"list_id"`
}

// DownloadStation wraps the Download Station APIs for one session.
type DownloadStation struct {
	client    *Client
	sessionID string
}

// NewDownloadStation creates a Download Station client bound to a session.
func NewDownloadStation(client *Client, sessionID string) *DownloadStation {
	return &DownloadStation{client: client, sessionID: sessionID}
}

// GetInfo returns service information, degrading to a static answer when the
// info API is unavailable.
func (d *DownloadStation) GetInfo(ctx context.Context) (*Info, error) {
	params := apiParams(infoAPI, infoVersion, "getinfo", d.sessionID)

	var info Info
	if err := d.client.get(ctx, infoPath, params, dsErrorMessage, &info); err != nil {
		return &Info{
			VersionString: "Download Station Available",
			IsManager:     true,
			Hostname:      "Synology NAS",
			Note:          fmt.Sprintf("Limited info: %v", err),
		}, nil
	}
	if info.Hostname == "" {
		info.Hostname = "Synology NAS"
	}
	return &info, nil
}

// rawTask mirrors the DSM task object shape.
type rawTask struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	Username      string `json:"username"`
	Title         string `json:"title"`
	Size          int64  `json:"size"`
	Status        any    `json:"status"`
	CreateTime    int64  `json:"create_time"`
	StartedTime   int64  `json:"started_time"`
	CompletedTime int64  `json:"completed_time"`
	Additional    *struct {
		Detail *struct {
			Destination       string `json:"destination"`
			URI               string `json:"uri"`
			Priority          string `json:"priority"`
			TotalPeers        int    `json:"total_peers"`
			ConnectedSeeders  int    `json:"connected_seeders"`
			ConnectedLeechers int    `json:"connected_leechers"`
		} `json:"detail"`
		Transfer *struct {
			SizeDownloaded int64 `json:"size_downloaded"`
			SizeUploaded   int64 `json:"size_uploaded"`
			SpeedDownload  int64 `json:"speed_download"`
			SpeedUpload    int64 `json:"speed_upload"`
		} `json:"transfer"`
	} `json:"additional"`
}

func (r *rawTask) task() Task {
	t := Task{
		ID:            r.ID,
		Type:          r.Type,
		Username:      r.Username,
		Title:         r.Title,
		Size:          r.Size,
		Status:        r.Status,
		CreateTime:    r.CreateTime,
		StartedTime:   r.StartedTime,
		CompletedTime: r.CompletedTime,
	}
	if a := r.Additional; a != nil {
		if a.Detail != nil {
			t.Destination = a.Detail.Destination
			t.URI = a.Detail.URI
			t.Priority = a.Detail.Priority
			t.TotalPeers = a.Detail.TotalPeers
			t.ConnectedSeeders = a.Detail.ConnectedSeeders
			t.ConnectedLeechers = a.Detail.ConnectedLeechers
		}
		if a.Transfer != nil {
			t.SizeDownloaded = a.Transfer.SizeDownloaded
			t.SizeUploaded = a.Transfer.SizeUploaded
			t.SpeedDownload = a.Transfer.SpeedDownload
			t.SpeedUpload = a.Transfer.SpeedUpload
		}
	}
	return t
}

// ListTasks pages through download tasks. limit <= 0 requests 100 entries.
// Falls back to API v1 when v2 is unavailable on older DSM releases.
func (d *DownloadStation) ListTasks(ctx context.Context, offset, limit int) (*TaskList, error) {
	if limit <= 0 {
		limit = 100
	}

	params := apiParams(taskAPI, taskVersion, "list", d.sessionID)
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("additional", "detail,transfer")

	var data struct {
		Total  int       `json:"total"`
		Offset int       `json:"offset"`
		Tasks  []rawTask `json:"tasks"`
	}
	err := d.client.get(ctx, entryPath, params, dsErrorMessage, &data)
	if err != nil && isAPIUnavailable(err) {
		log.Printf("%s v%s unavailable, trying v1", taskAPI, taskVersion)
		fallback := apiParams(taskAPI, "1", "list", d.sessionID)
		fallback.Set("offset", strconv.Itoa(offset))
		fallback.Set("limit", strconv.Itoa(limit))
		err = d.client.get(ctx, entryPath, fallback, dsErrorMessage, &data)
		if err != nil {
			log.Printf("No task APIs available: %v", err)
			return &TaskList{Offset: offset, Tasks: []Task{}}, nil
		}
	} else if err != nil {
		return nil, err
	}

	list := &TaskList{
		Total:  data.Total,
		Offset: data.Offset,
		Tasks:  make([]Task, 0, len(data.Tasks)),
	}
	if list.Total == 0 {
		list.Total = len(data.Tasks)
	}
	for i := range data.Tasks {
		list.Tasks = append(list.Tasks, data.Tasks[i].task())
	}
	return list, nil
}

// CreateTask creates a download task from a URL or magnet link. The request
// uses POST with the url carried as a JSON array, matching DSM 7 behavior.
// Falls back to the v1 parameter format when v2 rejects the call.
func (d *DownloadStation) CreateTask(ctx context.Context, uri, destination, username, password string) (*CreateResult, error) {
	if destination == "" {
		destination = "downloads"
	}

	urlList, err := json.Marshal([]string{uri})
	if err != nil {
		return nil, fmt.Errorf("encode url: %w", err)
	}

	params := apiParams(taskAPI, taskVersion, "create", d.sessionID)
	params.Set("type", "url")
	params.Set("destination", destination)
	params.Set("create_list", "true")
	params.Set("url", string(urlList))
	if username != "" {
		params.Set("username", username)
	}
	if password != "" {
		params.Set("password", password)
	}

	var result CreateResult
	err = d.client.post(ctx, entryPath, params, dsErrorMessage, &result)
	if err == nil {
		return &result, nil
	}

	log.Printf("Create task with %s v%s failed: %v, trying v1", taskAPI, taskVersion, err)
	fallback := apiParams(taskAPI, "1", "create", d.sessionID)
	fallback.Set("uri", uri)
	fallback.Set("destination", destination)
	if username != "" {
		fallback.Set("username", username)
	}
	if password != "" {
		fallback.Set("password", password)
	}
	if fbErr := d.client.post(ctx, entryPath, fallback, dsErrorMessage, &result); fbErr == nil {
		return &result, nil
	}

	return nil, fmt.Errorf("task creation failed: %w", err)
}

// PauseTasks pauses the given task ids.
func (d *DownloadStation) PauseTasks(ctx context.Context, taskIDs []string) error {
	params := apiParams(taskAPI, taskVersion, "pause", d.sessionID)
	params.Set("id", strings.Join(taskIDs, ","))
	return d.client.get(ctx, entryPath, params, dsErrorMessage, nil)
}

// ResumeTasks resumes the given task ids.
func (d *DownloadStation) ResumeTasks(ctx context.Context, taskIDs []string) error {
	params := apiParams(taskAPI, taskVersion, "resume", d.sessionID)
	params.Set("id", strings.Join(taskIDs, ","))
	return d.client.get(ctx, entryPath, params, dsErrorMessage, nil)
}

// DeleteTasks deletes the given task ids.
func (d *DownloadStation) DeleteTasks(ctx context.Context, taskIDs []string, forceComplete bool) error {
	params := apiParams(taskAPI, taskVersion, "delete", d.sessionID)
	params.Set("id", strings.Join(taskIDs, ","))
	params.Set("force_complete", strconv.FormatBool(forceComplete))
	return d.client.get(ctx, entryPath, params, dsErrorMessage, nil)
}

// GetStatistics returns current transfer rates, falling back to summing the
// task list when the statistics API is unavailable.
func (d *DownloadStation) GetStatistics(ctx context.Context) (*Statistics, error) {
	params := apiParams(statAPI, statVersion, "getinfo", d.sessionID)

	var stats Statistics
	if err := d.client.get(ctx, statPath, params, dsErrorMessage, &stats); err == nil {
		return &stats, nil
	}

	list, err := d.ListTasks(ctx, 0, 100)
	if err != nil {
		return &Statistics{Note: "Statistics not available"}, nil
	}

	var down, up int64
	for _, t := range list.Tasks {
		down += t.SpeedDownload
		up += t.SpeedUpload
	}
	return &Statistics{
		SpeedDownload: down,
		SpeedUpload:   up,
		Note:          "Calculated from active tasks",
	}, nil
}

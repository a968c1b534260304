package synology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

const entryPath = "/webapi/entry.cgi"

// pollInterval is the wait between status checks for asynchronous
// FileStation tasks (search, copy/move).
const pollInterval = 500 * time.Millisecond

// moveTimeout bounds how long a move operation may run.
const moveTimeout = 60 * time.Second

// Share is one shared folder on the NAS.
type Share struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
	IsWritable  bool   `json:"is_writable"`
}

// FileEntry describes a file or directory.
type FileEntry struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	Created     int64  `json:"created,omitempty"`
	Modified    int64  `json:"modified,omitempty"`
	Accessed    int64  `json:"accessed,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Group       string `json:"group,omitempty"`
	Permissions string `json:"permissions,omitempty"`
}

// rawFile mirrors the DSM file object shape.
type rawFile struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	IsDir      bool   `json:"isdir"`
	Size       int64  `json:"size"`
	Additional *struct {
		Time *struct {
			CreateTime int64 `json:"crtime"`
			ModTime    int64 `json:"mtime"`
			AccessTime int64 `json:"atime"`
		} `json:"time"`
		Owner *struct {
			User  string `json:"user"`
			Group string `json:"group"`
		} `json:"owner"`
		Perm *struct {
			Posix int `json:"posix"`
		} `json:"perm"`
	} `json:"additional"`
}

func (r *rawFile) entry() FileEntry {
	e := FileEntry{
		Name: r.Name,
		Path: r.Path,
		Type: "file",
		Size: r.Size,
	}
	if r.IsDir {
		e.Type = "directory"
	}
	if a := r.Additional; a != nil {
		if a.Time != nil {
			e.Created = a.Time.CreateTime
			e.Modified = a.Time.ModTime
			e.Accessed = a.Time.AccessTime
		}
		if a.Owner != nil {
			e.Owner = a.Owner.User
			e.Group = a.Owner.Group
		}
		if a.Perm != nil {
			e.Permissions = strconv.Itoa(a.Perm.Posix)
		}
	}
	return e
}

// FileStation wraps the DSM FileStation APIs for one session.
type FileStation struct {
	client    *Client
	sessionID string
}

// NewFileStation creates a FileStation client bound to a session.
func NewFileStation(client *Client, sessionID string) *FileStation {
	return &FileStation{client: client, sessionID: sessionID}
}

// ListShares lists all shared folders.
func (f *FileStation) ListShares(ctx context.Context) ([]Share, error) {
	params := apiParams("SYNO.FileStation.List", "2", "list_share", f.sessionID)

	var data struct {
		Shares []struct {
			Name       string `json:"name"`
			Path       string `json:"path"`
			Desc       string `json:"desc"`
			IsWritable bool   `json:"iswritable"`
		} `json:"shares"`
	}
	if err := f.client.get(ctx, entryPath, params, nil, &data); err != nil {
		return nil, err
	}

	shares := make([]Share, 0, len(data.Shares))
	for _, s := range data.Shares {
		shares = append(shares, Share{
			Name:        s.Name,
			Path:        s.Path,
			Description: s.Desc,
			IsWritable:  s.IsWritable,
		})
	}
	return shares, nil
}

// ListDirectory lists the contents of dir with time/size/owner/perm detail.
func (f *FileStation) ListDirectory(ctx context.Context, dir string) ([]FileEntry, error) {
	params := apiParams("SYNO.FileStation.List", "2", "list", f.sessionID)
	params.Set("folder_path", formatPath(dir))
	params.Set("additional", "time,size,owner,perm")

	var data struct {
		Files []rawFile `json:"files"`
	}
	if err := f.client.get(ctx, entryPath, params, nil, &data); err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(data.Files))
	for i := range data.Files {
		entries = append(entries, data.Files[i].entry())
	}
	return entries, nil
}

// GetFileInfo returns detailed information about one path.
func (f *FileStation) GetFileInfo(ctx context.Context, p string) (*FileEntry, error) {
	params := apiParams("SYNO.FileStation.List", "2", "getinfo", f.sessionID)
	params.Set("path", formatPath(p))
	params.Set("additional", "time,size,owner,perm")

	var data struct {
		Files []rawFile `json:"files"`
	}
	if err := f.client.get(ctx, entryPath, params, nil, &data); err != nil {
		return nil, err
	}
	if len(data.Files) == 0 {
		return nil, fmt.Errorf("file not found: %s", p)
	}

	entry := data.Files[0].entry()
	return &entry, nil
}

// SearchFiles runs a pattern search under dir. The search task is started,
// polled until finished, and always stopped afterwards.
func (f *FileStation) SearchFiles(ctx context.Context, dir, pattern string) ([]FileEntry, error) {
	startParams := apiParams("SYNO.FileStation.Search", "2", "start", f.sessionID)
	startParams.Set("folder_path", formatPath(dir))
	startParams.Set("pattern", pattern)

	var start struct {
		TaskID string `json:"taskid"`
	}
	if err := f.client.get(ctx, entryPath, startParams, nil, &start); err != nil {
		return nil, err
	}
	if start.TaskID == "" {
		return nil, fmt.Errorf("failed to start search task")
	}

	defer func() {
		stopParams := apiParams("SYNO.FileStation.Search", "2", "stop", f.sessionID)
		stopParams.Set("taskid", start.TaskID)
		// Cleanup failures are not actionable.
		_ = f.client.get(context.WithoutCancel(ctx), entryPath, stopParams, nil, nil)
	}()

	for {
		statusParams := apiParams("SYNO.FileStation.Search", "2", "status", f.sessionID)
		statusParams.Set("taskid", start.TaskID)

		var status struct {
			Finished bool `json:"finished"`
		}
		if err := f.client.get(ctx, entryPath, statusParams, nil, &status); err != nil {
			return nil, err
		}
		if status.Finished {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	listParams := apiParams("SYNO.FileStation.Search", "2", "list", f.sessionID)
	listParams.Set("taskid", start.TaskID)

	var result struct {
		Files []rawFile `json:"files"`
	}
	if err := f.client.get(ctx, entryPath, listParams, nil, &result); err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(result.Files))
	for i := range result.Files {
		entries = append(entries, result.Files[i].entry())
	}
	return entries, nil
}

// RenameResult reports a completed rename.
type RenameResult struct {
	OldPath string `json:"old_path"`
	NewPath string `json:"new_path"`
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// RenameFile renames the file or directory at p to newName.
func (f *FileStation) RenameFile(ctx context.Context, p, newName string) (*RenameResult, error) {
	newName = strings.NewReplacer("/", "", "\\", "").Replace(strings.TrimSpace(newName))
	if newName == "" {
		return nil, fmt.Errorf("new name cannot be empty")
	}

	formatted := formatPath(p)
	params := apiParams("SYNO.FileStation.Rename", "2", "rename", f.sessionID)
	params.Set("path", formatted)
	params.Set("name", newName)

	if err := f.client.get(ctx, entryPath, params, nil, nil); err != nil {
		return nil, err
	}

	return &RenameResult{
		OldPath: formatted,
		NewPath: path.Join(path.Dir(formatted), newName),
		OldName: path.Base(formatted),
		NewName: newName,
	}, nil
}

// MoveResult reports a completed move.
type MoveResult struct {
	SourcePath      string `json:"source_path"`
	DestinationPath string `json:"destination_path"`
	TaskID          string `json:"task_id"`
}

// MoveFile moves source into dest, polling the CopyMove task to completion.
func (f *FileStation) MoveFile(ctx context.Context, source, dest string, overwrite bool) (*MoveResult, error) {
	src := formatPath(source)
	dst := formatPath(dest)
	if src == "/" {
		return nil, fmt.Errorf("invalid source path")
	}
	if dst == "/" {
		return nil, fmt.Errorf("invalid destination path")
	}

	startParams := apiParams("SYNO.FileStation.CopyMove", "3", "start", f.sessionID)
	startParams.Set("path", src)
	startParams.Set("dest_folder_path", dst)
	startParams.Set("overwrite", strconv.FormatBool(overwrite))
	startParams.Set("remove_src", "true")

	var start struct {
		TaskID string `json:"taskid"`
	}
	if err := f.client.get(ctx, entryPath, startParams, nil, &start); err != nil {
		return nil, err
	}
	if start.TaskID == "" {
		return nil, fmt.Errorf("failed to start move task")
	}

	deadline := time.Now().Add(moveTimeout)
	for {
		statusParams := apiParams("SYNO.FileStation.CopyMove", "3", "status", f.sessionID)
		statusParams.Set("taskid", start.TaskID)

		var status struct {
			Finished bool            `json:"finished"`
			Errors   json.RawMessage `json:"errors"`
		}
		if err := f.client.get(ctx, entryPath, statusParams, nil, &status); err != nil {
			f.stopCopyMove(ctx, start.TaskID)
			return nil, err
		}
		if status.Finished {
			if len(status.Errors) > 0 && string(status.Errors) != "null" && string(status.Errors) != "[]" {
				return nil, fmt.Errorf("move failed: %s", status.Errors)
			}
			final := dst
			if path.Ext(dst) == "" {
				final = path.Join(dst, path.Base(src))
			}
			return &MoveResult{SourcePath: src, DestinationPath: final, TaskID: start.TaskID}, nil
		}

		if time.Now().After(deadline) {
			f.stopCopyMove(ctx, start.TaskID)
			return nil, fmt.Errorf("move operation timed out after %s", moveTimeout)
		}

		select {
		case <-ctx.Done():
			f.stopCopyMove(ctx, start.TaskID)
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (f *FileStation) stopCopyMove(ctx context.Context, taskID string) {
	params := apiParams("SYNO.FileStation.CopyMove", "3", "stop", f.sessionID)
	params.Set("taskid", taskID)
	_ = f.client.get(context.WithoutCancel(ctx), entryPath, params, nil, nil)
}

// CreateFile uploads content as a new file at p via the Upload API.
func (f *FileStation) CreateFile(ctx context.Context, p, content string, overwrite bool) error {
	formatted := formatPath(p)
	dir := path.Dir(formatted)
	name := path.Base(formatted)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("api", "SYNO.FileStation.Upload")
	_ = w.WriteField("version", "2")
	_ = w.WriteField("method", "upload")
	_ = w.WriteField("path", dir)
	_ = w.WriteField("create_parents", "false")
	_ = w.WriteField("overwrite", strconv.FormatBool(overwrite))
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.WriteString(part, content); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build upload: %w", err)
	}

	endpoint := f.client.BaseURL() + entryPath + "?" + url.Values{"_sid": {f.sessionID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := f.client.http.Do(req)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upload response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode upload response: %w", err)
	}
	if !env.Success {
		code := 0
		if env.Error != nil {
			code = env.Error.Code
		}
		return &APIError{API: "SYNO.FileStation.Upload", Code: code}
	}
	return nil
}

// CreateDirectory creates folder name under parent.
func (f *FileStation) CreateDirectory(ctx context.Context, parent, name string, forceParent bool) error {
	params := apiParams("SYNO.FileStation.CreateFolder", "2", "create", f.sessionID)
	params.Set("folder_path", formatPath(parent))
	params.Set("name", name)
	params.Set("force_parent", strconv.FormatBool(forceParent))
	return f.client.get(ctx, entryPath, params, nil, nil)
}

// Delete removes the file or directory at p. Directories require recursive.
func (f *FileStation) Delete(ctx context.Context, p string, recursive bool) error {
	params := apiParams("SYNO.FileStation.Delete", "2", "delete", f.sessionID)
	params.Set("path", formatPath(p))
	params.Set("recursive", strconv.FormatBool(recursive))
	return f.client.get(ctx, entryPath, params, nil, nil)
}

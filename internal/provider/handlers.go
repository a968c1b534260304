package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/synobridge/synobridge/internal/jsonrpc"
	"github.com/synobridge/synobridge/internal/synology"
)

// decodeArgs parses tool arguments into v. Missing arguments leave v at its
// zero value.
func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := jsonrpc.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// jsonContent renders v as an indented JSON text content item.
func jsonContent(v any) ([]jsonrpc.Content, error) {
	data, err := jsonrpc.MarshalIndent(v)
	if err != nil {
		return nil, err
	}
	return []jsonrpc.Content{jsonrpc.TextContent(string(data))}, nil
}

func textContent(format string, args ...any) []jsonrpc.Content {
	return []jsonrpc.Content{jsonrpc.TextContent(fmt.Sprintf(format, args...))}
}

func (p *Provider) buildHandlers() map[string]handler {
	return map[string]handler{
		"synology_status":   p.handleStatus,
		"synology_login":    p.handleLogin,
		"synology_logout":   p.handleLogout,
		"list_shares":       p.handleListShares,
		"list_directory":    p.handleListDirectory,
		"get_file_info":     p.handleGetFileInfo,
		"search_files":      p.handleSearchFiles,
		"rename_file":       p.handleRenameFile,
		"move_file":         p.handleMoveFile,
		"create_file":       p.handleCreateFile,
		"create_directory":  p.handleCreateDirectory,
		"delete_file":       p.handleDeleteFile,
		"remove_directory":  p.handleRemoveDirectory,
		"ds_get_info":       p.handleDSGetInfo,
		"ds_list_tasks":     p.handleDSListTasks,
		"ds_create_task":    p.handleDSCreateTask,
		"ds_pause_tasks":    p.handleDSPauseTasks,
		"ds_resume_tasks":   p.handleDSResumeTasks,
		"ds_delete_tasks":   p.handleDSDeleteTasks,
		"ds_get_statistics": p.handleDSGetStatistics,
	}
}

func (p *Provider) handleStatus(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	cfg := p.config()

	p.mu.Lock()
	hosts := make([]string, 0, len(p.sessions))
	for baseURL := range p.sessions {
		hosts = append(hosts, baseURL)
	}
	p.mu.Unlock()

	return jsonContent(map[string]any{
		"configured_url":  cfg.SynologyURL,
		"auto_login":      cfg.AutoLogin,
		"has_credentials": cfg.HasSynologyCredentials(),
		"active_sessions": len(hosts),
		"session_hosts":   hosts,
	})
}

func (p *Provider) handleLogin(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		BaseURL  string `json:"base_url"`
		Username string `json:"username"`
		Password string `json:"password"`
		Session  string `json:"session"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}

	cfg := p.config()
	baseURL, err := p.baseURLFrom(in.BaseURL)
	if err != nil {
		return nil, err
	}
	username := in.Username
	password := in.Password
	if username == "" {
		username = cfg.SynologyUsername
	}
	if password == "" {
		password = cfg.SynologyPassword
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("no credentials provided and none configured")
	}
	sessionType := in.Session
	if sessionType == "" {
		sessionType = synology.SessionFileStation
	}

	auth := p.authFor(baseURL)
	sid, err := auth.LoginWithSession(ctx, username, password, sessionType)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.sessions[baseURL] = sid
	delete(p.fs, baseURL)
	delete(p.ds, baseURL)
	p.mu.Unlock()

	log.Printf("Login successful for %s", baseURL)
	return textContent("Successfully logged in to %s (session %s...)", baseURL, truncateSID(sid)), nil
}

func (p *Provider) handleLogout(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	baseURL, err := p.baseURLFrom(in.BaseURL)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	sid, ok := p.sessions[baseURL]
	auth := p.auths[baseURL]
	delete(p.sessions, baseURL)
	delete(p.fs, baseURL)
	delete(p.ds, baseURL)
	p.mu.Unlock()

	if !ok || auth == nil {
		return textContent("No active session for %s", baseURL), nil
	}
	if err := auth.Logout(ctx, sid); err != nil {
		return nil, err
	}
	return textContent("Successfully logged out from %s", baseURL), nil
}

func (p *Provider) handleListShares(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	shares, err := fs.ListShares(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContent(map[string]any{"shares": shares, "total": len(shares)})
}

func (p *Provider) handleListDirectory(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path    string `json:"path"`
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	entries, err := fs.ListDirectory(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	return jsonContent(map[string]any{"path": in.Path, "files": entries, "total": len(entries)})
}

func (p *Provider) handleGetFileInfo(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path    string `json:"path"`
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	info, err := fs.GetFileInfo(ctx, in.Path)
	if err != nil {
		return nil, err
	}
	return jsonContent(info)
}

func (p *Provider) handleSearchFiles(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path    string `json:"path"`
		Pattern string `json:"pattern"`
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" || in.Pattern == "" {
		return nil, fmt.Errorf("path and pattern are required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	entries, err := fs.SearchFiles(ctx, in.Path, in.Pattern)
	if err != nil {
		return nil, err
	}
	return jsonContent(map[string]any{
		"path":    in.Path,
		"pattern": in.Pattern,
		"files":   entries,
		"total":   len(entries),
	})
}

func (p *Provider) handleRenameFile(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path    string `json:"path"`
		NewName string `json:"new_name"`
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" || in.NewName == "" {
		return nil, fmt.Errorf("path and new_name are required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	result, err := fs.RenameFile(ctx, in.Path, in.NewName)
	if err != nil {
		return nil, err
	}
	return jsonContent(result)
}

func (p *Provider) handleMoveFile(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		SourcePath      string `json:"source_path"`
		DestinationPath string `json:"destination_path"`
		Overwrite       bool   `json:"overwrite"`
		BaseURL         string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.SourcePath == "" || in.DestinationPath == "" {
		return nil, fmt.Errorf("source_path and destination_path are required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	result, err := fs.MoveFile(ctx, in.SourcePath, in.DestinationPath, in.Overwrite)
	if err != nil {
		return nil, err
	}
	return jsonContent(result)
}

func (p *Provider) handleCreateFile(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path      string `json:"path"`
		Content   string `json:"content"`
		Overwrite bool   `json:"overwrite"`
		BaseURL   string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	if err := fs.CreateFile(ctx, in.Path, in.Content, in.Overwrite); err != nil {
		return nil, err
	}
	return textContent("File created: %s", in.Path), nil
}

func (p *Provider) handleCreateDirectory(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path        string `json:"path"`
		Name        string `json:"name"`
		ForceParent bool   `json:"force_parent"`
		BaseURL     string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" || in.Name == "" {
		return nil, fmt.Errorf("path and name are required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	if err := fs.CreateDirectory(ctx, in.Path, in.Name, in.ForceParent); err != nil {
		return nil, err
	}
	return textContent("Directory created: %s/%s", in.Path, in.Name), nil
}

func (p *Provider) handleDeleteFile(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path    string `json:"path"`
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	if err := fs.Delete(ctx, in.Path, false); err != nil {
		return nil, err
	}
	return textContent("File deleted: %s", in.Path), nil
}

func (p *Provider) handleRemoveDirectory(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
		BaseURL   string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	fs, err := p.fileStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	if err := fs.Delete(ctx, in.Path, in.Recursive); err != nil {
		return nil, err
	}
	return textContent("Directory removed: %s", in.Path), nil
}

func (p *Provider) handleDSGetInfo(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	ds, err := p.downloadStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	info, err := ds.GetInfo(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContent(info)
}

func (p *Provider) handleDSListTasks(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		Offset  int    `json:"offset"`
		Limit   int    `json:"limit"`
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	ds, err := p.downloadStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	list, err := ds.ListTasks(ctx, in.Offset, in.Limit)
	if err != nil {
		return nil, err
	}
	return jsonContent(list)
}

func (p *Provider) handleDSCreateTask(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		URI         string `json:"uri"`
		Destination string `json:"destination"`
		Username    string `json:"username"`
		Password    string `json:"password"`
		BaseURL     string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	if in.URI == "" {
		return nil, fmt.Errorf("uri is required")
	}
	ds, err := p.downloadStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	result, err := ds.CreateTask(ctx, in.URI, in.Destination, in.Username, in.Password)
	if err != nil {
		return nil, err
	}
	return jsonContent(result)
}

type taskIDArgs struct {
	TaskIDs       []string `json:"task_ids"`
	ForceComplete bool     `json:"force_complete"`
	BaseURL       string   `json:"base_url"`
}

func (p *Provider) taskArgs(args json.RawMessage) (*taskIDArgs, *synology.DownloadStation, error) {
	var in taskIDArgs
	if err := decodeArgs(args, &in); err != nil {
		return nil, nil, err
	}
	if len(in.TaskIDs) == 0 {
		return nil, nil, fmt.Errorf("task_ids is required")
	}
	ds, err := p.downloadStationForArg(in.BaseURL)
	if err != nil {
		return nil, nil, err
	}
	return &in, ds, nil
}

func (p *Provider) handleDSPauseTasks(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	in, ds, err := p.taskArgs(args)
	if err != nil {
		return nil, err
	}
	if err := ds.PauseTasks(ctx, in.TaskIDs); err != nil {
		return nil, err
	}
	return textContent("Paused %d task(s)", len(in.TaskIDs)), nil
}

func (p *Provider) handleDSResumeTasks(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	in, ds, err := p.taskArgs(args)
	if err != nil {
		return nil, err
	}
	if err := ds.ResumeTasks(ctx, in.TaskIDs); err != nil {
		return nil, err
	}
	return textContent("Resumed %d task(s)", len(in.TaskIDs)), nil
}

func (p *Provider) handleDSDeleteTasks(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	in, ds, err := p.taskArgs(args)
	if err != nil {
		return nil, err
	}
	if err := ds.DeleteTasks(ctx, in.TaskIDs, in.ForceComplete); err != nil {
		return nil, err
	}
	return textContent("Deleted %d task(s)", len(in.TaskIDs)), nil
}

func (p *Provider) handleDSGetStatistics(ctx context.Context, args json.RawMessage) ([]jsonrpc.Content, error) {
	var in struct {
		BaseURL string `json:"base_url"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	ds, err := p.downloadStationForArg(in.BaseURL)
	if err != nil {
		return nil, err
	}

	stats, err := ds.GetStatistics(ctx)
	if err != nil {
		return nil, err
	}
	return jsonContent(stats)
}

package provider

import "github.com/synobridge/synobridge/internal/jsonrpc"

type schema = map[string]any

func objectSchema(props schema, required ...string) schema {
	s := schema{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func stringProp(desc string) schema {
	return schema{"type": "string", "description": desc}
}

func boolProp(desc string, def bool) schema {
	return schema{"type": "boolean", "description": desc, "default": def}
}

func intProp(desc string, def int) schema {
	return schema{"type": "integer", "description": desc, "default": def}
}

func stringArrayProp(desc string) schema {
	return schema{
		"type":        "array",
		"items":       schema{"type": "string"},
		"description": desc,
	}
}

// catalog returns the tools that are always available.
func catalog() []jsonrpc.Tool {
	return []jsonrpc.Tool{
		{
			Name:        "synology_status",
			Description: "Show the bridge connection status and active NAS sessions",
			InputSchema: objectSchema(schema{}),
		},
		{
			Name:        "list_shares",
			Description: "List all shared folders on the Synology NAS",
			InputSchema: objectSchema(schema{
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}),
		},
		{
			Name:        "list_directory",
			Description: "List the contents of a directory on the NAS",
			InputSchema: objectSchema(schema{
				"path":     stringProp("Directory path, e.g. /volume1/music"),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}, "path"),
		},
		{
			Name:        "get_file_info",
			Description: "Get detailed information about a file or directory",
			InputSchema: objectSchema(schema{
				"path":     stringProp("File or directory path"),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}, "path"),
		},
		{
			Name:        "search_files",
			Description: "Search for files matching a pattern under a directory",
			InputSchema: objectSchema(schema{
				"path":     stringProp("Directory to search in"),
				"pattern":  stringProp("Search pattern, e.g. *.mp3"),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}, "path", "pattern"),
		},
		{
			Name:        "rename_file",
			Description: "Rename a file or directory",
			InputSchema: objectSchema(schema{
				"path":     stringProp("Current file or directory path"),
				"new_name": stringProp("New name without any path separators"),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}, "path", "new_name"),
		},
		{
			Name:        "move_file",
			Description: "Move a file or directory to another folder",
			InputSchema: objectSchema(schema{
				"source_path":      stringProp("Path of the file or directory to move"),
				"destination_path": stringProp("Destination folder path"),
				"overwrite":        boolProp("Overwrite an existing file at the destination", false),
				"base_url":         stringProp("NAS base URL, defaults to the configured host"),
			}, "source_path", "destination_path"),
		},
		{
			Name:        "create_file",
			Description: "Create a new file with the given content",
			InputSchema: objectSchema(schema{
				"path":      stringProp("Full path of the file to create"),
				"content":   stringProp("File content, empty by default"),
				"overwrite": boolProp("Overwrite an existing file", false),
				"base_url":  stringProp("NAS base URL, defaults to the configured host"),
			}, "path"),
		},
		{
			Name:        "create_directory",
			Description: "Create a new directory",
			InputSchema: objectSchema(schema{
				"path":         stringProp("Parent directory path"),
				"name":         stringProp("Name of the directory to create"),
				"force_parent": boolProp("Create missing parent directories", false),
				"base_url":     stringProp("NAS base URL, defaults to the configured host"),
			}, "path", "name"),
		},
		{
			Name:        "delete_file",
			Description: "Delete a file",
			InputSchema: objectSchema(schema{
				"path":     stringProp("Path of the file to delete"),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}, "path"),
		},
		{
			Name:        "remove_directory",
			Description: "Remove a directory, optionally with its contents",
			InputSchema: objectSchema(schema{
				"path":      stringProp("Path of the directory to remove"),
				"recursive": boolProp("Also remove the directory contents", false),
				"base_url":  stringProp("NAS base URL, defaults to the configured host"),
			}, "path"),
		},
		{
			Name:        "ds_get_info",
			Description: "Get Download Station service information",
			InputSchema: objectSchema(schema{
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}),
		},
		{
			Name:        "ds_list_tasks",
			Description: "List download tasks with detail and transfer information",
			InputSchema: objectSchema(schema{
				"offset":   intProp("Pagination offset", 0),
				"limit":    intProp("Maximum number of tasks to return", 100),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}),
		},
		{
			Name:        "ds_create_task",
			Description: "Create a download task from a URL or magnet link",
			InputSchema: objectSchema(schema{
				"uri":         stringProp("Download URL or magnet link"),
				"destination": stringProp("Destination folder, defaults to downloads"),
				"username":    stringProp("Username for the remote host if required"),
				"password":    stringProp("Password for the remote host if required"),
				"base_url":    stringProp("NAS base URL, defaults to the configured host"),
			}, "uri"),
		},
		{
			Name:        "ds_pause_tasks",
			Description: "Pause the given download tasks",
			InputSchema: objectSchema(schema{
				"task_ids": stringArrayProp("IDs of the tasks to pause"),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}, "task_ids"),
		},
		{
			Name:        "ds_resume_tasks",
			Description: "Resume the given download tasks",
			InputSchema: objectSchema(schema{
				"task_ids": stringArrayProp("IDs of the tasks to resume"),
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}, "task_ids"),
		},
		{
			Name:        "ds_delete_tasks",
			Description: "Delete the given download tasks",
			InputSchema: objectSchema(schema{
				"task_ids":       stringArrayProp("IDs of the tasks to delete"),
				"force_complete": boolProp("Move finished data to the destination before deleting", false),
				"base_url":       stringProp("NAS base URL, defaults to the configured host"),
			}, "task_ids"),
		},
		{
			Name:        "ds_get_statistics",
			Description: "Get current Download Station transfer statistics",
			InputSchema: objectSchema(schema{
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}),
		},
	}
}

// authTools returns the login/logout tools exposed when auto-login is not
// managing the session.
func authTools() []jsonrpc.Tool {
	return []jsonrpc.Tool{
		{
			Name:        "synology_login",
			Description: "Login to a Synology NAS",
			InputSchema: objectSchema(schema{
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
				"username": stringProp("Username, defaults to the configured account"),
				"password": stringProp("Password, defaults to the configured account"),
				"session":  stringProp("Session type: FileStation or DownloadStation"),
			}),
		},
		{
			Name:        "synology_logout",
			Description: "Logout from a Synology NAS",
			InputSchema: objectSchema(schema{
				"base_url": stringProp("NAS base URL, defaults to the configured host"),
			}),
		},
	}
}

package dropbox

type metadata struct {
	Tag         string `json:".tag"`
	Name        string `json:"name"`
	ID          string `json:"id"`
	PathLower   string `json:"path_lower"`
	PathDisplay string `json:"path_display"`
}

func (m metadata) path() string {
	if m.PathDisplay != "" {
		return m.PathDisplay
	}
	return m.PathLower
}

type listFolderArg struct {
	Path           string `json:"path"`
	Recursive      bool   `json:"recursive"`
	IncludeDeleted bool   `json:"include_deleted"`
}

type listFolderContinueArg struct {
	Cursor string `json:"cursor"`
}

type listFolderResult struct {
	Entries []metadata `json:"entries"`
	Cursor  string     `json:"cursor"`
	HasMore bool       `json:"has_more"`
}

type getMetadataArg struct {
	Path string `json:"path"`
}

type listSharedLinksArg struct {
	Path       string `json:"path"`
	DirectOnly bool   `json:"direct_only"`
	Cursor     string `json:"cursor,omitempty"`
}

type sharedLinkMetadata struct {
	Tag       string `json:".tag"`
	URL       string `json:"url"`
	Name      string `json:"name"`
	PathLower string `json:"path_lower"`
}

type listSharedLinksResult struct {
	Links   []sharedLinkMetadata `json:"links"`
	HasMore bool                 `json:"has_more"`
	Cursor  string               `json:"cursor"`
}

type createSharedLinkArg struct {
	Path string `json:"path"`
}

type relocationArg struct {
	FromPath   string `json:"from_path"`
	ToPath     string `json:"to_path"`
	Autorename bool   `json:"autorename"`
}

type relocationResult struct {
	Metadata metadata `json:"metadata"`
}

type apiError struct {
	Summary string `json:"error_summary"`
}

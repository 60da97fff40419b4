package record

// FileMode names the text/binary distinction used for prefix placeholder
// rewriting.
type FileMode string

const (
	FileModeText FileMode = "text"
	FileModeBinary FileMode = "binary"
)

// PathType classifies how a path was materialized on disk.
type PathType string

const (
	PathHardlink PathType = "hardlink"
	PathSoftlink PathType = "softlink"
	PathDirectory PathType = "directory"
)

// PathData describes one file a package installs.
type PathData struct {
	Path string `json:"_path"`
	PathType PathType `json:"path_type"`
	Prefix string `json:"prefix_placeholder,omitempty"`
	FileMode FileMode `json:"file_mode,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
	SizeInBytes int64 `json:"size_in_bytes,omitempty"`
}

// HasPrefixPlaceholder reports whether p declares a prefix to rewrite.
func (p PathData) HasPrefixPlaceholder() bool {
	return p.Prefix != ""
}

// PathsData is the top-level content of info/paths.json (V1 manifest).
type PathsData struct {
	PathsVersion int `json:"paths_version"`
	Paths []PathData `json:"paths"`
}

package report

// Report is one result directory, published as a unit.
type Report struct {
	Name   string
	Info   Info
	Assets []Asset
}

// Asset ...
type Asset struct {
	Path                  string
	ResultDirRelativePath string
	FileSize              int64
	ContentType           string
}

// ServerReport ...
type ServerReport struct {
	Identifier string
	AssetURLs  map[string]string
}

// Info is read from the optional report-info.json of a result directory.
type Info struct {
	Category string `json:"category"`
}

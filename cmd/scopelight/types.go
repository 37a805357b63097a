package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIRegion is one highlighted region with its human-readable position.
// Line and Col are 1-based; Col counts bytes.
type CLIRegion struct {
	Layer string `json:"layer"`
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
	Line  int    `json:"line"`
	Col   int    `json:"col"`
	Text  string `json:"text"`
}

// CLIFileHighlights is the outcome of a highlight pass over one file.
type CLIFileHighlights struct {
	File     string      `json:"file"`
	Language string      `json:"language,omitempty"`
	Skipped  string      `json:"skipped,omitempty"`
	Error    string      `json:"error,omitempty"`
	Regions  []CLIRegion `json:"regions"`
}

// CLIFragment is the probe outcome of one optional query fragment.
type CLIFragment struct {
	Name      string   `json:"name"`
	Supported bool     `json:"supported"`
	Missing   []string `json:"missing,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// CLILanguage describes what scopelight can do for one grammar.
type CLILanguage struct {
	Language   string        `json:"language"`
	Extensions []string      `json:"extensions"`
	Queries    bool          `json:"queries"`
	Rules      bool          `json:"rules"`
	Fragments  []CLIFragment `json:"fragments,omitempty"`
}

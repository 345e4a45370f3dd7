package alerts

// Document describes one piece of CDD/CRP evidence. Every field is a pointer
// because presence matters: a missing name renders its default, an empty one
// renders empty, and an empty content still renders a block.
type Document struct {
	Filename    *string `json:"filename,omitempty"`
	FileType    *string `json:"file_type,omitempty"`
	Description *string `json:"description,omitempty"`
	Content     *string `json:"content,omitempty"`
	Summary     *string `json:"summary,omitempty"`
}

// Investigation bundles everything an analyst run needs for one alert.
type Investigation struct {
	AlertID           string       `json:"alert_id,omitempty"`
	Information       *Information `json:"alert_information"`
	Documents         []Document   `json:"documents"`
	RFIOptions        []string     `json:"rfi_options"`
	AdditionalContext string       `json:"additional_context,omitempty"`
}

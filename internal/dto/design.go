package dto

// CreateDesignRequest contains metadata submitted alongside a file upload.
type CreateDesignRequest struct {
	Title string `form:"title" json:"title" validate:"required,max=200"`
}

// DesignFilter captures query parameters for listing designs.
type DesignFilter struct {
	Search   string
	Page     int
	PageSize int
}

// DesignResponse enriches design metadata with a signed download URL.
type DesignResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Kind        string `json:"kind"`
	Filename    string `json:"filename"`
	MimeType    string `json:"mime_type"`
	SizeBytes   int64  `json:"size_bytes"`
	PageCount   int    `json:"page_count"`
	DownloadURL string `json:"download_url,omitempty"`
	CreatedAt   string `json:"created_at"`
}

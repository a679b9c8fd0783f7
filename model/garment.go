package model

// JobResult 一次生成任务的结果
type JobResult struct {
	JobID       string   `json:"job_id"`
	MD5         string   `json:"md5"`
	GarmentType string   `json:"garment_type"`
	Outputs     []Output `json:"outputs"`
	Stages      []string `json:"stages"`
	Warnings    []string `json:"warnings,omitempty"`
	Cached      bool     `json:"cached"`
	Timestamp   int64    `json:"timestamp"`
}

// Output 单张合成图
type Output struct {
	ID     string `json:"id"`
	View   string `json:"view"` // front, back, front_left, front_right ...
	Width  int    `json:"width"`
	Height int    `json:"height"`
	URL    string `json:"url,omitempty"`
}

// GenerateResponse 生成响应
type GenerateResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    *JobResult `json:"data,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

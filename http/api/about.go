package api

// About is some general information about the relay
type About struct {
	App       string         `json:"app"`
	Name      string         `json:"name"`
	ID        string         `json:"id"`
	CreatedAt string         `json:"created_at"` // RFC3339
	Uptime    uint64         `json:"uptime_seconds"`
	Version   AboutVersion   `json:"version"`
	Resources AboutResources `json:"resources"`
}

// AboutVersion is some information about the binary
type AboutVersion struct {
	Number   string `json:"number"`
	Commit   string `json:"repository_commit"`
	Branch   string `json:"repository_branch"`
	Build    string `json:"build_date"`
	Arch     string `json:"arch"`
	Compiler string `json:"compiler"`
}

// AboutResources holds information about the current resource usage
type AboutResources struct {
	NCPU     float64 `json:"ncpu"`
	CPU      float64 `json:"cpu_used"`           // 0-100*ncpu
	CPURelay float64 `json:"cpu_relay"`          // 0-100*ncpu
	Mem      uint64  `json:"memory_used_bytes"`  // bytes
	MemTotal uint64  `json:"memory_total_bytes"` // bytes
	MemRelay uint64  `json:"memory_relay_bytes"` // bytes
}

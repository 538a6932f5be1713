package domain

// Defaults shared by the orchestrator, its configuration and the CLI.
const (
	DefaultConfidenceThreshold = 0.80
	DefaultComplexityThreshold = 0.3
	DefaultMaxModels           = 3
	DefaultTopK                = 3
	DefaultMaxGlobalDocs       = 10000
	DefaultMaxLocalDocs        = 1000
	DefaultMaxConcurrent       = 4
)

// Keys used in request context maps (HTTP, MCP, CLI) decoded with mapstructure.
const (
	KeyDomain      = "domain"
	KeyHistory     = "history"
	KeyUseRAG      = "use_rag"
	KeyTopK        = "top_k"
	KeyTags        = "tags"
	KeyTimeoutMS   = "timeout_ms"
	KeyForceDomain = "force_domain"
)

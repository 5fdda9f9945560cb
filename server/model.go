package server

type ResponseModel struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RollbackModel is the body of a rollback request. A null or missing target
// rolls back to the start.
type RollbackModel struct {
	Target *uint64 `json:"target"`
}

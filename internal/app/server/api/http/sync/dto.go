package sync

type getChangesInput struct {
	Resource string `path:"resource" doc:"Ресурс коллекции, например product-batches"`
	Since    string `query:"since" doc:"RFC3339; пусто - вся коллекция"`
}

type getChangesOutput struct {
	Body DeltaResponse
}

type DeltaResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    *DeltaData `json:"data,omitempty"`
}

type DeltaData struct {
	Updated    []map[string]any `json:"updated"`
	Deleted    []map[string]any `json:"deleted"`
	ServerTime string           `json:"serverTime"`
}

type pushInput struct {
	Resource string `path:"resource"`
	Body     PushRequest
}

type pushOutput struct {
	Body PushResponse
}

type PushRequest struct {
	Records []map[string]any `json:"records"`
}

type PushResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message,omitempty"`
	Records []map[string]any `json:"records,omitempty"`
}

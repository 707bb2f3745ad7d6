package health

// Input represents the input for health check endpoint
type Input struct{}

// Output represents the output for health check endpoint
type Output struct {
	Body Response
}

// Response represents the health check response
type Response struct {
	Status     string `json:"status" example:"Ok" doc:"Health status of the service"`
	Database   string `json:"database,omitempty" example:"Ok" doc:"Database connectivity"`
	ServerTime string `json:"serverTime" doc:"Server clock, RFC3339"`
}

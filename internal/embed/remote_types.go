package embed

// embedContentRequest is the body of POST /models/{model}:embedContent.
type embedContentRequest struct {
	Content contentBody `json:"content"`
	// OutputDimensionality asks the service to reduce the vector width.
	OutputDimensionality int `json:"outputDimensionality,omitempty"`
}

type contentBody struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text string `json:"text"`
}

// embedContentResponse is a successful embedContent reply.
type embedContentResponse struct {
	Embedding *struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// apiErrorResponse is the error envelope returned with non-2xx statuses.
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

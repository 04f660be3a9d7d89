package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// DocumentURL is where the router serves api/openapi.yml.
const DocumentURL = "/openapi.yml"

// Handler serves Swagger UI for the document at docURL.
func Handler(docURL string) http.Handler {
	if docURL == "" {
		docURL = DocumentURL
	}
	return httpSwagger.Handler(
		httpSwagger.URL(docURL),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"heatloss-engine/internal/models"
	"heatloss-engine/internal/render"
)

func kindParameter() map[string]interface{} {
	kinds := make([]string, 0, len(models.AllKinds()))
	for _, k := range models.AllKinds() {
		kinds = append(kinds, string(k))
	}
	return map[string]interface{}{
		"name":        "kind",
		"in":          "path",
		"description": "Question kind",
		"required":    true,
		"schema":      map[string]interface{}{"type": "string", "enum": kinds},
	}
}

func generationQueryParameters() []map[string]interface{} {
	palettes := make([]string, 0, len(render.Palettes()))
	for _, p := range render.Palettes() {
		palettes = append(palettes, string(p))
	}
	return []map[string]interface{}{
		kindParameter(),
		{
			"name":        "num_layers",
			"in":          "query",
			"description": "Number of wall layers (default: 3)",
			"required":    false,
			"schema":      map[string]interface{}{"type": "integer", "enum": []int{3, 4, 5}, "default": DefaultNumLayers},
		},
		{
			"name":        "seed",
			"in":          "query",
			"description": "Seed that makes the question reproducible",
			"required":    false,
			"schema":      map[string]interface{}{"type": "integer", "format": "int64"},
		},
		{
			"name":        "palette",
			"in":          "query",
			"description": "Chart color palette",
			"required":    false,
			"schema":      map[string]interface{}{"type": "string", "enum": palettes},
		},
	}
}

func jsonContent(schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"application/json": map[string]interface{}{"schema": schema},
	}
}

var errorResponses = map[string]interface{}{
	"400": map[string]interface{}{
		"description": "Invalid kind, layer count, palette or batch size",
		"content":     jsonContent(map[string]interface{}{"$ref": "#/components/schemas/ErrorResponse"}),
	},
	"500": map[string]interface{}{
		"description": "Catalog or computation inconsistency",
		"content":     jsonContent(map[string]interface{}{"$ref": "#/components/schemas/ErrorResponse"}),
	},
}

func withErrors(ok map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	for code, resp := range errorResponses {
		out[code] = resp
	}
	for code, resp := range ok {
		out[code] = resp
	}
	return out
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the question API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	questionRequest := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"num_layers": map[string]interface{}{"type": "integer", "enum": []int{3, 4, 5}, "default": DefaultNumLayers},
			"palette":    map[string]string{"type": "string"},
			"seed":       map[string]string{"type": "integer", "format": "int64"},
			"count":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 50, "default": DefaultBatchCount},
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "Heat Loss Question API",
			"description": "Generates randomized building-physics practice questions on wall heat loss and thermal bridging, with worked solution charts",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/questions/{kind}": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Generate a question",
					"description": "Sample a wall, solve its resistance network and return the prompt, parameters, solution and chart as a PNG data URL",
					"parameters":  []map[string]interface{}{kindParameter()},
					"requestBody": map[string]interface{}{
						"required": false,
						"content":  jsonContent(questionRequest),
					},
					"responses": withErrors(map[string]interface{}{
						"201": map[string]interface{}{
							"description": "Generated question",
							"content":     jsonContent(map[string]interface{}{"$ref": "#/components/schemas/Question"}),
						},
					}),
				},
			},
			"/api/questions/{kind}/batch": map[string]interface{}{
				"post": map[string]interface{}{
					"summary":     "Generate several questions",
					"description": "With a seed, question i uses seed+i",
					"parameters":  []map[string]interface{}{kindParameter()},
					"requestBody": map[string]interface{}{
						"required": false,
						"content":  jsonContent(questionRequest),
					},
					"responses": withErrors(map[string]interface{}{
						"201": map[string]interface{}{
							"description": "Generated questions",
							"content": jsonContent(map[string]interface{}{
								"type": "object",
								"properties": map[string]interface{}{
									"data": map[string]interface{}{
										"type":  "array",
										"items": map[string]interface{}{"$ref": "#/components/schemas/Question"},
									},
									"total": map[string]string{"type": "integer"},
								},
							}),
						},
					}),
				},
			},
			"/api/questions/{kind}/chart.png": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Solution chart",
					"description": "Generate a question and return only its annotated resistance chart",
					"parameters":  generationQueryParameters(),
					"responses": withErrors(map[string]interface{}{
						"200": map[string]interface{}{
							"description": "PNG image",
							"content": map[string]interface{}{
								render.ContentType: map[string]interface{}{
									"schema": map[string]string{"type": "string", "format": "binary"},
								},
							},
						},
					}),
				},
			},
			"/api/questions/{kind}/worksheet.xlsx": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Worksheet",
					"description": "Generate a batch of questions as an xlsx workbook with Questions and Answers sheets",
					"parameters": append(generationQueryParameters(), map[string]interface{}{
						"name":        "count",
						"in":          "query",
						"description": "Number of questions (default: 10)",
						"required":    false,
						"schema":      map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 50},
					}),
					"responses": withErrors(map[string]interface{}{
						"200": map[string]interface{}{
							"description": "xlsx workbook",
						},
					}),
				},
			},
			"/api/catalogs": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List catalogs",
					"description": "Question kinds with their layer counts, construction names, materials and the available palettes",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Successful response"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API and its catalog store are reachable",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "API is healthy"},
						"503": map[string]interface{}{"description": "Catalog store unreachable"},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"Question": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"id":             map[string]string{"type": "string", "format": "uuid"},
						"kind":           map[string]string{"type": "string"},
						"prompt":         map[string]string{"type": "string"},
						"parameters":     map[string]string{"type": "object"},
						"solution":       map[string]string{"type": "object"},
						"seed":           map[string]string{"type": "integer", "format": "int64"},
						"solution_image": map[string]string{"type": "string", "description": "data:image/png;base64,..."},
					},
				},
				"ErrorResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":      map[string]string{"type": "string"},
						"message":    map[string]string{"type": "string"},
						"code":       map[string]string{"type": "integer"},
						"request_id": map[string]string{"type": "string"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}

package api

import (
	"fmt"
	"sort"

	"github.com/mattjoyce/slate/internal/action"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document with a launch path for
// every registered action.
func buildOpenAPIDoc(descriptors []action.Descriptor) map[string]any {
	sorted := append([]action.Descriptor(nil), descriptors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Identifier < sorted[j].Identifier })

	paths := map[string]any{}
	for _, d := range sorted {
		summary := d.Description
		if summary == "" {
			summary = d.Label
		}
		if d.Variant != "" {
			summary = fmt.Sprintf("%s (%s)", summary, d.Variant)
		}
		paths[fmt.Sprintf("/actions/%s/launch", d.Identifier)] = map[string]any{
			"post": map[string]any{
				"operationId": "launch__" + d.Identifier,
				"summary":     summary,
				"tags":        []string{"actions"},
				"requestBody": map[string]any{
					"required": false,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{"$ref": "#/components/schemas/LaunchRequest"},
						},
					},
				},
				"responses": map[string]any{
					"200": map[string]any{"description": "Replies from the action"},
					"400": map[string]any{"description": "Bad request"},
					"403": map[string]any{"description": "Insufficient scope"},
				},
				"security": []any{map[string]any{"BearerAuth": []string{}}},
			},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "Slate",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
			"schemas": map[string]any{
				"LaunchRequest": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"user": map[string]any{"type": "string"},
						"selection": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":     "object",
								"required": []string{"entityType", "entityId"},
								"properties": map[string]any{
									"entityType": map[string]any{"type": "string"},
									"entityId":   map[string]any{"type": "string"},
								},
							},
						},
						"values": map[string]any{"type": "object"},
					},
				},
			},
		},
	}
}

// Package docs holds the generated OpenAPI specification. Regenerate with
// `swag init -g cmd/diffusiond/docs.go -o docs` after changing handler
// annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "diffusiond maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/v1/internal/ping": {
            "get": {
                "summary": "Liveness ping",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "string"}
                    }
                }
            }
        },
        "/v1/internal/progress": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Poll task progress and live preview",
                "parameters": [
                    {
                        "description": "task selector",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.ProgressRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/types.ProgressResponse"}
                    },
                    "404": {
                        "description": "unknown task",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/sdapi/v1/options": {
            "get": {
                "produces": ["application/json"],
                "summary": "Current options map",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": true}
                    }
                }
            },
            "post": {
                "consumes": ["application/json"],
                "summary": "Merge and persist options",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "object", "additionalProperties": true}
                    },
                    "400": {
                        "description": "Bad Request",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/sdapi/v1/txt2img": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Generate images from a text prompt",
                "parameters": [
                    {
                        "description": "generation parameters",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.GenerateRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/types.GenerateResponse"}
                    },
                    "404": {
                        "description": "checkpoint not found",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    },
                    "503": {
                        "description": "diffusion runtime unavailable",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/sdapi/v1/img2img": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Generate images from an init image plus prompt",
                "parameters": [
                    {
                        "description": "generation parameters with init_images",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.GenerateRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/types.GenerateResponse"}
                    }
                }
            }
        },
        "/v1/sdapi/v1/extra-batch-images": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Upscale a batch of images",
                "parameters": [
                    {
                        "description": "images and upscaler selection",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.UpscaleRequest"}
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/types.UpscaleResponse"}
                    },
                    "404": {
                        "description": "upscaler model not found",
                        "schema": {"$ref": "#/definitions/types.ErrorResponse"}
                    }
                }
            }
        },
        "/v1/sdapi/v1/sd-models": {
            "get": {
                "produces": ["application/json"],
                "summary": "List installed checkpoints",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {"$ref": "#/definitions/types.CheckpointInfo"}
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "types.CheckpointInfo": {
            "type": "object",
            "properties": {
                "filename": {"type": "string"},
                "model_name": {"type": "string", "example": "sd-v1-5"},
                "title": {"type": "string", "example": "sd-v1-5.safetensors"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string", "example": "a beautiful landscape with mountains and a lake"},
                "negative_prompt": {"type": "string"},
                "width": {"type": "integer", "example": 512},
                "height": {"type": "integer", "example": 512},
                "steps": {"type": "integer", "example": 20},
                "cfg_scale": {"type": "number", "example": 7.0},
                "seed": {"type": "integer", "example": 42},
                "batch_size": {"type": "integer", "example": 1},
                "sampler_name": {"type": "string"},
                "clip_skip": {"type": "integer"},
                "force_task_id": {"type": "string"},
                "init_images": {"type": "array", "items": {"type": "string"}},
                "mask": {"type": "string"},
                "denoising_strength": {"type": "number", "example": 0.75}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "images": {"type": "array", "items": {"type": "string"}},
                "info": {"type": "string"}
            }
        },
        "types.ProgressRequest": {
            "type": "object",
            "properties": {
                "id_task": {"type": "string"},
                "id_live_preview": {"type": "integer"}
            }
        },
        "types.ProgressResponse": {
            "type": "object",
            "properties": {
                "completed": {"type": "boolean"},
                "progress": {"type": "number"},
                "live_preview": {"type": "string"},
                "id_live_preview": {"type": "integer"}
            }
        },
        "types.UpscaleRequest": {
            "type": "object",
            "properties": {
                "imageList": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/types.UpscaleImage"}
                },
                "upscaler_1": {"type": "string"},
                "upscaling_resize": {"type": "integer", "example": 2}
            }
        },
        "types.UpscaleImage": {
            "type": "object",
            "properties": {
                "data": {"type": "string"},
                "name": {"type": "string"}
            }
        },
        "types.UpscaleResponse": {
            "type": "object",
            "properties": {
                "images": {"type": "array", "items": {"type": "string"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "diffusiond API",
	Description:      "HTTP API for local stable-diffusion image generation.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

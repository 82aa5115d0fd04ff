package main

// General API documentation for swaggo. Run `swag init -g cmd/diffusiond/docs.go -o docs` to regenerate.
//
// @title           diffusiond API
// @version         1.0
// @description     HTTP API for local stable-diffusion image generation.
//
// @contact.name   diffusiond maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http

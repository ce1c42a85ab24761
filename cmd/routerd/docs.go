package main

// General API documentation for swaggo. Run `make swagger-gen` to generate docs.
//
// @title           routerd API
// @version         1.0
// @description     Rate-limit aware routing of chat completion and embedding requests across LLM deployments.
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http

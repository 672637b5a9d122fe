// Package config loads FileWise settings from the environment.
//
// An optional .env file in the working directory is read first. Every key has
// a default, so an empty environment yields a working local setup: the
// hashing embedder, a database under ~/.filewise and no cloud fallback.
// Values that fail to parse make Load return an error; Validate checks the
// combination, for example that the selected provider has an API key.
package config

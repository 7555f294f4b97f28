// Package config handles configuration loading, parsing, and validation
// from config files and SCRY_ prefixed environment variables. It provides
// type-safe access to the settings of the server, the analysis service, the
// import queue policy and the export destinations.
package config

// Package config resolves the deployment configuration and the default
// engine overrides that follow from it.
//
// Sources are layered with koanf: built-in defaults, an optional YAML file,
// then SCANX_ environment variables. The mode decides how engine binaries
// are located:
//
//	restricted   caller supplies instantiateWasm, nothing is fetched
//	production   <cdn_host>/npm/scanx-wasm@<version>/dist/<variant>/<file>
//	development  <local_dir>/<variant>/<file>
package config
